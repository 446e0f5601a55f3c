package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalCondition(t *testing.T) {
	scope := NewScope()
	scope.Set("age", 21)
	scope.Set("name", "Alice")

	tests := []struct {
		condition string
		want      bool
	}{
		{"age > 18", true},
		{"age < 18", false},
		{`name == "Alice"`, true},
		{`name == "Bob" || age >= 21`, true},
		{"", true},
		{"   ", true},
	}

	for _, tt := range tests {
		got, err := EvalCondition(tt.condition, scope)
		require.NoError(t, err, tt.condition)
		assert.Equal(t, tt.want, got, tt.condition)
	}
}

func TestEvalConditionUndefinedVariable(t *testing.T) {
	scope := NewScope()

	// Undefined names resolve to nil instead of failing compilation.
	got, err := EvalCondition("missing == nil", scope)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEvalConditionErrors(t *testing.T) {
	scope := NewScope()
	scope.Set("age", 21)

	_, err := EvalCondition("age >", scope)
	assert.Error(t, err)
}
