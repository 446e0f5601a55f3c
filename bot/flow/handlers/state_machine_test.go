package handlers_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botflow/bot/flow"
	"botflow/bot/flow/flowtest"
	"botflow/bot/flow/handlers"
	"botflow/entity"
)

func stateBlock(transitions []any) *entity.Block {
	return &entity.Block{ID: 10, BotID: 1, Type: entity.BlockStateMachine, Content: map[string]any{
		"initial_state": "start",
		"transitions":   transitions,
	}}
}

func TestStateMachineInitializesState(t *testing.T) {
	sessions := flowtest.NewSessions()
	h := handlers.NewStateMachineHandler(sessions, testLogger())

	res, err := h.Execute(context.Background(), request(stateBlock(nil)))
	require.NoError(t, err)
	assert.True(t, res.Stop)
	assert.Equal(t, "start", sessions.Value(flow.StateKey("42", 10)))
}

func TestStateMachineMessageTextTransition(t *testing.T) {
	sessions := flowtest.NewSessions()
	require.NoError(t, sessions.Set(context.Background(), flow.LastMessageKey("42"), "go"))

	h := handlers.NewStateMachineHandler(sessions, testLogger())
	b := stateBlock([]any{
		map[string]any{
			"from_state":      "start",
			"condition_type":  "message_text",
			"condition_value": "go",
			"to_state":        "running",
			"next_block_id":   2,
		},
	})

	res, err := h.Execute(context.Background(), request(b))
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.NextBlockID)
	assert.Equal(t, "running", sessions.Value(flow.StateKey("42", 10)))
}

func TestStateMachineVariableEqualsTransition(t *testing.T) {
	sessions := flowtest.NewSessions()
	h := handlers.NewStateMachineHandler(sessions, testLogger())

	b := stateBlock([]any{
		map[string]any{
			"from_state":      "start",
			"condition_type":  "variable_equals",
			"variable":        "mode",
			"condition_value": "fast",
			"next_block_id":   3,
		},
	})

	req := request(b)
	req.Scope.Set("mode", "fast")

	res, err := h.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.NextBlockID)
}

func TestStateMachineFirstMatchWins(t *testing.T) {
	sessions := flowtest.NewSessions()
	h := handlers.NewStateMachineHandler(sessions, testLogger())

	b := stateBlock([]any{
		map[string]any{
			"from_state":     "start",
			"condition_type": "always",
			"next_block_id":  1,
		},
		map[string]any{
			"from_state":     "start",
			"condition_type": "always",
			"next_block_id":  2,
		},
	})

	res, err := h.Execute(context.Background(), request(b))
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.NextBlockID)
}

func TestStateMachineNoMatchStops(t *testing.T) {
	sessions := flowtest.NewSessions()
	h := handlers.NewStateMachineHandler(sessions, testLogger())

	b := stateBlock([]any{
		map[string]any{
			"from_state":     "elsewhere",
			"condition_type": "always",
			"next_block_id":  2,
		},
	})

	res, err := h.Execute(context.Background(), request(b))
	require.NoError(t, err)
	assert.True(t, res.Stop)
	assert.Zero(t, res.NextBlockID)
}

func TestStateMachineStatePersistsAcrossPasses(t *testing.T) {
	sessions := flowtest.NewSessions()
	h := handlers.NewStateMachineHandler(sessions, testLogger())

	b := stateBlock([]any{
		map[string]any{
			"from_state":     "start",
			"condition_type": "always",
			"to_state":       "second",
			"next_block_id":  2,
		},
		map[string]any{
			"from_state":     "second",
			"condition_type": "always",
			"to_state":       "third",
			"next_block_id":  3,
		},
	})

	res, err := h.Execute(context.Background(), request(b))
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.NextBlockID)

	res, err = h.Execute(context.Background(), request(b))
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.NextBlockID)
	assert.Equal(t, "third", sessions.Value(flow.StateKey("42", 10)))
}
