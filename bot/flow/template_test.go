package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	scope := NewScope()
	scope.Set("name", "Alice")
	scope.Set("count", float64(3))
	scope.Set("price", 9.5)

	assert.Equal(t, "hello Alice", Render("hello {{ name }}", scope))
	assert.Equal(t, "hello Alice", Render("hello {{name}}", scope))
	assert.Equal(t, "3 items", Render("{{ count }} items", scope))
	assert.Equal(t, "9.5", Render("{{ price }}", scope))
}

func TestRenderUnknownVariable(t *testing.T) {
	scope := NewScope()
	scope.Set("name", "Alice")

	assert.Equal(t, "hello ", Render("hello {{ missing }}", scope))
}

func TestRenderNoPlaceholders(t *testing.T) {
	scope := NewScope()

	text := "plain text with { braces } and {single}"
	assert.Equal(t, text, Render(text, scope))
}

func TestRenderIdempotent(t *testing.T) {
	scope := NewScope()
	scope.Set("name", "Bob")

	once := Render("hi {{ name }}", scope)
	assert.Equal(t, once, Render(once, scope))
}

func TestRenderValueAlreadySubstituted(t *testing.T) {
	// A value that itself looks like a placeholder must not be expanded
	// again on a later render.
	scope := NewScope()
	scope.Set("a", "{{ b }}")
	scope.Set("b", "secret")

	assert.Equal(t, "{{ b }}", Render("{{ a }}", scope))
	// ...unless the text is rendered twice by the caller.
	assert.Equal(t, "secret", Render(Render("{{ a }}", scope), scope))
}

func TestRenderMap(t *testing.T) {
	scope := NewScope()
	scope.Set("user", "carol")

	in := map[string]any{
		"name":  "{{ user }}",
		"count": 2,
		"nested": map[string]any{
			"who": "{{ user }}",
		},
		"list": []any{"{{ user }}", 1},
	}

	out := RenderMap(in, scope)
	assert.Equal(t, "carol", out["name"])
	assert.Equal(t, 2, out["count"])
	assert.Equal(t, "carol", out["nested"].(map[string]any)["who"])
	assert.Equal(t, "carol", out["list"].([]any)[0])
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", Stringify(nil))
	assert.Equal(t, "5", Stringify(float64(5)))
	assert.Equal(t, "5.25", Stringify(5.25))
	assert.Equal(t, "true", Stringify(true))
	assert.Equal(t, "text", Stringify("text"))
}
