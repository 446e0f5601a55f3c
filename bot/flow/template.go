package flow

import (
	"regexp"
	"strings"
)

// placeholder matches "{{ identifier }}" with optional inner whitespace.
var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// Render substitutes {{ name }} placeholders in text with stringified scope
// values. This is token substitution, not a templating language: no loops,
// conditionals or function calls. Unknown identifiers render as an empty
// string; Render never fails. Input without placeholders is returned
// unchanged.
func Render(text string, scope *Scope) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	return placeholder.ReplaceAllStringFunc(text, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		v, ok := scope.Get(name)
		if !ok {
			return ""
		}
		return Stringify(v)
	})
}

// RenderMap renders every string value of a payload map, one level deep for
// nested maps and slices. Non-string leaves pass through untouched.
func RenderMap(m map[string]any, scope *Scope) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = renderValue(v, scope)
	}
	return out
}

func renderValue(v any, scope *Scope) any {
	switch x := v.(type) {
	case string:
		return Render(x, scope)
	case map[string]any:
		return RenderMap(x, scope)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = renderValue(e, scope)
		}
		return out
	default:
		return v
	}
}
