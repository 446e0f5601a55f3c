package flow

import (
	"fmt"
	"strconv"
)

// Scope is the mutable variable mapping of one pass. It is created by the
// engine at the start of RunPass, threaded by reference through every handler
// call and discarded when the pass ends; cross-pass durability goes through
// the session store instead. Later writes overwrite earlier ones.
//
// Scope is not safe for concurrent use; a pass is single-threaded.
type Scope struct {
	vars map[string]any
}

// NewScope creates an empty scope.
func NewScope() *Scope {
	return &Scope{vars: make(map[string]any)}
}

// Set stores a value under name.
func (s *Scope) Set(name string, value any) {
	s.vars[name] = value
}

// Delete removes the value stored under name.
func (s *Scope) Delete(name string) {
	delete(s.vars, name)
}

// Get returns the value stored under name.
func (s *Scope) Get(name string) (any, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// GetString returns the value under name stringified, or "" when absent.
func (s *Scope) GetString(name string) string {
	v, ok := s.vars[name]
	if !ok {
		return ""
	}
	return Stringify(v)
}

// Len returns the number of variables in scope.
func (s *Scope) Len() int {
	return len(s.vars)
}

// Values returns a shallow copy of the scope for read-only consumers such as
// the condition evaluator.
func (s *Scope) Values() map[string]any {
	out := make(map[string]any, len(s.vars))
	for k, v := range s.vars {
		out[k] = v
	}
	return out
}

// Stringify renders a scope value for interpolation. JSON numbers arrive as
// float64; integral ones print without a decimal point.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
