// Package macro implements {{name}} placeholder expansion over a context
// map built per request. Expansion is textual substitution only; macro
// values are never evaluated as code or re-scanned for further macros.
package macro

import (
	"regexp"
	"strings"
)

// Value is a macro value: either a fixed string or a producer invoked on
// every expansion. Producers back non-deterministic macros (time, dice
// rolls) and must not be memoized.
type Value struct {
	static string
	fn     func() string
}

// String wraps a fixed string value.
func String(s string) Value { return Value{static: s} }

// Func wraps a producer re-invoked on each expansion.
func Func(fn func() string) Value { return Value{fn: fn} }

func (v Value) resolve() string {
	if v.fn != nil {
		return v.fn()
	}
	return v.static
}

// Context maps macro names to values. Names are matched case-sensitively.
type Context map[string]Value

var tokenPattern = regexp.MustCompile(`\{\{([A-Za-z0-9_]+)\}\}`)

// Expand replaces every {{name}} token in text with the context's value
// for that name. Unknown macros are left verbatim so partially configured
// presets still render something recognizable.
func Expand(text string, ctx Context) string {
	return ExpandTransform(text, ctx, nil)
}

// ExpandTransform works like Expand but passes each resolved value through
// transform before substitution. Unknown macros are left verbatim and not
// transformed. A nil transform is the identity.
func ExpandTransform(text string, ctx Context, transform func(string) string) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	return tokenPattern.ReplaceAllStringFunc(text, func(token string) string {
		name := token[2 : len(token)-2]
		value, ok := ctx[name]
		if !ok {
			return token
		}
		resolved := value.resolve()
		if transform != nil {
			resolved = transform(resolved)
		}
		return resolved
	})
}
