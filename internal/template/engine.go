// Package template implements the placeholder substitution engine shared by
// call-script personalization and document rendering. The two call sites use
// different delimiter syntaxes, so the engine is parameterized rather than
// duplicated.
package template

import (
	"fmt"
	"regexp"
	"strings"
)

// Context maps placeholder names to substitution values.
type Context map[string]interface{}

// Options configure a substitution engine instance.
type Options struct {
	// OpenDelim and CloseDelim bracket placeholder names, e.g. "{" / "}"
	// or "{{" / "}}".
	OpenDelim  string
	CloseDelim string

	// CaseInsensitive makes placeholder name lookup ignore case.
	CaseInsensitive bool

	// Conditionals enables {{#if name}}...{{/if}} block support using the
	// configured delimiters.
	Conditionals bool
}

// Engine renders templates against a Context. Render never fails: malformed
// or unbalanced markers degrade to partial output, and missing values
// substitute the empty string. The engine holds no mutable state and is safe
// for concurrent use.
type Engine struct {
	opts          Options
	placeholderRe *regexp.Regexp
	conditionalRe *regexp.Regexp
}

// New creates an engine with the given options. Empty delimiters default to
// single braces.
func New(opts Options) *Engine {
	if opts.OpenDelim == "" {
		opts.OpenDelim = "{"
	}
	if opts.CloseDelim == "" {
		opts.CloseDelim = "}"
	}

	open := regexp.QuoteMeta(opts.OpenDelim)
	close := regexp.QuoteMeta(opts.CloseDelim)

	e := &Engine{
		opts:          opts,
		placeholderRe: regexp.MustCompile(open + `\s*([A-Za-z0-9_.-]+)\s*` + close),
	}
	if opts.Conditionals {
		// Non-greedy body, single pass: nested blocks are not re-evaluated.
		e.conditionalRe = regexp.MustCompile(`(?s)` + open + `#if\s+([A-Za-z0-9_.-]+)\s*` + close + `(.*?)` + open + `/if` + close)
	}
	return e
}

// NewScript returns the call-script variant: single-brace placeholders with
// case-insensitive names and no conditional blocks.
func NewScript() *Engine {
	return New(Options{OpenDelim: "{", CloseDelim: "}", CaseInsensitive: true})
}

// NewDocument returns the document variant: double-brace placeholders with
// case-sensitive names and conditional block support.
func NewDocument() *Engine {
	return New(Options{OpenDelim: "{{", CloseDelim: "}}", Conditionals: true})
}

// Render substitutes placeholders in tmpl from ctx. Conditional blocks are
// evaluated before plain placeholders. Absent or nil values render as "".
func (e *Engine) Render(tmpl string, ctx Context) string {
	if tmpl == "" {
		return ""
	}

	lookup := e.lookup(ctx)
	out := tmpl

	if e.conditionalRe != nil {
		out = e.conditionalRe.ReplaceAllStringFunc(out, func(match string) string {
			sub := e.conditionalRe.FindStringSubmatch(match)
			if len(sub) != 3 {
				return ""
			}
			v, ok := lookup(sub[1])
			if blockVisible(v, ok) {
				return sub[2]
			}
			return ""
		})
	}

	out = e.placeholderRe.ReplaceAllStringFunc(out, func(match string) string {
		sub := e.placeholderRe.FindStringSubmatch(match)
		if len(sub) != 2 {
			return ""
		}
		v, ok := lookup(sub[1])
		if !ok || v == nil {
			return ""
		}
		return stringify(v)
	})

	return out
}

// lookup builds a name resolver for one render pass. For case-insensitive
// engines the context keys are folded once up front.
func (e *Engine) lookup(ctx Context) func(string) (interface{}, bool) {
	if !e.opts.CaseInsensitive {
		return func(name string) (interface{}, bool) {
			v, ok := ctx[name]
			return v, ok
		}
	}

	folded := make(map[string]interface{}, len(ctx))
	for k, v := range ctx {
		folded[strings.ToLower(k)] = v
	}
	return func(name string) (interface{}, bool) {
		v, ok := folded[strings.ToLower(name)]
		return v, ok
	}
}

// blockVisible reports whether a conditional block's content is kept. A block
// survives only when the variable is present with a usable value: not nil,
// not boolean false, and not "", "null" or "undefined".
func blockVisible(v interface{}, ok bool) bool {
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != "" && t != "null" && t != "undefined"
	default:
		return true
	}
}

func stringify(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
