package microtpl

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/benjaminschreck/go-microtpl/pkg/microtpl/script"
)

// ConfigError reports a setting that cannot be turned into a grammar, such
// as a delimiter pattern that does not compile.
type ConfigError struct {
	Field   string
	Value   string
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "config error in %s %q: %s", e.Field, e.Value, e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// CompileError means the assembled routine was rejected by the script
// parser. Source is always the complete routine text.
type CompileError struct {
	Source string
	Line   int
	Column int
	Cause  error
}

func newCompileError(source string, cause error) error {
	e := &CompileError{Source: source, Cause: cause}
	if se := (*script.SyntaxError)(nil); errors.As(cause, &se) {
		e.Line, e.Column = se.Line, se.Column
	}
	return e
}

func (e *CompileError) Error() string { return "compile error: " + e.Cause.Error() }

func (e *CompileError) Unwrap() error { return e.Cause }

// SourceLine returns the routine line the error points at, or "" when the
// position is unknown.
func (e *CompileError) SourceLine() string {
	lines := strings.Split(e.Source, "\n")
	if e.Line < 1 || e.Line > len(lines) {
		return ""
	}
	return lines[e.Line-1]
}

// RenderError is raised by code running inside a template. Render returns
// it exactly as the interpreter produced it.
type RenderError = script.RuntimeError

// MultiError gathers independent failures so they can be reported together.
type MultiError struct {
	errs []error
}

func NewMultiError() *MultiError {
	return &MultiError{}
}

// Add records err; nil is ignored.
func (m *MultiError) Add(err error) {
	if err != nil {
		m.errs = append(m.errs, err)
	}
}

func (m *MultiError) Len() int { return len(m.errs) }

// Err returns nil when nothing was added, the error itself when exactly one
// was, and m otherwise.
func (m *MultiError) Err() error {
	switch len(m.errs) {
	case 0:
		return nil
	case 1:
		return m.errs[0]
	}
	return m
}

func (m *MultiError) Unwrap() []error { return m.errs }

func (m *MultiError) Error() string {
	switch len(m.errs) {
	case 0:
		return "no errors"
	case 1:
		return m.errs[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d errors occurred:", len(m.errs))
	for i, err := range m.errs {
		fmt.Fprintf(&b, "\n  [%d] %v", i+1, err)
	}
	return b.String()
}

// ContextError names the operation that failed and the values it was
// working on.
type ContextError struct {
	Operation string
	Context   map[string]interface{}
	Cause     error
}

func (e *ContextError) Error() string {
	if len(e.Context) == 0 {
		return e.Operation + ": " + e.Cause.Error()
	}
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = fmt.Sprintf("%s=%v", k, e.Context[k])
	}
	return fmt.Sprintf("%s [%s]: %v", e.Operation, strings.Join(pairs, ", "), e.Cause)
}

func (e *ContextError) Unwrap() error { return e.Cause }

// WithContext wraps err in a ContextError. It returns nil for a nil err.
func WithContext(err error, operation string, context map[string]interface{}) error {
	if err == nil {
		return nil
	}
	return &ContextError{Operation: operation, Context: context, Cause: err}
}

func IsConfigError(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}

func IsCompileError(err error) bool {
	var target *CompileError
	return errors.As(err, &target)
}

func IsRenderError(err error) bool {
	var target *RenderError
	return errors.As(err, &target)
}
