package microtpl

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/benjaminschreck/go-microtpl/pkg/microtpl/script"
)

// Function is a Go function that template code can call by name.
type Function interface {
	Name() string

	// Arity reports how many arguments Call accepts. A negative max means
	// there is no upper bound.
	Arity() (min, max int)

	Call(args ...interface{}) (interface{}, error)
}

// FunctionRegistry resolves the function names visible to templates.
type FunctionRegistry interface {
	RegisterFunction(fn Function) error
	GetFunction(name string) (Function, bool)

	// ListFunctions returns the registered names, sorted.
	ListFunctions() []string
}

// Registry is a FunctionRegistry safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Function
}

// NewFunctionRegistry returns a registry holding the builtin functions.
// Registering on it never affects other registries.
func NewFunctionRegistry() *Registry {
	r := &Registry{funcs: make(map[string]Function)}
	for _, fn := range builtinFunctions() {
		r.funcs[fn.Name()] = fn
	}
	return r
}

// RegisterFunction adds fn, replacing any function of the same name. Names
// must be identifiers and may not shadow the routine's own variables or
// print.
func (r *Registry) RegisterFunction(fn Function) error {
	name := fn.Name()
	switch {
	case !script.IsIdentifier(name):
		return fmt.Errorf("invalid function name %q", name)
	case reservedNames[name], name == "print":
		return fmt.Errorf("function name %q is reserved", name)
	}

	r.mu.Lock()
	r.funcs[name] = fn
	r.mu.Unlock()
	return nil
}

func (r *Registry) GetFunction(name string) (Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

func (r *Registry) ListFunctions() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Clone returns an independent copy of r.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := &Registry{funcs: make(map[string]Function, len(r.funcs))}
	for name, fn := range r.funcs {
		c.funcs[name] = fn
	}
	return c
}

var defaultRegistry = sync.OnceValue(NewFunctionRegistry)

// GetDefaultFunctionRegistry returns the shared registry used by compilers
// that were not given one.
func GetDefaultFunctionRegistry() FunctionRegistry {
	return defaultRegistry()
}

type simpleFunction struct {
	name     string
	min, max int
	handler  func(args ...interface{}) (interface{}, error)
}

// NewSimpleFunction wraps handler as a Function taking between minArgs and
// maxArgs arguments (maxArgs < 0 for no limit). Call checks the count
// before handler runs.
func NewSimpleFunction(name string, minArgs, maxArgs int, handler func(args ...interface{}) (interface{}, error)) Function {
	return &simpleFunction{name: name, min: minArgs, max: maxArgs, handler: handler}
}

func (f *simpleFunction) Name() string          { return f.name }
func (f *simpleFunction) Arity() (min, max int) { return f.min, f.max }

func (f *simpleFunction) Call(args ...interface{}) (interface{}, error) {
	if err := checkArity(f, len(args)); err != nil {
		return nil, err
	}
	return f.handler(args...)
}

func checkArity(fn Function, n int) error {
	min, max := fn.Arity()
	if n < min {
		return fmt.Errorf("%s() needs at least %d argument(s), got %d", fn.Name(), min, n)
	}
	if max >= 0 && n > max {
		return fmt.Errorf("%s() takes at most %d argument(s), got %d", fn.Name(), max, n)
	}
	return nil
}

// escapeValue renders a value for HTML output; null becomes "".
func escapeValue(v interface{}) string {
	if script.Primitive(v) == nil {
		return ""
	}
	return EscapeHTML(script.ToString(v))
}

func unescapeValue(v interface{}) string {
	if script.Primitive(v) == nil {
		return ""
	}
	return UnescapeHTML(script.ToString(v))
}

var (
	ugcPolicy    = sync.OnceValue(bluemonday.UGCPolicy)
	strictPolicy = sync.OnceValue(bluemonday.StrictPolicy)
)

// markupFunc applies a string transform to its single argument; null
// becomes "".
func markupFunc(transform func(string) string) func(args ...interface{}) (interface{}, error) {
	return func(args ...interface{}) (interface{}, error) {
		if script.Primitive(args[0]) == nil {
			return "", nil
		}
		return transform(script.ToString(args[0])), nil
	}
}

func builtinFunctions() []Function {
	fns := []Function{
		NewSimpleFunction("escape", 1, 1, markupFunc(EscapeHTML)),
		NewSimpleFunction("unescape", 1, 1, markupFunc(UnescapeHTML)),

		// sanitize keeps user-generated markup but drops scripts and unsafe attributes
		NewSimpleFunction("sanitize", 1, 1, markupFunc(func(s string) string {
			return strings.TrimSpace(ugcPolicy().Sanitize(s))
		})),
		NewSimpleFunction("stripTags", 1, 1, markupFunc(func(s string) string {
			return strictPolicy().Sanitize(s)
		})),

		NewSimpleFunction("empty", 1, 1, func(args ...interface{}) (interface{}, error) {
			return isEmpty(args[0]), nil
		}),
		// coalesce returns its first non-empty argument, or null
		NewSimpleFunction("coalesce", 1, -1, func(args ...interface{}) (interface{}, error) {
			for _, arg := range args {
				if !isEmpty(arg) {
					return arg, nil
				}
			}
			return nil, nil
		}),
	}
	return append(fns, formatFunctions()...)
}

// isEmpty reports whether a value is null, false, zero, an empty string or
// an empty collection.
func isEmpty(val interface{}) bool {
	switch v := script.Primitive(val).(type) {
	case nil:
		return true
	case bool:
		return !v
	case float64:
		return v == 0
	case string:
		return len(v) == 0
	case *script.Array:
		return len(v.Items) == 0
	}

	rv := reflect.Indirect(reflect.ValueOf(val))
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	}
	return false
}
