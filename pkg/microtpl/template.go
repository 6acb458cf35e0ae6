package microtpl

import (
	"errors"
	"io"
	"strings"

	"github.com/benjaminschreck/go-microtpl/pkg/microtpl/script"
)

// Template is a compiled template. It holds no state that changes between
// renders, so one Template may be rendered from many goroutines at once.
type Template struct {
	source   string
	variable string
	fn       *script.Function
	funcs    FunctionRegistry
	maxSteps int
	owner    *Compiler
}

// Compile compiles text with DefaultSettings overridden by settings,
// rightmost wins. It returns a *ConfigError for an invalid grammar and a
// *CompileError when the generated routine does not parse.
func Compile(text string, settings ...Settings) (*Template, error) {
	return NewCompiler(WithMaxSteps(GetGlobalConfig().MaxRenderSteps)).Compile(text, settings...)
}

// Load rebuilds a template from the text returned by Template.Source,
// without going through the delimiter grammar again.
func Load(source string) (*Template, error) {
	return NewCompiler(WithMaxSteps(GetGlobalConfig().MaxRenderSteps)).Load(source)
}

// Render executes the template against data and returns the output. Errors
// raised by template code are returned unmodified as *RenderError.
func (t *Template) Render(data interface{}) (string, error) {
	logger := GetLogger()
	if logger.IsDebugMode() {
		logger.WithFields(Fields{
			"variable":  t.variable,
			"data_type": script.TypeOf(data),
		}).Debug("Rendering template")
	}

	result, err := t.fn.Call(t.globals(), []interface{}{data}, script.Options{MaxSteps: t.maxSteps})
	if err != nil {
		return "", err
	}
	if s, ok := result.(string); ok {
		return s, nil
	}
	if script.Primitive(result) == nil {
		return "", nil
	}
	return script.ToString(result), nil
}

// Execute renders the template and writes the output to w.
func (t *Template) Execute(w io.Writer, data interface{}) error {
	out, err := t.Render(data)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

// Source returns the generated routine text, suitable for Load.
func (t *Template) Source() string {
	return t.source
}

// Variable returns the name the data is bound to, or "" when the data's
// fields are exposed directly.
func (t *Template) Variable() string {
	return t.variable
}

// globals builds the names visible to one render: registered functions,
// the _ helper object and print.
func (t *Template) globals() *script.Env {
	env := script.NewEnv(nil)
	for _, name := range t.funcs.ListFunctions() {
		if fn, ok := t.funcs.GetFunction(name); ok {
			env.Define(name, script.NativeFunc(fn.Call))
		}
	}
	env.Define("_", map[string]interface{}{
		"escape": script.NativeFunc(func(args ...interface{}) (interface{}, error) {
			if len(args) == 0 {
				return "", nil
			}
			return escapeValue(args[0]), nil
		}),
		"unescape": script.NativeFunc(func(args ...interface{}) (interface{}, error) {
			if len(args) == 0 {
				return "", nil
			}
			return unescapeValue(args[0]), nil
		}),
	})
	env.Define("print", script.Intrinsic(printValues))
	return env
}

var errNoBuffer = errors.New("print called outside a template routine")

// printValues appends its arguments to the output buffer of the calling
// routine. Null arguments print nothing.
func printValues(env *script.Env, args []interface{}) (interface{}, error) {
	buf, ok := env.Lookup("__p")
	if !ok {
		return nil, errNoBuffer
	}
	var b strings.Builder
	b.WriteString(script.ToString(buf))
	for _, arg := range args {
		if script.Primitive(arg) != nil {
			b.WriteString(script.ToString(arg))
		}
	}
	return nil, env.Assign("__p", b.String())
}
