package microtpl

import (
	"strings"

	"github.com/benjaminschreck/go-microtpl/pkg/microtpl/script"
)

// ambientParam receives the data when no variable is configured.
const ambientParam = "obj"

// buildSource wraps an assembled body into the complete routine text. With
// a variable the data is visible under that name only; without one the
// body runs inside with(obj||{}) so the data's fields resolve as names.
func buildSource(body, variable string) string {
	param := variable
	if param == "" {
		param = ambientParam
		body = "with(" + ambientParam + "||{}){\n" + body + "}\n"
	}

	var b strings.Builder
	b.WriteString("function(")
	b.WriteString(param)
	b.WriteString("){\n")
	b.WriteString("var __t,__p='';\n")
	b.WriteString(body)
	b.WriteString("return __p;\n")
	b.WriteString("}")
	return b.String()
}

// buildRoutine parses the routine text. Any failure is a CompileError
// carrying the full source.
func buildRoutine(source string) (*script.Function, error) {
	fn, err := script.ParseFunction(source)
	if err != nil {
		return nil, newCompileError(source, err)
	}
	if len(fn.Params) == 0 {
		return nil, newCompileError(source, &script.SyntaxError{Message: "routine takes no data parameter"})
	}
	return fn, nil
}

// isAmbient reports whether a parsed routine exposes its data through a
// top-level with statement.
func isAmbient(fn *script.Function) bool {
	for _, stmt := range fn.Body {
		if _, ok := stmt.(*script.WithStmt); ok {
			return true
		}
	}
	return false
}
