package script

import (
	"errors"
	"fmt"
)

// SyntaxError reports source text that could not be parsed.
type SyntaxError struct {
	Message string
	Line    int
	Column  int
}

func (e *SyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("syntax error at line %d, column %d: %s", e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("syntax error: %s", e.Message)
}

func newSyntaxError(tok Token, format string, args ...interface{}) error {
	return &SyntaxError{
		Message: fmt.Sprintf(format, args...),
		Line:    tok.Line,
		Column:  tok.Column,
	}
}

// RuntimeError reports a failure while executing a parsed function.
type RuntimeError struct {
	Message string
	Line    int
	Column  int
	Cause   error
}

func (e *RuntimeError) Error() string {
	msg := e.Message
	switch {
	case e.Cause != nil && msg == "":
		msg = e.Cause.Error()
	case e.Cause != nil:
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Line > 0 {
		return fmt.Sprintf("runtime error at line %d, column %d: %s", e.Line, e.Column, msg)
	}
	return fmt.Sprintf("runtime error: %s", msg)
}

func (e *RuntimeError) Unwrap() error {
	return e.Cause
}

func runtimeErrorf(pos Position, format string, args ...interface{}) error {
	return &RuntimeError{
		Message: fmt.Sprintf(format, args...),
		Line:    pos.Line,
		Column:  pos.Column,
	}
}

// atPosition attaches a position to errors raised below the node level,
// leaving errors that already carry one untouched.
func atPosition(pos Position, err error) error {
	if err == nil {
		return nil
	}
	var rt *RuntimeError
	if errors.As(err, &rt) {
		if rt.Line == 0 {
			rt.Line, rt.Column = pos.Line, pos.Column
		}
		return err
	}
	return &RuntimeError{Line: pos.Line, Column: pos.Column, Cause: err}
}

// ErrStepLimit is the cause attached when a run exceeds Options.MaxSteps.
var ErrStepLimit = errors.New("step limit exceeded")

// MaxStringLength bounds, in bytes, every string built by concatenation,
// repeat or padding.
const MaxStringLength = 1 << 26

// ErrStringTooLong is the cause attached when a string would grow past
// MaxStringLength.
var ErrStringTooLong = errors.New("invalid string length")

// checkLength rejects a string result of n bytes.
func checkLength(n float64) error {
	if n > MaxStringLength {
		return fmt.Errorf("%w: %s bytes exceeds the limit of %d", ErrStringTooLong, formatNumber(n), MaxStringLength)
	}
	return nil
}

func recoverError(r interface{}) error {
	switch v := r.(type) {
	case error:
		return &RuntimeError{Message: "panic recovered", Cause: v}
	case string:
		return &RuntimeError{Message: "panic recovered: " + v}
	default:
		return &RuntimeError{Message: fmt.Sprintf("panic recovered: %v", v)}
	}
}
