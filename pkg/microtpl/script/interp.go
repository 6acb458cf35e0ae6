package script

import (
	"fmt"
	"math"
)

// Options tunes a single call.
type Options struct {
	// MaxSteps bounds the number of loop iterations and calls. 0 disables
	// the limit.
	MaxSteps int
}

type completion int

const (
	completeNormal completion = iota
	completeBreak
	completeContinue
	completeReturn
)

type interp struct {
	steps    int
	maxSteps int
	result   interface{}
}

func (in *interp) step(pos Position) error {
	in.steps++
	if in.maxSteps > 0 && in.steps > in.maxSteps {
		return &RuntimeError{
			Message: fmt.Sprintf("aborted after %d steps", in.maxSteps),
			Line:    pos.Line,
			Column:  pos.Column,
			Cause:   ErrStepLimit,
		}
	}
	return nil
}

// Call runs the function with args bound to its parameters in a fresh scope
// whose parent is globals. Missing arguments are null. Every call allocates
// its own scope and step counter, so one Function may be called from many
// goroutines as long as globals is not shared between them.
func (f *Function) Call(globals *Env, args []interface{}, opts Options) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, recoverError(r)
		}
	}()

	env := newFunctionEnv(globals)
	for i, name := range f.Params {
		var value interface{}
		if i < len(args) {
			value = args[i]
		}
		env.Define(name, value)
	}

	in := &interp{maxSteps: opts.MaxSteps}
	c, err := execList(in, env, f.Body)
	if err != nil {
		return nil, err
	}
	if c == completeReturn {
		return in.result, nil
	}
	return nil, nil
}

// Eval evaluates a parsed expression in env.
func Eval(expr Expr, env *Env, opts Options) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, recoverError(r)
		}
	}()
	return expr.eval(&interp{maxSteps: opts.MaxSteps}, env)
}

func execList(in *interp, env *Env, body []Stmt) (completion, error) {
	for _, stmt := range body {
		c, err := stmt.exec(in, env)
		if err != nil || c != completeNormal {
			return c, err
		}
	}
	return completeNormal, nil
}

func (s *VarStmt) exec(in *interp, env *Env) (completion, error) {
	for i, name := range s.Names {
		if s.Inits[i] == nil {
			env.declare(name, nil, false)
			continue
		}
		value, err := s.Inits[i].eval(in, env)
		if err != nil {
			return completeNormal, err
		}
		env.declare(name, value, true)
	}
	return completeNormal, nil
}

func (s *ExprStmt) exec(in *interp, env *Env) (completion, error) {
	_, err := s.X.eval(in, env)
	return completeNormal, err
}

func (s *BlockStmt) exec(in *interp, env *Env) (completion, error) {
	return execList(in, env, s.Body)
}

func (s *EmptyStmt) exec(in *interp, env *Env) (completion, error) {
	return completeNormal, nil
}

func (s *IfStmt) exec(in *interp, env *Env) (completion, error) {
	test, err := s.Test.eval(in, env)
	if err != nil {
		return completeNormal, err
	}
	if Truthy(test) {
		return s.Then.exec(in, env)
	}
	if s.Else != nil {
		return s.Else.exec(in, env)
	}
	return completeNormal, nil
}

// loopBody runs one iteration and reports whether the loop should stop.
func loopBody(in *interp, env *Env, pos Position, body Stmt) (stop bool, c completion, err error) {
	if err := in.step(pos); err != nil {
		return true, completeNormal, err
	}
	c, err = body.exec(in, env)
	switch {
	case err != nil:
		return true, completeNormal, err
	case c == completeBreak:
		return true, completeNormal, nil
	case c == completeReturn:
		return true, c, nil
	}
	return false, completeNormal, nil
}

func (s *ForStmt) exec(in *interp, env *Env) (completion, error) {
	if s.Init != nil {
		if _, err := s.Init.exec(in, env); err != nil {
			return completeNormal, err
		}
	}
	for {
		if s.Test != nil {
			test, err := s.Test.eval(in, env)
			if err != nil {
				return completeNormal, err
			}
			if !Truthy(test) {
				return completeNormal, nil
			}
		}
		if stop, c, err := loopBody(in, env, s.pos, s.Body); stop {
			return c, err
		}
		if s.Update != nil {
			if _, err := s.Update.eval(in, env); err != nil {
				return completeNormal, err
			}
		}
	}
}

func (s *ForEachStmt) exec(in *interp, env *Env) (completion, error) {
	iterable, err := s.Iterable.eval(in, env)
	if err != nil {
		return completeNormal, err
	}

	var items []interface{}
	if s.Of {
		items, err = iterValues(iterable)
	} else {
		items, err = iterKeys(iterable)
	}
	if err != nil {
		return completeNormal, atPosition(s.pos, err)
	}

	for _, item := range items {
		if s.Declare {
			env.declare(s.Name, item, true)
		} else if err := env.Assign(s.Name, item); err != nil {
			return completeNormal, atPosition(s.pos, err)
		}
		if stop, c, err := loopBody(in, env, s.pos, s.Body); stop {
			return c, err
		}
	}
	return completeNormal, nil
}

func (s *WhileStmt) exec(in *interp, env *Env) (completion, error) {
	for first := true; ; first = false {
		if first && s.Post {
			if stop, c, err := loopBody(in, env, s.pos, s.Body); stop {
				return c, err
			}
			continue
		}
		test, err := s.Test.eval(in, env)
		if err != nil {
			return completeNormal, err
		}
		if !Truthy(test) {
			return completeNormal, nil
		}
		if stop, c, err := loopBody(in, env, s.pos, s.Body); stop {
			return c, err
		}
	}
}

func (s *BranchStmt) exec(in *interp, env *Env) (completion, error) {
	if s.Keyword == "break" {
		return completeBreak, nil
	}
	return completeContinue, nil
}

func (s *ReturnStmt) exec(in *interp, env *Env) (completion, error) {
	in.result = nil
	if s.Value != nil {
		value, err := s.Value.eval(in, env)
		if err != nil {
			return completeNormal, err
		}
		in.result = value
	}
	return completeReturn, nil
}

func (s *WithStmt) exec(in *interp, env *Env) (completion, error) {
	obj, err := s.Object.eval(in, env)
	if err != nil {
		return completeNormal, err
	}
	return s.Body.exec(in, newWithEnv(env, obj))
}

func (n *LiteralNode) eval(in *interp, env *Env) (interface{}, error) {
	return n.Value, nil
}

func (n *IdentifierNode) eval(in *interp, env *Env) (interface{}, error) {
	value, ok := env.Lookup(n.Name)
	if !ok {
		return nil, runtimeErrorf(n.pos, "%s is not defined", n.Name)
	}
	return value, nil
}

func (n *ArrayNode) eval(in *interp, env *Env) (interface{}, error) {
	items := make([]interface{}, len(n.Elements))
	for i, el := range n.Elements {
		value, err := el.eval(in, env)
		if err != nil {
			return nil, err
		}
		items[i] = value
	}
	return &Array{Items: items}, nil
}

func (n *ObjectNode) eval(in *interp, env *Env) (interface{}, error) {
	obj := make(map[string]interface{}, len(n.Keys))
	for i, key := range n.Keys {
		value, err := n.Values[i].eval(in, env)
		if err != nil {
			return nil, err
		}
		obj[key] = value
	}
	return obj, nil
}

func (n *MemberNode) eval(in *interp, env *Env) (interface{}, error) {
	obj, err := n.Object.eval(in, env)
	if err != nil {
		return nil, err
	}
	key, err := n.Property.eval(in, env)
	if err != nil {
		return nil, err
	}
	value, err := getMember(obj, key)
	return value, atPosition(n.pos, err)
}

func (n *CallNode) eval(in *interp, env *Env) (interface{}, error) {
	if err := in.step(n.pos); err != nil {
		return nil, err
	}

	callee, err := n.Callee.eval(in, env)
	if err != nil {
		return nil, err
	}

	args := make([]interface{}, len(n.Args))
	for i, arg := range n.Args {
		if args[i], err = arg.eval(in, env); err != nil {
			return nil, err
		}
	}

	if !IsCallable(callee) {
		return nil, runtimeErrorf(n.pos, "%s is not a function", calleeName(n.Callee))
	}
	result, err := callValue(env, callee, args)
	return result, atPosition(n.pos, err)
}

func calleeName(expr Expr) string {
	switch e := expr.(type) {
	case *IdentifierNode:
		return e.Name
	case *MemberNode:
		if lit, ok := e.Property.(*LiteralNode); ok {
			return calleeName(e.Object) + "." + ToString(lit.Value)
		}
		return calleeName(e.Object) + "[...]"
	default:
		return "expression"
	}
}

func (n *UnaryNode) eval(in *interp, env *Env) (interface{}, error) {
	if n.Operator == "typeof" {
		if id, ok := n.Operand.(*IdentifierNode); ok {
			value, found := env.Lookup(id.Name)
			if !found {
				return "undefined", nil
			}
			return TypeOf(value), nil
		}
	}

	operand, err := n.Operand.eval(in, env)
	if err != nil {
		return nil, err
	}

	switch n.Operator {
	case "!":
		return !Truthy(operand), nil
	case "-":
		return -ToNumber(operand), nil
	case "+":
		return ToNumber(operand), nil
	case "typeof":
		return TypeOf(operand), nil
	default:
		return nil, runtimeErrorf(n.pos, "unknown unary operator: %s", n.Operator)
	}
}

// reference evaluates an assignment target to something that can be read
// and written.
func reference(in *interp, env *Env, target Expr) (get func() (interface{}, error), set func(interface{}) error, err error) {
	switch t := target.(type) {
	case *IdentifierNode:
		get = func() (interface{}, error) { return t.eval(in, env) }
		set = func(v interface{}) error { return atPosition(t.pos, env.Assign(t.Name, v)) }
		return get, set, nil
	case *MemberNode:
		obj, err := t.Object.eval(in, env)
		if err != nil {
			return nil, nil, err
		}
		key, err := t.Property.eval(in, env)
		if err != nil {
			return nil, nil, err
		}
		get = func() (interface{}, error) {
			v, err := getMember(obj, key)
			return v, atPosition(t.pos, err)
		}
		set = func(v interface{}) error { return atPosition(t.pos, setMember(obj, key, v)) }
		return get, set, nil
	default:
		return nil, nil, runtimeErrorf(target.Position(), "invalid assignment target")
	}
}

func (n *UpdateNode) eval(in *interp, env *Env) (interface{}, error) {
	get, set, err := reference(in, env, n.Target)
	if err != nil {
		return nil, err
	}
	current, err := get()
	if err != nil {
		return nil, err
	}
	old := ToNumber(current)
	updated := old + 1
	if n.Operator == "--" {
		updated = old - 1
	}
	if err := set(updated); err != nil {
		return nil, err
	}
	if n.Prefix {
		return updated, nil
	}
	return old, nil
}

func (n *AssignNode) eval(in *interp, env *Env) (interface{}, error) {
	get, set, err := reference(in, env, n.Target)
	if err != nil {
		return nil, err
	}
	value, err := n.Value.eval(in, env)
	if err != nil {
		return nil, err
	}
	if n.Operator != "=" {
		current, err := get()
		if err != nil {
			return nil, err
		}
		if value, err = BinaryOperation(current, n.Operator[:1], value); err != nil {
			return nil, atPosition(n.pos, err)
		}
	}
	return value, set(value)
}

func (n *BinaryNode) eval(in *interp, env *Env) (interface{}, error) {
	left, err := n.Left.eval(in, env)
	if err != nil {
		return nil, err
	}
	right, err := n.Right.eval(in, env)
	if err != nil {
		return nil, err
	}
	result, err := BinaryOperation(left, n.Operator, right)
	return result, atPosition(n.pos, err)
}

func (n *LogicalNode) eval(in *interp, env *Env) (interface{}, error) {
	left, err := n.Left.eval(in, env)
	if err != nil {
		return nil, err
	}
	if Truthy(left) == (n.Operator == "||") {
		return left, nil
	}
	return n.Right.eval(in, env)
}

func (n *ConditionalNode) eval(in *interp, env *Env) (interface{}, error) {
	test, err := n.Test.eval(in, env)
	if err != nil {
		return nil, err
	}
	if Truthy(test) {
		return n.Then.eval(in, env)
	}
	return n.Else.eval(in, env)
}

// BinaryOperation applies an arithmetic, comparison or equality operator.
func BinaryOperation(left interface{}, operator string, right interface{}) (interface{}, error) {
	switch operator {
	case "+":
		return add(left, right)
	case "-":
		return ToNumber(left) - ToNumber(right), nil
	case "*":
		return ToNumber(left) * ToNumber(right), nil
	case "/":
		return ToNumber(left) / ToNumber(right), nil
	case "%":
		return math.Mod(ToNumber(left), ToNumber(right)), nil
	case "==":
		return LooseEquals(left, right), nil
	case "!=":
		return !LooseEquals(left, right), nil
	case "===":
		return StrictEquals(left, right), nil
	case "!==":
		return !StrictEquals(left, right), nil
	case "<", ">", "<=", ">=":
		return compare(left, operator, right), nil
	default:
		return nil, fmt.Errorf("unknown binary operator: %s", operator)
	}
}

func add(left, right interface{}) (interface{}, error) {
	l, r := Primitive(left), Primitive(right)
	if isNumeric(l) && isNumeric(r) {
		return ToNumber(l) + ToNumber(r), nil
	}
	ls, rs := ToString(l), ToString(r)
	if err := checkLength(float64(len(ls) + len(rs))); err != nil {
		return nil, err
	}
	return ls + rs, nil
}

func isNumeric(v interface{}) bool {
	switch v.(type) {
	case nil, bool, float64:
		return true
	default:
		return false
	}
}

func compare(left interface{}, operator string, right interface{}) bool {
	l, r := Primitive(left), Primitive(right)
	ls, lok := l.(string)
	rs, rok := r.(string)
	if lok && rok {
		switch operator {
		case "<":
			return ls < rs
		case ">":
			return ls > rs
		case "<=":
			return ls <= rs
		default:
			return ls >= rs
		}
	}
	ln, rn := ToNumber(l), ToNumber(r)
	switch operator {
	case "<":
		return ln < rn
	case ">":
		return ln > rn
	case "<=":
		return ln <= rn
	default:
		return ln >= rn
	}
}
