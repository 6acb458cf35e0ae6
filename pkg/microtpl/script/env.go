package script

// Env is one link of the scope chain. A link either holds declared
// variables or, for a with-statement, wraps an object whose fields resolve
// as names.
type Env struct {
	vars     map[string]interface{}
	object   interface{}
	scoped   bool
	function bool
	parent   *Env
}

// NewEnv creates a variable scope. A nil parent makes it a root scope,
// which is where globals are defined.
func NewEnv(parent *Env) *Env {
	return &Env{
		vars:     make(map[string]interface{}),
		parent:   parent,
		function: parent == nil,
	}
}

func newFunctionEnv(parent *Env) *Env {
	env := NewEnv(parent)
	env.function = true
	return env
}

func newWithEnv(parent *Env, object interface{}) *Env {
	return &Env{object: object, scoped: true, parent: parent}
}

// Define binds name in this scope, shadowing outer bindings.
func (e *Env) Define(name string, value interface{}) {
	e.vars[name] = value
}

// Lookup resolves name through the scope chain.
func (e *Env) Lookup(name string) (interface{}, bool) {
	for env := e; env != nil; env = env.parent {
		if env.scoped {
			if value, ok := lookupProperty(env.object, name); ok {
				return value, true
			}
			continue
		}
		if value, ok := env.vars[name]; ok {
			return value, true
		}
	}
	return nil, false
}

// Assign stores value in the nearest scope that already binds name. A name
// that is bound nowhere becomes a variable of the enclosing function, so
// assignments never leak into the globals shared by one render.
func (e *Env) Assign(name string, value interface{}) error {
	for env := e; env != nil; env = env.parent {
		if env.scoped {
			if _, ok := lookupProperty(env.object, name); ok {
				return setMember(env.object, name, value)
			}
			continue
		}
		if _, ok := env.vars[name]; ok {
			env.vars[name] = value
			return nil
		}
	}
	e.functionScope().vars[name] = value
	return nil
}

func (e *Env) functionScope() *Env {
	var last *Env
	for env := e; env != nil; env = env.parent {
		if env.function {
			return env
		}
		if !env.scoped {
			last = env
		}
	}
	return last
}

// declare implements var: the binding lives in the function scope, and a
// declaration without initializer keeps an existing value.
func (e *Env) declare(name string, value interface{}, initialized bool) {
	scope := e.functionScope()
	if _, exists := scope.vars[name]; exists && !initialized {
		return
	}
	scope.vars[name] = value
}
