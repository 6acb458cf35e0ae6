// Package microtpl compiles small text templates with embedded code into
// reusable render routines.
//
// A template mixes literal text with three kinds of directives. With the
// default settings they are written like ERB:
//
//	<%= expr %>   - insert the value of expr
//	<%- expr %>   - insert the value of expr, HTML-escaped
//	<% code %>    - run code; loops and conditionals span directives
//
// A null or undefined value inserts nothing.
//
// # Quick Start
//
//	tmpl, err := microtpl.Compile("Hello, <%= name %>!")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	out, err := tmpl.Render(map[string]interface{}{"name": "Amy"})
//	// out == "Hello, Amy!"
//
// Control flow is ordinary code split across directives:
//
//	<% for (var i = 0; i < items.length; i++) { %>
//	  <li><%- items[i] %></li>
//	<% } %>
//
// # Code
//
// Directive code is a small JavaScript-like language run by the interpreter
// in package script: var, if/else, for, for-of, for-in, while, break,
// continue, the usual operators, member access on maps, slices, structs and
// their exported methods, plus a few string and array methods. print(...)
// appends to the output. The functions escape, unescape, sanitize,
// stripTags, empty and coalesce are always available, together with any
// function registered through a FunctionRegistry.
//
// # Scoping
//
// By default the top-level fields of the data (map keys, struct fields by
// json tag or name) are visible as plain names. Setting Settings.Variable
// binds the data to that single name instead:
//
//	tmpl, _ := microtpl.Compile("<%= data.name %>", microtpl.Settings{Variable: "data"})
//
// # Delimiters
//
// Settings replaces any of the three patterns. Each pattern must have
// exactly one capture group. When two patterns could match at the same
// position, escape wins over interpolate and interpolate over evaluate;
// identical patterns are rejected with a ConfigError. NoMatch disables a
// directive kind.
//
//	mustache := microtpl.Settings{Interpolate: `\{\{(.+?)\}\}`}
//	tmpl, _ := microtpl.Compile("Hello {{ name }}!", mustache)
//
// # Precompilation
//
// Template.Source returns the generated routine. Load turns it back into a
// Template without the tokenizer, so sources can be generated at build time
// and stored, for example with package store.
//
// # Errors
//
// Compile returns a *ConfigError for invalid settings and a *CompileError,
// carrying the generated source, when the routine does not parse. Render
// returns errors raised by template code unchanged as *RenderError.
package microtpl
