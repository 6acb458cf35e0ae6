package microtpl

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/benjaminschreck/go-microtpl/pkg/microtpl/script"
)

type person struct {
	Name  string   `json:"name"`
	Tags  []string `json:"tags"`
	Admin bool
}

func (p *person) Initials() string {
	if p.Name == "" {
		return ""
	}
	return p.Name[:1]
}

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		template string
		settings []Settings
		data     interface{}
		want     string
	}{
		{
			name:     "hello scenario",
			template: "Hello, <%= name %>!",
			data:     map[string]interface{}{"name": "Amy"},
			want:     "Hello, Amy!",
		},
		{
			name:     "loop with escaping",
			template: "<% for (i=0;i<items.length;i++){ %><%- items[i] %><% } %>",
			data:     map[string]interface{}{"items": []interface{}{"<a>", "<b>"}},
			want:     "&lt;a&gt;&lt;b&gt;",
		},
		{
			name:     "empty template",
			template: "",
			data:     map[string]interface{}{"x": 1},
			want:     "",
		},
		{
			name:     "no directives ignores data",
			template: "just text",
			data:     42,
			want:     "just text",
		},
		{
			name:     "literal delimiters and separators survive",
			template: "It's a \\ test\r\n\"quoted\"\u2028line\u2029para",
			want:     "It's a \\ test\r\n\"quoted\"\u2028line\u2029para",
		},
		{
			name:     "escape directive",
			template: "<%- value %>",
			data:     map[string]interface{}{"value": "<script>"},
			want:     "&lt;script&gt;",
		},
		{
			name:     "all six escaped characters",
			template: "<%- value %>",
			data:     map[string]interface{}{"value": "&<>\"'`"},
			want:     "&amp;&lt;&gt;&quot;&#x27;&#x60;",
		},
		{
			name:     "null interpolate contributes nothing",
			template: "[<%= value %>]",
			data:     map[string]interface{}{"value": nil},
			want:     "[]",
		},
		{
			name:     "undefined escape contributes nothing",
			template: "[<%- user.missing %>]",
			data:     map[string]interface{}{"user": map[string]interface{}{}},
			want:     "[]",
		},
		{
			name:     "nil data in ambient mode",
			template: "<%= typeof x %>",
			data:     nil,
			want:     "undefined",
		},
		{
			name:     "numbers and booleans",
			template: "<%= n * 2 %> <%= ok %> <%= 0 %>",
			data:     map[string]interface{}{"n": 1.5, "ok": false},
			want:     "3 false 0",
		},
		{
			name:     "conditionals",
			template: "<% if (admin) { %>admin<% } else { %>user<% } %>",
			data:     map[string]interface{}{"admin": false},
			want:     "user",
		},
		{
			name:     "print appends to output",
			template: "<% print('a', 1, null); %>b",
			data:     nil,
			want:     "a1b",
		},
		{
			name:     "struct fields through json tags",
			template: "<%= name %>:<% for (var t of tags) { %>[<%= t %>]<% } %>:<%= Admin %>",
			data:     person{Name: "Amy", Tags: []string{"x", "y"}, Admin: true},
			want:     "Amy:[x][y]:true",
		},
		{
			name:     "pointer receiver method",
			template: "<%= p.initials() %>",
			data:     map[string]interface{}{"p": &person{Name: "Zoe"}},
			want:     "Z",
		},
		{
			name:     "named variable",
			template: "<%= data.name %>",
			settings: []Settings{{Variable: "data"}},
			data:     map[string]interface{}{"name": "Amy"},
			want:     "Amy",
		},
		{
			name:     "custom delimiters",
			template: "Hello {{= name }}{{ if (excited) { }}!{{ } }}",
			settings: []Settings{{Interpolate: `\{\{=(.+?)\}\}`, Evaluate: `\{\{(.+?)\}\}`}},
			data:     map[string]interface{}{"name": "Amy", "excited": true},
			want:     "Hello Amy!",
		},
		{
			name:     "disabled evaluate leaves text alone",
			template: "<% x %>",
			settings: []Settings{{Evaluate: NoMatch}},
			want:     "<% x %>",
		},
		{
			name:     "helper object",
			template: "<%= _.escape('<') %><%= _.unescape('&gt;') %><%= escape('&') %>",
			want:     "&lt;>&amp;",
		},
		{
			name:     "sanitize builtin",
			template: "<%= sanitize(html) %>",
			data:     map[string]interface{}{"html": `<b>ok</b><script>alert(1)</script>`},
			want:     "<b>ok</b>",
		},
		{
			name:     "stripTags builtin",
			template: "<%= stripTags(html) %>",
			data:     map[string]interface{}{"html": "<p>Hi <b>there</b></p>"},
			want:     "Hi there",
		},
		{
			name:     "coalesce and empty",
			template: "<%= coalesce(a, b, 'c') %> <%= empty(list) %>",
			data:     map[string]interface{}{"a": "", "b": nil, "list": []int{}},
			want:     "c true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := Compile(tt.template, tt.settings...)
			if err != nil {
				t.Fatalf("Compile() error = %v", err)
			}
			got, err := tmpl.Render(tt.data)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderScopingEquivalence(t *testing.T) {
	data := map[string]interface{}{
		"user":  map[string]interface{}{"name": "<Amy>"},
		"items": []interface{}{"a", "b", "c"},
	}

	ambient, err := Compile("<%- user.name %> has <%= items.length %> items: <% for (var x of items) { %><%= x %><% } %>")
	if err != nil {
		t.Fatalf("Compile(ambient) error = %v", err)
	}
	named, err := Compile("<%- it.user.name %> has <%= it.items.length %> items: <% for (var x of it.items) { %><%= x %><% } %>",
		Settings{Variable: "it"})
	if err != nil {
		t.Fatalf("Compile(named) error = %v", err)
	}

	a, err := ambient.Render(data)
	if err != nil {
		t.Fatalf("ambient Render() error = %v", err)
	}
	n, err := named.Render(data)
	if err != nil {
		t.Fatalf("named Render() error = %v", err)
	}
	if a != n {
		t.Errorf("ambient = %q, named = %q", a, n)
	}
	if a != "&lt;Amy&gt; has 3 items: abc" {
		t.Errorf("Render() = %q", a)
	}
}

func TestNamedVariableHidesFields(t *testing.T) {
	tmpl, err := Compile("<%= name %>", Settings{Variable: "data"})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	_, err = tmpl.Render(map[string]interface{}{"name": "Amy"})
	if !IsRenderError(err) {
		t.Fatalf("Render() error = %v, want RenderError", err)
	}
}

func TestCompileErrorCarriesSource(t *testing.T) {
	tests := []struct {
		name     string
		template string
	}{
		{name: "unclosed block", template: "<% if (x) { %>never closed"},
		{name: "stray brace", template: "<% } %>"},
		{name: "bad expression", template: "<%= 1 + %>"},
		{name: "unsupported syntax", template: "<% function f() {} %>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.template)
			if err == nil {
				t.Fatal("Compile() error = nil, want CompileError")
			}
			var compileErr *CompileError
			if !errors.As(err, &compileErr) {
				t.Fatalf("Compile() error = %T, want *CompileError", err)
			}
			if !strings.HasPrefix(compileErr.Source, "function(obj){\n") || !strings.HasSuffix(compileErr.Source, "return __p;\n}") {
				t.Errorf("Source = %q, want full routine", compileErr.Source)
			}
			var syntaxErr *script.SyntaxError
			if !errors.As(err, &syntaxErr) {
				t.Errorf("Compile() error does not wrap *script.SyntaxError: %v", err)
			}
			if compileErr.Line == 0 || compileErr.SourceLine() == "" {
				t.Errorf("position = %d:%d, want a source line", compileErr.Line, compileErr.Column)
			}
		})
	}
}

func TestCompileConfigError(t *testing.T) {
	_, err := Compile("x", Settings{Escape: `<%=([\s\S]+?)%>`})
	if !IsConfigError(err) {
		t.Fatalf("Compile() error = %v, want ConfigError", err)
	}
}

func TestRenderErrorIsUnmodified(t *testing.T) {
	boom := errors.New("boom")
	reg := NewFunctionRegistry()
	if err := reg.RegisterFunction(NewSimpleFunction("fail", 0, 0, func(args ...interface{}) (interface{}, error) {
		return nil, boom
	})); err != nil {
		t.Fatalf("RegisterFunction() error = %v", err)
	}

	tmpl, err := NewCompiler(WithFunctions(reg)).Compile("a\n<%= fail() %>")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	_, err = tmpl.Render(nil)
	var renderErr *RenderError
	if !errors.As(err, &renderErr) {
		t.Fatalf("Render() error = %T, want *RenderError", err)
	}
	if err != error(renderErr) {
		t.Error("Render() wrapped the interpreter error")
	}
	if !errors.Is(err, boom) {
		t.Errorf("errors.Is(err, boom) = false for %v", err)
	}
}

func TestRenderUndefinedName(t *testing.T) {
	tmpl, err := Compile("<%= nope %>")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	_, err = tmpl.Render(map[string]interface{}{})
	if !IsRenderError(err) || !strings.Contains(err.Error(), "nope is not defined") {
		t.Errorf("Render() error = %v", err)
	}
}

func TestRenderStepLimit(t *testing.T) {
	tmpl, err := NewCompiler(WithMaxSteps(50)).Compile("<% while (true) { } %>")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	_, err = tmpl.Render(nil)
	if !errors.Is(err, script.ErrStepLimit) {
		t.Errorf("Render() error = %v, want step limit", err)
	}
}

func TestTemplateSource(t *testing.T) {
	tmpl, err := Compile("a<%= b %>c", Settings{Variable: "data"})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	want := "function(data){\nvar __t,__p='';\n__p+='a'+\n((__t=( b ))==null?'':__t)+\n'c';\nreturn __p;\n}"
	if got := tmpl.Source(); got != want {
		t.Errorf("Source() = %q, want %q", got, want)
	}
	if tmpl.Variable() != "data" {
		t.Errorf("Variable() = %q, want data", tmpl.Variable())
	}
}

func TestLoadRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		template string
		settings Settings
		data     interface{}
	}{
		{
			name:     "ambient",
			template: "<% for (var k in m) { %><%= k %>=<%- m[k] %>;<% } %>",
			data:     map[string]interface{}{"m": map[string]interface{}{"b": "<", "a": 1}},
		},
		{
			name:     "named",
			template: "<%= d.x %>'\n",
			settings: Settings{Variable: "d"},
			data:     map[string]interface{}{"x": "y"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig, err := Compile(tt.template, tt.settings)
			if err != nil {
				t.Fatalf("Compile() error = %v", err)
			}
			loaded, err := Load(orig.Source())
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if loaded.Variable() != orig.Variable() {
				t.Errorf("Variable() = %q, want %q", loaded.Variable(), orig.Variable())
			}

			want, err := orig.Render(tt.data)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			got, err := loaded.Render(tt.data)
			if err != nil {
				t.Fatalf("loaded Render() error = %v", err)
			}
			if got != want {
				t.Errorf("loaded Render() = %q, want %q", got, want)
			}
		})
	}
}

func TestLoadRejectsBrokenSource(t *testing.T) {
	_, err := Load("function(obj){ return ")
	if !IsCompileError(err) {
		t.Errorf("Load() error = %v, want CompileError", err)
	}
	_, err = Load("function(){ return 1 }")
	if !IsCompileError(err) {
		t.Errorf("Load() error = %v, want CompileError for missing parameter", err)
	}
}

func TestExecute(t *testing.T) {
	tmpl, err := Compile("<%= a %>-<%= b %>")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]interface{}{"a": 1, "b": 2}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if buf.String() != "1-2" {
		t.Errorf("Execute() wrote %q, want 1-2", buf.String())
	}
}

func TestRenderConcurrently(t *testing.T) {
	tmpl, err := Compile("<% var total = 0; for (var n of nums) { total += n } %><%= label %>=<%= total %>")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			label := fmt.Sprintf("r%d", i)
			got, err := tmpl.Render(map[string]interface{}{"label": label, "nums": []int{i, i, i}})
			if err != nil {
				errs <- err
				return
			}
			if want := fmt.Sprintf("%s=%d", label, 3*i); got != want {
				errs <- fmt.Errorf("Render() = %q, want %q", got, want)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestRenderDoesNotMutateGlobals(t *testing.T) {
	tmpl, err := Compile("<% escape = null; _.escape = null %>ok")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := tmpl.Render(nil); err != nil {
			t.Fatalf("Render() #%d error = %v", i, err)
		}
	}

	again, err := Compile("<%- '<' %><%= escape('>') %>")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	got, err := again.Render(nil)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if got != "&lt;&gt;" {
		t.Errorf("Render() = %q, want &lt;&gt;", got)
	}
}
