package microtpl

// Compiler turns template text into Templates. Its settings are an explicit
// value layered over DefaultSettings; nothing is read from mutable globals
// after construction.
type Compiler struct {
	settings Settings
	funcs    FunctionRegistry
	cache    *TemplateCache
	maxSteps int
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithSettings layers s over the compiler's current settings.
func WithSettings(s Settings) Option {
	return func(c *Compiler) {
		c.settings = MergeSettings(c.settings, s)
	}
}

// WithFunctions replaces the functions visible to templates.
func WithFunctions(r FunctionRegistry) Option {
	return func(c *Compiler) {
		c.funcs = r
	}
}

// WithCache caches compiled templates by text and settings. A cache may be
// shared between compilers: a template compiled by one is rebound to the
// functions and step limit of the compiler that asks for it.
func WithCache(cache *TemplateCache) Option {
	return func(c *Compiler) {
		c.cache = cache
	}
}

// WithMaxSteps bounds loop iterations and calls per render. 0 means unlimited.
func WithMaxSteps(n int) Option {
	return func(c *Compiler) {
		c.maxSteps = n
	}
}

// WithConfig applies the settings, step limit and cache size of cfg.
func WithConfig(cfg *Config) Option {
	return func(c *Compiler) {
		c.settings = MergeSettings(c.settings, cfg.Settings)
		c.maxSteps = cfg.MaxRenderSteps
		if cfg.CacheMaxSize > 0 {
			c.cache = NewTemplateCacheWithConfig(CacheConfig{MaxSize: cfg.CacheMaxSize, TTL: cfg.CacheTTL})
		}
	}
}

// NewCompiler creates a compiler using DefaultSettings and the default
// function registry, then applies opts in order.
func NewCompiler(opts ...Option) *Compiler {
	c := &Compiler{
		settings: DefaultSettings(),
		funcs:    GetDefaultFunctionRegistry(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Settings returns the compiler's base settings.
func (c *Compiler) Settings() Settings {
	return c.settings
}

// Compile compiles text with the compiler's settings overridden by
// overrides, rightmost wins.
func (c *Compiler) Compile(text string, overrides ...Settings) (*Template, error) {
	settings := MergeSettings(append([]Settings{c.settings}, overrides...)...)
	if c.cache == nil {
		return c.compile(text, settings)
	}
	tmpl, err := c.cache.GetOrCompile(cacheKey(text, settings), func() (*Template, error) {
		return c.compile(text, settings)
	})
	if err != nil {
		return nil, err
	}
	return c.bind(tmpl), nil
}

// bind returns tmpl, or a copy sharing its routine but using c's functions
// and step limit when another compiler built it.
func (c *Compiler) bind(tmpl *Template) *Template {
	if tmpl.owner == c {
		return tmpl
	}
	bound := *tmpl
	bound.funcs = c.funcs
	bound.maxSteps = c.maxSteps
	bound.owner = c
	return &bound
}

func (c *Compiler) compile(text string, settings Settings) (*Template, error) {
	grammar, err := settings.Grammar()
	if err != nil {
		return nil, err
	}

	segments := Tokenize(text, grammar)
	source := buildSource(Assemble(segments), settings.Variable)

	logger := GetLogger()
	if logger.IsDebugMode() {
		logger.WithFields(Fields{
			"segments":      len(segments),
			"source_length": len(source),
		}).Debug("Assembled routine")
	}

	fn, err := buildRoutine(source)
	if err != nil {
		if logger.IsDebugMode() {
			logger.WithField("error", err).Debug("Routine failed to build")
		}
		return nil, err
	}

	return &Template{
		source:   source,
		variable: settings.Variable,
		fn:       fn,
		funcs:    c.funcs,
		maxSteps: c.maxSteps,
		owner:    c,
	}, nil
}

// Load rebuilds a template from generated source.
func (c *Compiler) Load(source string) (*Template, error) {
	fn, err := buildRoutine(source)
	if err != nil {
		return nil, err
	}
	variable := fn.Params[0]
	if isAmbient(fn) {
		variable = ""
	}
	return &Template{
		source:   source,
		variable: variable,
		fn:       fn,
		funcs:    c.funcs,
		maxSteps: c.maxSteps,
		owner:    c,
	}, nil
}
