package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"github.com/benjaminschreck/go-microtpl/pkg/microtpl"
	"github.com/benjaminschreck/go-microtpl/pkg/microtpl/store"
)

var errUsage = errors.New("usage")

type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// compileFlags are shared by every command that compiles template text.
type compileFlags struct {
	config      string
	variable    string
	escape      string
	interpolate string
	evaluate    string
}

func (f *compileFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.config, "config", "", "YAML configuration file (default: MICROTPL_* environment)")
	fs.StringVar(&f.variable, "variable", "", "bind the data to this name instead of exposing its fields")
	fs.StringVar(&f.escape, "escape", "", "regexp for escaped interpolation")
	fs.StringVar(&f.interpolate, "interpolate", "", "regexp for raw interpolation")
	fs.StringVar(&f.evaluate, "evaluate", "", "regexp for evaluated code")
}

func (f *compileFlags) settings() microtpl.Settings {
	return microtpl.Settings{
		Escape:      f.escape,
		Interpolate: f.interpolate,
		Evaluate:    f.evaluate,
		Variable:    f.variable,
	}
}

func (c *cli) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return nil
}

// loadConfig reads the configuration file when one is given, otherwise the
// environment, and installs it globally so the log level applies.
func loadConfig(path string) (*microtpl.Config, error) {
	var cfg *microtpl.Config
	if path != "" {
		var err error
		if cfg, err = microtpl.LoadConfigFile(path); err != nil {
			return nil, err
		}
	} else {
		cfg = microtpl.ConfigFromEnvironment()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid environment configuration: %w", err)
		}
	}
	microtpl.SetGlobalConfig(cfg)
	return cfg, nil
}

func (c *cli) compiler(f *compileFlags) (*microtpl.Compiler, error) {
	cfg, err := loadConfig(f.config)
	if err != nil {
		return nil, err
	}
	return microtpl.NewCompiler(microtpl.WithConfig(cfg), microtpl.WithSettings(f.settings())), nil
}

func (c *cli) readTemplate(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(c.stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}

// loadData decodes a JSON or YAML data file, chosen by extension.
func loadData(path string) (interface{}, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var data interface{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(raw, &data)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &data)
	default:
		return nil, fmt.Errorf("unsupported data file type %q (want .json, .yaml or .yml)", ext)
	}
	if err != nil {
		return nil, microtpl.WithContext(err, "decode data", map[string]interface{}{"path": path})
	}
	return data, nil
}

// writeOutput writes text to path atomically, or to stdout when path is empty.
func (c *cli) writeOutput(path, text string) error {
	if path == "" {
		_, err := io.WriteString(c.stdout, text)
		return err
	}
	return atomic.WriteFile(path, strings.NewReader(text))
}

func (c *cli) compile(args []string) error {
	fs := c.newFlagSet("compile")
	var flags compileFlags
	flags.register(fs)
	out := fs.String("o", "", "write the routine source to this file")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(c.stderr, "Usage: microtpl compile [flags] <template>")
		return errUsage
	}

	compiler, err := c.compiler(&flags)
	if err != nil {
		return err
	}
	text, err := c.readTemplate(fs.Arg(0))
	if err != nil {
		return err
	}
	tmpl, err := compiler.Compile(text)
	if err != nil {
		return describeCompileError(err)
	}

	source := tmpl.Source()
	if *out == "" {
		source += "\n"
	}
	return c.writeOutput(*out, source)
}

func (c *cli) render(args []string) error {
	fs := c.newFlagSet("render")
	var flags compileFlags
	flags.register(fs)
	dataPath := fs.String("data", "", "JSON or YAML data file")
	out := fs.String("o", "", "write the output to this file")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(c.stderr, "Usage: microtpl render [flags] -data <file> <template>")
		return errUsage
	}

	compiler, err := c.compiler(&flags)
	if err != nil {
		return err
	}
	text, err := c.readTemplate(fs.Arg(0))
	if err != nil {
		return err
	}
	tmpl, err := compiler.Compile(text)
	if err != nil {
		return describeCompileError(err)
	}
	return c.renderTo(tmpl, *dataPath, *out)
}

func (c *cli) renderTo(tmpl *microtpl.Template, dataPath, out string) error {
	if dataPath == "" {
		microtpl.GetLogger().Warn("Rendering without a data file")
	}
	data, err := loadData(dataPath)
	if err != nil {
		return err
	}
	result, err := tmpl.Render(data)
	if err != nil {
		return err
	}
	return c.writeOutput(out, result)
}

// describeCompileError appends the offending routine line to compile errors.
func describeCompileError(err error) error {
	var compileErr *microtpl.CompileError
	if errors.As(err, &compileErr) {
		if line := compileErr.SourceLine(); line != "" {
			return fmt.Errorf("%w\n  at line %d: %s", err, compileErr.Line, line)
		}
	}
	return err
}

func (c *cli) store(args []string) error {
	fs := c.newFlagSet("store")
	dsn := fs.String("db", "microtpl.db", "SQLite database path")
	config := fs.String("config", "", "YAML configuration file (default: MICROTPL_* environment)")
	fs.Usage = func() {
		fmt.Fprintln(c.stderr, "Usage: microtpl store [-db dsn] <subcommand>")
		fmt.Fprintln(c.stderr, "\nSubcommands:")
		fmt.Fprintln(c.stderr, "  put [flags] <name> <template>   Compile and store a template")
		fmt.Fprintln(c.stderr, "  get <name>                      Print a stored routine")
		fmt.Fprintln(c.stderr, "  list                            List stored templates")
		fmt.Fprintln(c.stderr, "  delete <name>                   Remove a stored template")
		fmt.Fprintln(c.stderr, "  render [-data f] <name>         Render a stored template")
		fmt.Fprintln(c.stderr, "  export <name> <file>            Write a stored routine to a file")
	}
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return errUsage
	}

	cfg, err := loadConfig(*config)
	if err != nil {
		return err
	}
	ctx := context.Background()
	db, err := store.Open(ctx, *dsn, store.WithCompiler(microtpl.NewCompiler(microtpl.WithConfig(cfg))))
	if err != nil {
		return err
	}
	defer db.Close()

	sub, rest := fs.Arg(0), fs.Args()[1:]
	switch sub {
	case "put":
		return c.storePut(ctx, db, cfg, rest)
	case "get":
		if len(rest) != 1 {
			fs.Usage()
			return errUsage
		}
		source, err := db.Source(ctx, rest[0])
		if err != nil {
			return err
		}
		return c.writeOutput("", source+"\n")
	case "list":
		entries, err := db.List(ctx)
		if err != nil {
			return err
		}
		for _, e := range entries {
			variable := e.Variable
			if variable == "" {
				variable = "-"
			}
			fmt.Fprintf(c.stdout, "%s\t%s\t%s\n", e.Name, variable, e.UpdatedAt.UTC().Format(time.RFC3339))
		}
		return nil
	case "delete":
		if len(rest) != 1 {
			fs.Usage()
			return errUsage
		}
		return db.Delete(ctx, rest[0])
	case "render":
		sfs := c.newFlagSet("store render")
		dataPath := sfs.String("data", "", "JSON or YAML data file")
		out := sfs.String("o", "", "write the output to this file")
		if err := parseFlags(sfs, rest); err != nil {
			return err
		}
		if sfs.NArg() != 1 {
			fs.Usage()
			return errUsage
		}
		tmpl, err := db.Get(ctx, sfs.Arg(0))
		if err != nil {
			return err
		}
		return c.renderTo(tmpl, *dataPath, *out)
	case "export":
		if len(rest) != 2 {
			fs.Usage()
			return errUsage
		}
		source, err := db.Source(ctx, rest[0])
		if err != nil {
			return err
		}
		return c.writeOutput(rest[1], source)
	default:
		fmt.Fprintf(c.stderr, "Unknown store subcommand: %s\n", sub)
		fs.Usage()
		return errUsage
	}
}

func (c *cli) storePut(ctx context.Context, db *store.Store, cfg *microtpl.Config, args []string) error {
	fs := c.newFlagSet("store put")
	var flags compileFlags
	flags.register(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(c.stderr, "Usage: microtpl store put [flags] <name> <template>")
		return errUsage
	}
	if flags.config != "" {
		var err error
		if cfg, err = loadConfig(flags.config); err != nil {
			return err
		}
	}

	compiler := microtpl.NewCompiler(microtpl.WithConfig(cfg), microtpl.WithSettings(flags.settings()))
	text, err := c.readTemplate(fs.Arg(1))
	if err != nil {
		return err
	}
	tmpl, err := compiler.Compile(text)
	if err != nil {
		return describeCompileError(err)
	}
	return db.Put(ctx, fs.Arg(0), tmpl)
}
