package microtpl

import (
	"fmt"
	"regexp"

	"github.com/benjaminschreck/go-microtpl/pkg/microtpl/script"
)

// NoMatch is a pattern that can never match. Assigning it to a slot
// disables that directive kind.
const NoMatch = `(.)^`

// Settings configures the delimiters of one compilation. An empty field is
// unset and inherits from the layer to its left when merged.
type Settings struct {
	// Escape matches directives whose value is HTML-escaped.
	Escape string `yaml:"escape,omitempty" json:"escape,omitempty"`
	// Interpolate matches directives whose value is inserted verbatim.
	Interpolate string `yaml:"interpolate,omitempty" json:"interpolate,omitempty"`
	// Evaluate matches directives whose payload is executed as code.
	Evaluate string `yaml:"evaluate,omitempty" json:"evaluate,omitempty"`
	// Variable names the single binding the data is passed as. When empty
	// the fields of the data are exposed as names instead.
	Variable string `yaml:"variable,omitempty" json:"variable,omitempty"`
}

// DefaultSettings returns the ERB-style delimiters <%- %>, <%= %> and <% %>.
func DefaultSettings() Settings {
	return Settings{
		Escape:      `<%-([\s\S]+?)%>`,
		Interpolate: `<%=([\s\S]+?)%>`,
		Evaluate:    `<%([\s\S]+?)%>`,
	}
}

// MergeSettings combines layers left to right; for every field the
// rightmost non-empty value wins.
func MergeSettings(layers ...Settings) Settings {
	var merged Settings
	for _, layer := range layers {
		if layer.Escape != "" {
			merged.Escape = layer.Escape
		}
		if layer.Interpolate != "" {
			merged.Interpolate = layer.Interpolate
		}
		if layer.Evaluate != "" {
			merged.Evaluate = layer.Evaluate
		}
		if layer.Variable != "" {
			merged.Variable = layer.Variable
		}
	}
	return merged
}

// names the generated routine uses for itself
var reservedNames = map[string]bool{
	"_":   true,
	"__p": true,
	"__t": true,
}

// Grammar is the validated, immutable form of Settings. Directive
// categories are tried in the order escape, interpolate, evaluate: when two
// patterns match at the same position the earlier category wins.
type Grammar struct {
	settings Settings
	combined *regexp.Regexp
}

var grammarKinds = []SegmentKind{SegmentEscape, SegmentInterpolate, SegmentEvaluate}

// Grammar validates the settings and builds the combined scanner. Unset
// pattern slots are treated as NoMatch.
func (s Settings) Grammar() (*Grammar, error) {
	type slot struct {
		field   string
		pattern string
	}
	slots := []slot{
		{"escape", s.Escape},
		{"interpolate", s.Interpolate},
		{"evaluate", s.Evaluate},
	}

	errs := NewMultiError()
	seen := make(map[string]string)
	combined := ""

	for i := range slots {
		if slots[i].pattern == "" {
			slots[i].pattern = NoMatch
		}
		sl := slots[i]

		re, err := regexp.Compile(sl.pattern)
		if err != nil {
			errs.Add(&ConfigError{Field: sl.field, Value: sl.pattern, Message: "invalid pattern", Cause: err})
			continue
		}
		if n := re.NumSubexp(); n != 1 {
			errs.Add(&ConfigError{Field: sl.field, Value: sl.pattern, Message: fmt.Sprintf("pattern must have exactly one capture group, has %d", n)})
			continue
		}
		if re.MatchString("") {
			errs.Add(&ConfigError{Field: sl.field, Value: sl.pattern, Message: "pattern matches the empty string"})
			continue
		}
		if sl.pattern != NoMatch {
			if other, dup := seen[sl.pattern]; dup {
				errs.Add(&ConfigError{Field: sl.field, Value: sl.pattern, Message: "same pattern as " + other + "; the directive kind would be ambiguous"})
				continue
			}
			seen[sl.pattern] = sl.field
		}

		if combined != "" {
			combined += "|"
		}
		combined += "(?:" + sl.pattern + ")"
	}

	if s.Variable != "" && (!script.IsIdentifier(s.Variable) || reservedNames[s.Variable]) {
		errs.Add(&ConfigError{Field: "variable", Value: s.Variable, Message: "not a usable identifier"})
	}

	if err := errs.Err(); err != nil {
		return nil, err
	}

	return &Grammar{
		settings: Settings{
			Escape:      slots[0].pattern,
			Interpolate: slots[1].pattern,
			Evaluate:    slots[2].pattern,
			Variable:    s.Variable,
		},
		combined: regexp.MustCompile(combined + "|$"),
	}, nil
}

// Settings returns the effective settings with unset slots filled in.
func (g *Grammar) Settings() Settings {
	return g.settings
}

// String returns the combined scanning pattern.
func (g *Grammar) String() string {
	return g.combined.String()
}
