package microtpl

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMergeSettings(t *testing.T) {
	tests := []struct {
		name   string
		layers []Settings
		want   Settings
	}{
		{
			name: "no layers",
			want: Settings{},
		},
		{
			name:   "defaults only",
			layers: []Settings{DefaultSettings()},
			want:   DefaultSettings(),
		},
		{
			name: "rightmost wins per key",
			layers: []Settings{
				DefaultSettings(),
				{Interpolate: `\{\{(.+?)\}\}`, Variable: "a"},
				{Variable: "b"},
			},
			want: Settings{
				Escape:      DefaultSettings().Escape,
				Interpolate: `\{\{(.+?)\}\}`,
				Evaluate:    DefaultSettings().Evaluate,
				Variable:    "b",
			},
		},
		{
			name:   "empty fields do not override",
			layers: []Settings{{Escape: "x(y)"}, {}},
			want:   Settings{Escape: "x(y)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeSettings(tt.layers...)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("MergeSettings() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDefaultSettingsIsNotShared(t *testing.T) {
	s := DefaultSettings()
	s.Escape = "changed"
	if DefaultSettings().Escape == "changed" {
		t.Error("DefaultSettings() returned shared state")
	}
}

func TestGrammarValidation(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		wantErr  bool
	}{
		{name: "defaults", settings: DefaultSettings()},
		{name: "all unset", settings: Settings{}},
		{name: "disabled slot", settings: MergeSettings(DefaultSettings(), Settings{Evaluate: NoMatch})},
		{name: "valid variable", settings: Settings{Variable: "data"}},
		{name: "invalid regexp", settings: Settings{Escape: `<%-(`}, wantErr: true},
		{name: "no capture group", settings: Settings{Interpolate: `<%=.+?%>`}, wantErr: true},
		{name: "two capture groups", settings: Settings{Evaluate: `<%(a)(b)%>`}, wantErr: true},
		{name: "matches empty string", settings: Settings{Escape: `(x*)`}, wantErr: true},
		{
			name:     "identical patterns in two categories",
			settings: Settings{Escape: `\{\{(.+?)\}\}`, Interpolate: `\{\{(.+?)\}\}`},
			wantErr:  true,
		},
		{name: "variable not an identifier", settings: Settings{Variable: "1data"}, wantErr: true},
		{name: "variable is a keyword", settings: Settings{Variable: "return"}, wantErr: true},
		{name: "variable is reserved", settings: Settings{Variable: "__p"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := tt.settings.Grammar()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Grammar() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !IsConfigError(err) {
					t.Errorf("Grammar() error = %T, want *ConfigError", err)
				}
				return
			}
			if g == nil {
				t.Fatal("Grammar() returned nil grammar")
			}
		})
	}
}

func TestGrammarCollectsAllProblems(t *testing.T) {
	_, err := Settings{Escape: `(`, Interpolate: `x`, Variable: "1"}.Grammar()
	var multi *MultiError
	if !errors.As(err, &multi) {
		t.Fatalf("Grammar() error = %v, want *MultiError", err)
	}
	if multi.Len() != 3 {
		t.Errorf("Len() = %d, want 3", multi.Len())
	}
	if !IsConfigError(err) {
		t.Error("IsConfigError() = false for a collection of config errors")
	}
}

func TestGrammarFillsUnsetSlots(t *testing.T) {
	g, err := Settings{Interpolate: `\{\{(.+?)\}\}`}.Grammar()
	if err != nil {
		t.Fatalf("Grammar() error = %v", err)
	}
	want := Settings{Escape: NoMatch, Interpolate: `\{\{(.+?)\}\}`, Evaluate: NoMatch}
	if diff := cmp.Diff(want, g.Settings()); diff != "" {
		t.Errorf("Settings() mismatch (-want +got):\n%s", diff)
	}
}

// Overlapping but distinct patterns are accepted; at a shared start
// position the category declared first wins.
func TestGrammarOverlapPrefersEarlierCategory(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		text     string
		want     Segment
	}{
		{
			name:     "default escape beats evaluate",
			settings: DefaultSettings(),
			text:     "<%- x %>",
			want:     Segment{Kind: SegmentEscape, Text: " x ", Offset: 0},
		},
		{
			name:     "default interpolate beats evaluate",
			settings: DefaultSettings(),
			text:     "<%= x %>",
			want:     Segment{Kind: SegmentInterpolate, Text: " x ", Offset: 0},
		},
		{
			name:     "specific escape declared first",
			settings: Settings{Escape: `\{\{-(.+?)\}\}`, Interpolate: `\{\{(.+?)\}\}`},
			text:     "{{- x }}",
			want:     Segment{Kind: SegmentEscape, Text: " x ", Offset: 0},
		},
		{
			name:     "general escape declared first swallows the interpolate form",
			settings: Settings{Escape: `\{\{(.+?)\}\}`, Interpolate: `\{\{=(.+?)\}\}`},
			text:     "{{= x }}",
			want:     Segment{Kind: SegmentEscape, Text: "= x ", Offset: 0},
		},
		{
			name:     "interpolate declared before evaluate",
			settings: Settings{Interpolate: `\[(.+?)\]`, Evaluate: `\[\[(.+?)\]\]`},
			text:     "[[x]]",
			want:     Segment{Kind: SegmentInterpolate, Text: "[x", Offset: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := tt.settings.Grammar()
			if err != nil {
				t.Fatalf("Grammar() error = %v", err)
			}
			segments := Tokenize(tt.text, g)
			if len(segments) == 0 {
				t.Fatal("Tokenize() returned no segments")
			}
			if diff := cmp.Diff(tt.want, segments[0]); diff != "" {
				t.Errorf("first segment mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
