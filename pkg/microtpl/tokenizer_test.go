package microtpl

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustGrammar(t *testing.T, s Settings) *Grammar {
	t.Helper()
	g, err := s.Grammar()
	if err != nil {
		t.Fatalf("Grammar() error = %v", err)
	}
	return g
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		text     string
		want     []Segment
	}{
		{
			name:     "empty template",
			settings: DefaultSettings(),
			text:     "",
			want:     []Segment{{Kind: SegmentLiteral, Text: "", Offset: 0}},
		},
		{
			name:     "no directives",
			settings: DefaultSettings(),
			text:     "plain <b>text</b>",
			want:     []Segment{{Kind: SegmentLiteral, Text: "plain <b>text</b>", Offset: 0}},
		},
		{
			name:     "mixed directives",
			settings: DefaultSettings(),
			text:     "a<%= b %>c<% d %>",
			want: []Segment{
				{Kind: SegmentLiteral, Text: "a", Offset: 0},
				{Kind: SegmentInterpolate, Text: " b ", Offset: 1},
				{Kind: SegmentLiteral, Text: "c", Offset: 9},
				{Kind: SegmentEvaluate, Text: " d ", Offset: 10},
			},
		},
		{
			name:     "adjacent directives",
			settings: DefaultSettings(),
			text:     "<%- a %><%= b %>",
			want: []Segment{
				{Kind: SegmentEscape, Text: " a ", Offset: 0},
				{Kind: SegmentInterpolate, Text: " b ", Offset: 8},
			},
		},
		{
			name:     "payload spans lines",
			settings: DefaultSettings(),
			text:     "<% if (x) {\n y() } %>!",
			want: []Segment{
				{Kind: SegmentEvaluate, Text: " if (x) {\n y() } ", Offset: 0},
				{Kind: SegmentLiteral, Text: "!", Offset: 21},
			},
		},
		{
			name:     "unterminated directive is literal",
			settings: DefaultSettings(),
			text:     "a <%= b",
			want:     []Segment{{Kind: SegmentLiteral, Text: "a <%= b", Offset: 0}},
		},
		{
			name:     "disabled kind stays literal",
			settings: MergeSettings(DefaultSettings(), Settings{Evaluate: NoMatch}),
			text:     "<% x %><%= y %>",
			want: []Segment{
				{Kind: SegmentLiteral, Text: "<% x %>", Offset: 0},
				{Kind: SegmentInterpolate, Text: " y ", Offset: 7},
			},
		},
		{
			name:     "empty payload is dropped",
			settings: Settings{Interpolate: `\[\[(.*?)\]\]`},
			text:     "a[[]]b",
			want: []Segment{
				{Kind: SegmentLiteral, Text: "a", Offset: 0},
				{Kind: SegmentLiteral, Text: "b", Offset: 5},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.text, mustGrammar(t, tt.settings))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Tokenize() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTokenizeCoversInput(t *testing.T) {
	text := "Dear <%= name %>,\n<% for (var x of xs) { %>- <%- x %>\n<% } %>Bye"
	segments := Tokenize(text, mustGrammar(t, DefaultSettings()))

	pos := 0
	for _, seg := range segments {
		if seg.Offset != pos {
			t.Fatalf("segment %+v starts at %d, want %d", seg, seg.Offset, pos)
		}
		if seg.Kind == SegmentLiteral {
			pos += len(seg.Text)
			continue
		}
		// directive: payload is inside the delimiters
		end := strings.Index(text[pos:], "%>")
		if end < 0 || !strings.Contains(text[pos:pos+end], seg.Text) {
			t.Fatalf("segment %+v does not match input at %d", seg, pos)
		}
		pos += end + len("%>")
	}
	if pos != len(text) {
		t.Errorf("segments cover %d bytes, want %d", pos, len(text))
	}
}
