package microtpl

import (
	"strings"
)

// literalEscaper makes literal text safe inside a single-quoted string of
// the generated routine.
var literalEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	"\r", `\r`,
	"\n", `\n`,
	"\u2028", `\u2028`,
	"\u2029", `\u2029`,
)

// Assemble turns segments into the body of the render routine. The body
// appends to __p; escape and interpolate values that are null contribute
// nothing, and evaluate payloads are spliced in verbatim between appends.
func Assemble(segments []Segment) string {
	var b strings.Builder
	b.WriteString("__p+='")
	for _, seg := range segments {
		switch seg.Kind {
		case SegmentLiteral:
			b.WriteString(literalEscaper.Replace(seg.Text))
		case SegmentEscape:
			b.WriteString("'+\n((__t=(")
			b.WriteString(seg.Text)
			b.WriteString("))==null?'':_.escape(__t))+\n'")
		case SegmentInterpolate:
			b.WriteString("'+\n((__t=(")
			b.WriteString(seg.Text)
			b.WriteString("))==null?'':__t)+\n'")
		case SegmentEvaluate:
			b.WriteString("';\n")
			b.WriteString(seg.Text)
			b.WriteString("\n__p+='")
		}
	}
	b.WriteString("';\n")
	return b.String()
}
