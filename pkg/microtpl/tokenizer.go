package microtpl

// SegmentKind represents the type of a template segment
type SegmentKind int

const (
	SegmentLiteral SegmentKind = iota
	SegmentEscape
	SegmentInterpolate
	SegmentEvaluate
)

func (k SegmentKind) String() string {
	switch k {
	case SegmentLiteral:
		return "literal"
	case SegmentEscape:
		return "escape"
	case SegmentInterpolate:
		return "interpolate"
	case SegmentEvaluate:
		return "evaluate"
	default:
		return "unknown"
	}
}

// Segment is a classified span of template text. For directives Text holds
// the captured payload and Offset the start of the whole directive.
type Segment struct {
	Kind   SegmentKind
	Text   string
	Offset int
}

// Tokenize splits text into literal and directive segments in source order.
// A template without directives, including the empty template, yields a
// single literal segment. Directives with an empty payload are dropped.
func Tokenize(text string, g *Grammar) []Segment {
	var segments []Segment
	lastEnd := 0

	logger := GetLogger()
	if logger.IsDebugMode() {
		logger.WithField("input_length", len(text)).Debug("Starting tokenization")
	}

	for _, match := range g.combined.FindAllStringSubmatchIndex(text, -1) {
		kind, start, end := SegmentLiteral, -1, -1
		for i, k := range grammarKinds {
			if match[2*i+2] >= 0 {
				kind, start, end = k, match[2*i+2], match[2*i+3]
				break
			}
		}
		if kind == SegmentLiteral {
			// end of input
			break
		}

		if match[0] > lastEnd {
			segments = append(segments, Segment{
				Kind:   SegmentLiteral,
				Text:   text[lastEnd:match[0]],
				Offset: lastEnd,
			})
		}
		lastEnd = match[1]

		if start == end {
			continue
		}
		if logger.IsDebugMode() {
			logger.WithFields(Fields{
				"kind":   kind,
				"offset": match[0],
			}).Debug("Found directive")
		}
		segments = append(segments, Segment{
			Kind:   kind,
			Text:   text[start:end],
			Offset: match[0],
		})
	}

	if lastEnd < len(text) || len(segments) == 0 {
		segments = append(segments, Segment{
			Kind:   SegmentLiteral,
			Text:   text[lastEnd:],
			Offset: lastEnd,
		})
	}

	if logger.IsDebugMode() {
		logger.WithField("segment_count", len(segments)).Debug("Tokenization complete")
	}

	return segments
}
