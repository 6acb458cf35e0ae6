package microtpl

import "testing"

func TestAssemble(t *testing.T) {
	tests := []struct {
		name     string
		segments []Segment
		want     string
	}{
		{
			name:     "empty literal",
			segments: []Segment{{Kind: SegmentLiteral}},
			want:     "__p+='';\n",
		},
		{
			name:     "literal escaping",
			segments: []Segment{{Kind: SegmentLiteral, Text: "a'b\\c\r\n\u2028\u2029"}},
			want:     "__p+='a\\'b\\\\c\\r\\n\\u2028\\u2029';\n",
		},
		{
			name: "every directive kind",
			segments: []Segment{
				{Kind: SegmentLiteral, Text: "it's\n"},
				{Kind: SegmentEscape, Text: "x"},
				{Kind: SegmentEvaluate, Text: "if (y) {"},
				{Kind: SegmentInterpolate, Text: "z"},
				{Kind: SegmentEvaluate, Text: "}"},
			},
			want: "__p+='it\\'s\\n'+\n((__t=(x))==null?'':_.escape(__t))+\n'';\nif (y) {\n__p+=''+\n((__t=(z))==null?'':__t)+\n'';\n}\n__p+='';\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Assemble(tt.segments); got != tt.want {
				t.Errorf("Assemble() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildSource(t *testing.T) {
	body := "__p+='x';\n"

	got := buildSource(body, "data")
	want := "function(data){\nvar __t,__p='';\n__p+='x';\nreturn __p;\n}"
	if got != want {
		t.Errorf("buildSource(variable) = %q, want %q", got, want)
	}

	got = buildSource(body, "")
	want = "function(obj){\nvar __t,__p='';\nwith(obj||{}){\n__p+='x';\n}\nreturn __p;\n}"
	if got != want {
		t.Errorf("buildSource(ambient) = %q, want %q", got, want)
	}
}
