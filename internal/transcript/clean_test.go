package transcript

import "testing"

func TestClean(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "strips filler words",
			in:   "so um I think we should like basically do it",
			want: "I think we should do it",
		},
		{
			name: "keeps like before continuation word",
			in:   "we would like to ship this",
			want: "We would like to ship this",
		},
		{
			name: "keeps so before continuation word",
			in:   "we built it so that it works",
			want: "We built it so that it works",
		},
		{
			name: "drops like before ordinary word",
			in:   "it was like crazy",
			want: "It was crazy",
		},
		{
			name: "drops trailing conditional filler",
			in:   "it was like",
			want: "It was",
		},
		{
			name: "collapses repeated words",
			in:   "the the the market moved",
			want: "The market moved",
		},
		{
			name: "repeat collapse keeps punctuated occurrence",
			in:   "the market market, it moved",
			want: "The market, it moved",
		},
		{
			name: "hesitation markers become sentence breaks",
			in:   "I think… maybe tomorrow",
			want: "I think. Maybe tomorrow",
		},
		{
			name: "ellipsis becomes sentence break",
			in:   "I think... maybe tomorrow",
			want: "I think. Maybe tomorrow",
		},
		{
			name: "fixes space before punctuation",
			in:   "wrong ,spacing here",
			want: "Wrong, spacing here",
		},
		{
			name: "inserts space after punctuation",
			in:   "first point,second point",
			want: "First point, second point",
		},
		{
			name: "capitalises sentence starts",
			in:   "first sentence. second one",
			want: "First sentence. Second one",
		},
		{
			name: "collapses whitespace",
			in:   "  too   many    spaces  ",
			want: "Too many spaces",
		},
		{
			name: "empty input",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Clean(tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	t.Parallel()

	in := "so um the the market was like crazy ,yeah... big moves"
	once := Clean(in)
	twice := Clean(once)
	if once != twice {
		t.Errorf("Clean is not idempotent:\n once %q\ntwice %q", once, twice)
	}
}
