package tts

import (
	"reflect"
	"testing"
)

func TestSplitSentences(t *testing.T) {
	cases := []struct {
		name     string
		in       string
		want     []string
		wantRest string
	}{
		{
			name:     "single complete sentence",
			in:       "Hello there. ",
			want:     []string{"Hello there."},
			wantRest: "",
		},
		{
			name:     "trailing fragment kept",
			in:       "First one. Second one! And the rest",
			want:     []string{"First one.", "Second one!"},
			wantRest: "And the rest",
		},
		{
			name:     "decimal number is not a boundary",
			in:       "Pi is about 3.14 which is neat",
			want:     nil,
			wantRest: "Pi is about 3.14 which is neat",
		},
		{
			name:     "terminator runs collapse",
			in:       "Really?! Yes.",
			want:     []string{"Really?!", "Yes."},
			wantRest: "",
		},
		{
			name:     "empty input",
			in:       "",
			want:     nil,
			wantRest: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, rest := SplitSentences(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("sentences = %#v, want %#v", got, tc.want)
			}
			if rest != tc.wantRest {
				t.Fatalf("rest = %q, want %q", rest, tc.wantRest)
			}
		})
	}
}
