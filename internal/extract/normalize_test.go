package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "   ", want: ""},
		{in: "a  b", want: "a b"},
		{in: "\n\tleading and trailing ", want: "leading and trailing"},
		{in: "line\r\nbreak\u00a0nbsp", want: "line break nbsp"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Normalize(tc.in), "input %q", tc.in)
	}
}

func FuzzNormalizeIdempotent(f *testing.F) {
	for _, seed := range []string{"", " a ", "a\n\nb", " x "} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, s string) {
		once := Normalize(s)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent: %q -> %q -> %q", s, once, twice)
		}
	})
}
