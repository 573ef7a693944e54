package localdecoder

import (
	"testing"
	"time"
)

func TestParseProgressLine(t *testing.T) {
	cases := []struct {
		line string
		want time.Duration
		ok   bool
	}{
		{"T 1500", 1500 * time.Millisecond, true},
		{"T abc", 0, false},
		{"garbage", 0, false},
		{"T", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseProgressLine(tc.line)
		if ok != tc.ok || got != tc.want {
			t.Errorf("parseProgressLine(%q) = (%v, %v), want (%v, %v)", tc.line, got, ok, tc.want, tc.ok)
		}
	}
}
