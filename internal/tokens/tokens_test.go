package tokens

import (
	"strings"
	"testing"
)

func TestHeuristicCounter(t *testing.T) {
	c := NewHeuristicCounter()

	if got := c.Count(""); got != 0 {
		t.Errorf("empty text: expected 0 tokens, got %d", got)
	}
	if got := c.Count("hi"); got != 1 {
		t.Errorf("tiny text must round up to 1 token, got %d", got)
	}
	if got := c.Count(strings.Repeat("a", 400)); got != 100 {
		t.Errorf("400 bytes: expected 100 tokens, got %d", got)
	}
}

func TestHeuristicCounter_Monotonic(t *testing.T) {
	c := NewHeuristicCounter()
	prev := 0
	for _, n := range []int{10, 100, 1000, 10000} {
		got := c.Count(strings.Repeat("слово ", n))
		if got < prev {
			t.Fatalf("token count not monotonic in text length: %d < %d", got, prev)
		}
		prev = got
	}
}
