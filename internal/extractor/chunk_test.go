package extractor

import (
	"strings"
	"testing"

	"github.com/DjEugeny/contact-parser-sub001/internal/tokens"
)

func newTestChunker(cfg ChunkConfig) *Chunker {
	return NewChunker(cfg, tokens.NewHeuristicCounter())
}

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	c := newTestChunker(ChunkConfig{MaxTokensPerChunk: 1000})

	// ~50 tokens must collapse to one chunk, no gratuitous splitting.
	text := strings.Repeat("слово ", 20)
	chunks := c.Split(text)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk for short text, got %d", len(chunks))
	}
	if chunks[0] != text {
		t.Errorf("short text must pass through unchanged")
	}
}

func TestSplit_EmptyText(t *testing.T) {
	c := newTestChunker(ChunkConfig{})
	chunks := c.Split("")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk for empty text, got %d", len(chunks))
	}
}

func TestSplit_LongTextBounded(t *testing.T) {
	cfg := ChunkConfig{MaxTokensPerChunk: 1000, OverlapTokens: 100, MaxChunks: 20}
	c := newTestChunker(cfg)

	// ~10k+ tokens (heuristic: 4 bytes per token).
	text := strings.Repeat("line of email text here\n", 1800)
	chunks := c.Split(text)

	if len(chunks) < 3 {
		t.Errorf("expected at least 3 chunks for 10k+ token text, got %d", len(chunks))
	}
	if len(chunks) > cfg.MaxChunks {
		t.Errorf("chunk count %d exceeds cap %d", len(chunks), cfg.MaxChunks)
	}
}

func TestSplit_NeverExceedsCap(t *testing.T) {
	cfg := ChunkConfig{MaxTokensPerChunk: 100, OverlapTokens: 10, MaxChunks: 4}
	c := newTestChunker(cfg)

	text := strings.Repeat("a very long run-on email body ", 5000)
	chunks := c.Split(text)
	if len(chunks) > 4 {
		t.Fatalf("chunk cap violated: got %d chunks", len(chunks))
	}
}

func TestSplit_OverlapCarriesBoundaryText(t *testing.T) {
	cfg := ChunkConfig{MaxTokensPerChunk: 100, OverlapTokens: 20, MaxChunks: 50}
	c := newTestChunker(cfg)

	text := strings.Repeat("0123456789", 200) // 2000 bytes, ~500 tokens
	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		prevTail := chunks[i-1][len(chunks[i-1])-10:]
		if !strings.Contains(chunks[i][:160], prevTail) {
			t.Errorf("chunk %d does not overlap with its predecessor", i)
		}
	}
}

func TestSplit_PrefersParagraphBoundary(t *testing.T) {
	cfg := ChunkConfig{MaxTokensPerChunk: 100, OverlapTokens: 0, MaxChunks: 50}
	c := newTestChunker(cfg)

	para := strings.Repeat("text ", 70) // ~87 tokens
	text := para + "\n\n" + para + "\n\n" + para
	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	// The first cut should land on the paragraph break, not mid-word.
	if !strings.HasSuffix(strings.TrimSpace(chunks[0]), "text") {
		t.Errorf("first chunk did not end at a clean boundary: %q", chunks[0][len(chunks[0])-20:])
	}
}
