package extractor

import (
	"strings"

	"go.uber.org/zap"

	"github.com/DjEugeny/contact-parser-sub001/internal/tokens"
)

// ChunkConfig bounds how long texts are split for extraction.
type ChunkConfig struct {
	// MaxTokensPerChunk is the token budget of a single chunk. Default: 1000.
	MaxTokensPerChunk int

	// OverlapTokens is the token overlap carried between adjacent chunks so
	// contacts straddling a boundary are not lost. Default: 100.
	OverlapTokens int

	// MaxChunks hard-caps the number of chunks per text. Default: 8.
	MaxChunks int
}

// DefaultChunkConfig returns the standard chunking budgets.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxTokensPerChunk: 1000,
		OverlapTokens:     100,
		MaxChunks:         8,
	}
}

func applyChunkDefaults(cfg ChunkConfig) ChunkConfig {
	def := DefaultChunkConfig()
	if cfg.MaxTokensPerChunk <= 0 {
		cfg.MaxTokensPerChunk = def.MaxTokensPerChunk
	}
	if cfg.OverlapTokens < 0 || cfg.OverlapTokens >= cfg.MaxTokensPerChunk {
		cfg.OverlapTokens = def.OverlapTokens
	}
	if cfg.MaxChunks <= 0 {
		cfg.MaxChunks = def.MaxChunks
	}
	return cfg
}

// Chunker splits long texts into overlapping chunks within a token budget.
type Chunker struct {
	cfg     ChunkConfig
	counter tokens.Counter
}

// NewChunker creates a chunker (zero config fields get defaults).
func NewChunker(cfg ChunkConfig, counter tokens.Counter) *Chunker {
	return &Chunker{cfg: applyChunkDefaults(cfg), counter: counter}
}

// Split breaks text into at most MaxChunks overlapping chunks. A text
// within the token budget is returned as exactly one chunk. Chunks prefer
// to end on a paragraph break when one falls in the final third of the
// chunk. Text beyond the chunk cap is dropped with a warning.
func (c *Chunker) Split(text string) []string {
	total := c.counter.Count(text)
	if total <= c.cfg.MaxTokensPerChunk {
		return []string{text}
	}

	runes := []rune(text)
	runesPerToken := len(runes) / total
	if runesPerToken < 1 {
		runesPerToken = 1
	}
	chunkRunes := c.cfg.MaxTokensPerChunk * runesPerToken
	overlapRunes := c.cfg.OverlapTokens * runesPerToken

	var chunks []string
	pos := 0
	for pos < len(runes) {
		if len(chunks) == c.cfg.MaxChunks {
			zap.L().Warn("chunker: text exceeds chunk cap, tail dropped",
				zap.Int("max_chunks", c.cfg.MaxChunks),
				zap.Int("dropped_runes", len(runes)-pos),
			)
			break
		}

		end := pos + chunkRunes
		if end > len(runes) {
			end = len(runes)
		}

		chunk := string(runes[pos:end])

		// Not the last chunk: try to break at a paragraph boundary in the
		// final third so we do not cut through the middle of a signature.
		if end < len(runes) {
			searchStart := len(chunk) * 2 / 3
			if idx := strings.LastIndex(chunk[searchStart:], "\n\n"); idx != -1 {
				cut := searchStart + idx
				end = pos + len([]rune(chunk[:cut]))
				chunk = string(runes[pos:end])
			}
		}

		if strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}

		if end >= len(runes) {
			break
		}
		pos = end - overlapRunes
		if pos < 0 {
			pos = 0
		}
	}

	if len(chunks) == 0 {
		chunks = []string{text}
	}
	return chunks
}
