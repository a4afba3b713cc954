// Package tokens estimates token counts for LLM prompt budgeting.
package tokens

import (
	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// Counter estimates the number of tokens in a text.
type Counter interface {
	Count(text string) int
}

const encodingBase = "cl100k_base"

// tiktokenCounter counts tokens with the cl100k_base BPE encoding.
type tiktokenCounter struct {
	encoder *tiktoken.Tiktoken
}

func (c *tiktokenCounter) Count(text string) int {
	return len(c.encoder.Encode(text, nil, nil))
}

// heuristicCounter approximates one token per four bytes of text. Used
// when the BPE tables are unavailable (offline environments).
type heuristicCounter struct{}

func (heuristicCounter) Count(text string) int {
	n := len(text) / 4
	if n == 0 && len(text) > 0 {
		n = 1
	}
	return n
}

// NewCounter returns a tiktoken-backed counter, falling back to the
// bytes/4 heuristic when the encoding cannot be loaded.
func NewCounter() Counter {
	encoder, err := tiktoken.GetEncoding(encodingBase)
	if err != nil {
		zap.L().Warn("tokens: tiktoken encoding unavailable, using heuristic",
			zap.Error(err),
		)
		return heuristicCounter{}
	}
	return &tiktokenCounter{encoder: encoder}
}

// NewHeuristicCounter returns the bytes/4 approximation directly. Tests
// and offline tools use this to avoid loading BPE tables.
func NewHeuristicCounter() Counter {
	return heuristicCounter{}
}
