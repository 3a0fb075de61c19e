package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// TokenizerEstimate is the chars/4 heuristic
	TokenizerEstimate = "estimate"

	// TokenizerWords counts whitespace separated words
	TokenizerWords = "words"

	// CharsPerToken is the heuristic used by EstimateTokenizer
	CharsPerToken = 4
)

// Tokenizer counts the tokens of a text
type Tokenizer interface {
	Count(text string) int
	Name() string
}

// EstimateTokenizer approximates tokens as ceil(chars/4)
type EstimateTokenizer struct{}

// Count returns the estimated token count of text
func (EstimateTokenizer) Count(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + CharsPerToken - 1) / CharsPerToken
}

// Name returns "estimate"
func (EstimateTokenizer) Name() string { return TokenizerEstimate }

// WordTokenizer counts one token per whitespace separated word
type WordTokenizer struct{}

// Count returns the number of words in text
func (WordTokenizer) Count(text string) int {
	return len(strings.Fields(text))
}

// Name returns "words"
func (WordTokenizer) Name() string { return TokenizerWords }

// TiktokenTokenizer counts BPE tokens of a tiktoken encoding
type TiktokenTokenizer struct {
	encoding string
	tke      *tiktoken.Tiktoken
}

// NewTiktokenTokenizer loads the named encoding, e.g. "cl100k_base"
func NewTiktokenTokenizer(encoding string) (*TiktokenTokenizer, error) {
	tke, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %s: %w", encoding, err)
	}
	return &TiktokenTokenizer{encoding: encoding, tke: tke}, nil
}

// Count returns the number of BPE tokens in text
func (t *TiktokenTokenizer) Count(text string) int {
	return len(t.tke.Encode(text, nil, nil))
}

// Name returns the encoding name
func (t *TiktokenTokenizer) Name() string { return t.encoding }

// NewTokenizer resolves a configured tokenizer name. Anything other than
// "estimate" or "words" is treated as a tiktoken encoding.
func NewTokenizer(name string) (Tokenizer, error) {
	switch name {
	case "", TokenizerEstimate:
		return EstimateTokenizer{}, nil
	case TokenizerWords:
		return WordTokenizer{}, nil
	default:
		return NewTiktokenTokenizer(name)
	}
}
