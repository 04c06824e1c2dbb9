package chunk

import (
	"sync"
	"unicode"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the BPE encoding used to count tokens.
const DefaultEncoding = "cl100k_base"

// Tokenizer splits text into token pieces.
// Concatenating the returned pieces must reproduce the input exactly
// (leading whitespace excepted), so chunk text can be rebuilt from token spans.
type Tokenizer interface {
	Split(text string) []string
}

// Count returns the number of tokens in text.
func Count(t Tokenizer, text string) int {
	return len(t.Split(text))
}

// WordTokenizer treats each whitespace-delimited word as one token.
// Each piece keeps the whitespace that follows it.
type WordTokenizer struct{}

var _ Tokenizer = WordTokenizer{}

// Split breaks text into words with their trailing whitespace.
func (WordTokenizer) Split(text string) []string {
	var pieces []string
	runes := []rune(text)
	i := 0
	for i < len(runes) && unicode.IsSpace(runes[i]) {
		i++
	}
	for i < len(runes) {
		start := i
		for i < len(runes) && !unicode.IsSpace(runes[i]) {
			i++
		}
		for i < len(runes) && unicode.IsSpace(runes[i]) {
			i++
		}
		pieces = append(pieces, string(runes[start:i]))
	}
	return pieces
}

// TiktokenTokenizer counts tokens the way OpenAI-family models do.
type TiktokenTokenizer struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

var _ Tokenizer = (*TiktokenTokenizer)(nil)

// NewTiktokenTokenizer loads the named BPE encoding.
// The first call may download the encoding file.
func NewTiktokenTokenizer(encoding string) (*TiktokenTokenizer, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return &TiktokenTokenizer{enc: enc}, nil
}

// Split encodes text and decodes every token on its own.
// A character spread over several byte-level tokens comes back as several
// pieces that are not valid UTF-8 on their own.
func (t *TiktokenTokenizer) Split(text string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := t.enc.EncodeOrdinary(text)
	pieces := make([]string, len(ids))
	for i, id := range ids {
		pieces[i] = t.enc.Decode([]int{id})
	}
	return pieces
}
