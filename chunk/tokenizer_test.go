package chunk

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// byteRanks is an offline BPE table with one token per byte and no merges,
// so every multi-byte character is split across tokens.
type byteRanks struct{}

func (byteRanks) LoadTiktokenBpe(string) (map[string]int, error) {
	ranks := make(map[string]int, 256)
	for b := 0; b < 256; b++ {
		ranks[string([]byte{byte(b)})] = b
	}
	return ranks, nil
}

func newByteTokenizer(t *testing.T) *TiktokenTokenizer {
	t.Helper()
	tiktoken.SetBpeLoader(byteRanks{})
	t.Cleanup(func() { tiktoken.SetBpeLoader(tiktoken.NewDefaultBpeLoader()) })
	tok, err := NewTiktokenTokenizer("r50k_base")
	require.NoError(t, err)
	return tok
}

func TestWordTokenizer_Split(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"only whitespace", " \n\t", nil},
		{"single word", "ros", []string{"ros"}},
		{"keeps trailing whitespace", "  a b\n c ", []string{"a ", "b\n ", "c "}},
		{"unicode", "naïve café", []string{"naïve ", "café"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WordTokenizer{}.Split(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, strings.TrimLeft(tt.in, " \n\t"), strings.Join(got, ""))
		})
	}
}

func TestCount(t *testing.T) {
	assert.Equal(t, 4, Count(WordTokenizer{}, "nodes talk over topics"))
	assert.Equal(t, 0, Count(WordTokenizer{}, ""))
}

func TestTiktokenTokenizer_SplitsMultiByteCharacters(t *testing.T) {
	tok := newByteTokenizer(t)
	text := "naïve 🤖"

	pieces := tok.Split(text)
	assert.Equal(t, text, strings.Join(pieces, ""))
	assert.Len(t, pieces, len(text), "one piece per byte")

	var partial int
	for _, p := range pieces {
		if !utf8.ValidString(p) {
			partial++
		}
	}
	assert.Equal(t, 6, partial, "ï and the emoji span several pieces")
	assert.Equal(t, len(pieces), Count(tok, text))
}
