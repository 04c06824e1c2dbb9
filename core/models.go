package core

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for indexed entities.
// It is generated using content-based hashing so re-ingestion overwrites in place.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// ChunkID derives the identity of a chunk from its page URL and ordinal.
func ChunkID(url string, ordinal int) ID {
	return IDFromContent(url + "#" + strconv.Itoa(ordinal))
}

// NoHeading labels content that appears before any heading on a page.
const NoHeading = "No heading"

// Page is one discovered document after extraction.
type Page struct {
	URL      string
	Title    string
	HTML     string
	Sections []Section
}

// Text returns the concatenated plain text of all sections.
func (p *Page) Text() string {
	var n int
	for _, s := range p.Sections {
		n += len(s.Text) + 1
	}
	buf := make([]byte, 0, n)
	for i, s := range p.Sections {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, s.Text...)
	}
	return string(buf)
}

// Section is a run of text under a single heading.
type Section struct {
	Heading string // hierarchy, e.g. "Install > Linux"
	Level   int    // 0 for NoHeading
	Text    string
}

// Chunk is a bounded slice of a page's content.
type Chunk struct {
	ID         ID
	URL        string
	Title      string
	Heading    string
	Ordinal    int
	Text       string
	TokenCount int
}

// Payload is the metadata stored alongside a vector.
type Payload struct {
	URL        string `msgpack:"url" json:"url"`
	Title      string `msgpack:"title" json:"title"`
	Heading    string `msgpack:"heading" json:"heading"`
	Text       string `msgpack:"text" json:"text"`
	TokenCount int    `msgpack:"token_count" json:"token_count"`
	Ordinal    int    `msgpack:"ordinal" json:"ordinal"`
}

// IndexEntry is the persisted unit in a vector index.
type IndexEntry struct {
	ID      ID
	Vector  []float32
	Payload Payload
}

// EntryFromChunk builds an index entry for a chunk and its document embedding.
func EntryFromChunk(c *Chunk, vector []float32) *IndexEntry {
	return &IndexEntry{
		ID:     c.ID,
		Vector: vector,
		Payload: Payload{
			URL:        c.URL,
			Title:      c.Title,
			Heading:    c.Heading,
			Text:       c.Text,
			TokenCount: c.TokenCount,
			Ordinal:    c.Ordinal,
		},
	}
}

// ScoredEntry is a raw similarity match returned by a vector index.
type ScoredEntry struct {
	ID      ID
	Score   float32
	Payload Payload
}

// RetrievalResult is a ranked chunk returned for a query.
type RetrievalResult struct {
	Rank          int     `json:"rank"`
	Score         float32 `json:"score"`
	LowConfidence bool    `json:"low_confidence"`
	Payload
}

// Citation is a (title, url) reference found in a generated answer.
type Citation struct {
	Title string `json:"title" msgpack:"title"`
	URL   string `json:"url" msgpack:"url"`
}

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolInvocation records one retrieval tool call made while answering.
type ToolInvocation struct {
	ID        string `msgpack:"id" json:"id"`
	Name      string `msgpack:"name" json:"name"`
	Arguments string `msgpack:"arguments" json:"arguments"`
	Result    string `msgpack:"result" json:"result"`
}

// ConversationTurn is one append-only entry in a session log.
type ConversationTurn struct {
	SessionID       string           `msgpack:"session_id"`
	Seq             uint64           `msgpack:"seq"`
	Role            Role             `msgpack:"role"`
	Content         string           `msgpack:"content"`
	ToolInvocations []ToolInvocation `msgpack:"tool_invocations,omitempty"`
	Citations       []Citation       `msgpack:"citations,omitempty"`
	Timestamp       time.Time        `msgpack:"timestamp"`
}

// PageFailure describes a page that could not be ingested.
type PageFailure struct {
	URL     string `msgpack:"url" json:"url"`
	Kind    string `msgpack:"kind" json:"kind"`
	Message string `msgpack:"message" json:"message"`
}

// RunReport summarises an ingestion run.
type RunReport struct {
	Root       string        `msgpack:"root" json:"root"`
	Discovered int           `msgpack:"discovered" json:"discovered"`
	Processed  int           `msgpack:"processed" json:"processed"`
	Failed     int           `msgpack:"failed" json:"failed"`
	Failures   []PageFailure `msgpack:"failures" json:"failures"`
	Chunks     int           `msgpack:"chunks" json:"chunks"`
	Vectors    int           `msgpack:"vectors" json:"vectors"`
	StartedAt  time.Time     `msgpack:"started_at" json:"started_at"`
	Elapsed    time.Duration `msgpack:"elapsed" json:"elapsed"`
	Aborted    string        `msgpack:"aborted,omitempty" json:"aborted,omitempty"`
}
