// Package chunk splits extracted documentation pages into retrieval units.
//
// Every section of a page (the text under one heading) is chunked on its own,
// so heading boundaries always win over token-exact cuts. Sections longer than
// the token bound are cut at the last sentence end in the upper half of the
// window, or hard-cut at the bound when there is none, and the next window
// starts OverlapTokens before the cut.
//
//	c, err := chunk.NewChunker(chunk.WithTokenizer(tok))
//	chunks := c.Chunk(page)
package chunk
