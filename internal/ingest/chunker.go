package ingest

import (
	"fmt"
	"regexp"
	"strings"
)

// paragraphBreak matches a blank line: two or more consecutive newlines.
var paragraphBreak = regexp.MustCompile(`\n{2,}`)

// Chunker splits text into overlapping word windows within paragraph boundaries.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in words). A size below 1
// is treated as 1 and a negative overlap as 0.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize < 1 {
		chunkSize = 1
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Chunk returns the chunk texts in emission order, each prefixed with "Section N:\n"
// where N counts from 1 across the whole document.
func (c *Chunker) Chunk(text string) []string {
	var chunks []string
	for _, p := range Paragraphs(text) {
		chunks = append(chunks, c.split(p)...)
	}
	for i, ch := range chunks {
		chunks[i] = fmt.Sprintf("Section %d:\n%s", i+1, ch)
	}
	return chunks
}

// split emits a short paragraph as-is and a long one as sliding windows of chunkSize
// words. A window starts at every step position, so the tail is always covered.
func (c *Chunker) split(paragraph string) []string {
	words := strings.Fields(paragraph)
	if len(words) <= c.chunkSize {
		return []string{paragraph}
	}
	step := c.chunkSize - c.chunkOverlap
	if step <= 0 {
		step = 1
	}
	var windows []string
	for i := 0; i < len(words); i += step {
		end := i + c.chunkSize
		if end > len(words) {
			end = len(words)
		}
		windows = append(windows, strings.Join(words[i:end], " "))
	}
	return windows
}

// Paragraphs normalizes text and splits it on blank lines, dropping empty paragraphs.
func Paragraphs(text string) []string {
	var paras []string
	for _, p := range paragraphBreak.Split(Normalize(text), -1) {
		if p = strings.TrimSpace(p); p != "" {
			paras = append(paras, p)
		}
	}
	return paras
}

// StripSectionLabel removes the "Section N:\n" prefix added by Chunk.
func StripSectionLabel(chunk string) string {
	if !strings.HasPrefix(chunk, "Section ") {
		return chunk
	}
	if i := strings.Index(chunk, ":\n"); i >= 0 {
		return chunk[i+2:]
	}
	return chunk
}
