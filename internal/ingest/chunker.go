// Package ingest turns a CV document into embedded, tenant-scoped chunks in
// the retrieval store. PDF layout extraction stays outside this process: the
// pipeline accepts markdown or plain text, i.e. the output of whatever
// converter produced it.
package ingest

import (
	"strings"
)

// Chunker splits a markdown document into retrieval-sized sections. Splitting
// happens in two passes: first along markdown headings so a section like
// "Experience" keeps its heading as metadata, then a recursive character
// split caps any section that is still too large, carrying Overlap bytes of
// context across the cut.
type Chunker struct {
	// ChunkSize is the maximum chunk length in bytes.
	ChunkSize int
	// Overlap is how much trailing context is repeated at the start of the
	// next chunk when a section is cut.
	Overlap int
}

// Section is one split unit: content plus the heading chain it fell under.
type Section struct {
	Heading string
	Content string
}

// headingPrefixes are the markdown levels the header pass splits on.
var headingPrefixes = []string{"### ", "## ", "# "}

// Split runs both passes and returns the final chunk list in document order.
func (c Chunker) Split(document string) []Section {
	size := c.ChunkSize
	if size <= 0 {
		size = 800
	}
	overlap := c.Overlap
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var out []Section
	for _, sec := range splitByHeadings(document) {
		for _, piece := range recursiveSplit(sec.Content, size, overlap) {
			out = append(out, Section{Heading: sec.Heading, Content: piece})
		}
	}
	return out
}

// splitByHeadings groups lines under their nearest markdown heading.
func splitByHeadings(document string) []Section {
	var sections []Section
	var current Section
	var body []string

	flush := func() {
		content := strings.TrimSpace(strings.Join(body, "\n"))
		if content != "" {
			sections = append(sections, Section{Heading: current.Heading, Content: content})
		}
		body = body[:0]
	}

	for _, line := range strings.Split(document, "\n") {
		if heading, ok := headingText(line); ok {
			flush()
			current.Heading = heading
			continue
		}
		body = append(body, line)
	}
	flush()
	return sections
}

func headingText(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	for _, prefix := range headingPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, prefix)), true
		}
	}
	return "", false
}

// recursiveSplit cuts text into pieces of at most size bytes, preferring
// paragraph breaks, then line breaks, then spaces, and only then a hard cut.
func recursiveSplit(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= size {
		return []string{text}
	}

	cut := findCut(text, size)
	head := strings.TrimSpace(text[:cut])

	// Re-attach the overlap window so context survives the cut. The tail
	// must always advance past at least one byte of new input, otherwise a
	// cut shorter than the overlap would recurse forever.
	tailStart := cut - overlap
	if tailStart <= 0 {
		tailStart = cut
	}
	rest := strings.TrimSpace(text[tailStart:])

	pieces := []string{head}
	if rest != "" && rest != head {
		pieces = append(pieces, recursiveSplit(rest, size, overlap)...)
	}
	return pieces
}

// separators in preference order, mirroring the usual recursive character
// splitter behavior.
var separators = []string{"\n\n", "\n", " "}

func findCut(text string, size int) int {
	window := text[:size]
	for _, sep := range separators {
		if idx := strings.LastIndex(window, sep); idx > 0 {
			return idx
		}
	}
	return size
}
