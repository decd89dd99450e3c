package rag

import (
	"fmt"
	"strings"
)

// EvidenceBundle is the ordered set of top passages selected for one query,
// sorted by score descending. Built fresh per query and discarded after
// formatting.
type EvidenceBundle []Passage

// Format renders the bundle as the numbered source list handed to the
// agent conversation:
//
//	Search results for query: <query>
//
//	Source 1: <title>
//	Content: <text>
//
//	Source 2: ...
//
// Passage texts are single lines by construction, so the output is
// reparseable with ParseSources.
func (b EvidenceBundle) Format(query string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Search results for query: %s\n\n", query)
	for i, p := range b {
		fmt.Fprintf(&sb, "Source %d: %s\n", i+1, strings.ReplaceAll(p.Title, "%20", " "))
		fmt.Fprintf(&sb, "Content: %s\n\n", p.Text)
	}
	return sb.String()
}

// SourceRef is one (title, text) pair recovered from formatted evidence.
type SourceRef struct {
	// Title is the source document title.
	Title string
	// Text is the passage text.
	Text string
}

// ParseSources recovers the ordered (title, text) pairs from text produced
// by EvidenceBundle.Format. Lines that do not belong to a source block are
// ignored, so the parser also tolerates surrounding conversation text.
func ParseSources(formatted string) []SourceRef {
	var refs []SourceRef
	var current *SourceRef

	for line := range strings.Lines(formatted) {
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "Source "):
			_, rest, ok := strings.Cut(line, ": ")
			if !ok {
				continue
			}
			refs = append(refs, SourceRef{Title: rest})
			current = &refs[len(refs)-1]
		case strings.HasPrefix(line, "Content: ") && current != nil:
			current.Text = strings.TrimPrefix(line, "Content: ")
			current = nil
		}
	}
	return refs
}
