package rag

import (
	"iter"
	"os"
	"sort"
	"strings"
)

// MaxBundlePassages is the maximum number of passages in an evidence bundle.
const MaxBundlePassages = 5

// DefaultConcepts is the built-in relevance vocabulary for the RL
// generalization corpus. Override with RESEARCH_CONCEPTS (comma-separated)
// or the research.concepts config key.
var DefaultConcepts = []string{
	"rl generalizes",
	"generalization",
	"memorization",
	"supervised fine-tuning",
	"sft",
	"reinforcement learning",
	"generalize",
	"memorize",
	"performance on unseen",
}

// ConceptsFromEnv returns the concept vocabulary from the RESEARCH_CONCEPTS
// environment variable (comma-separated), falling back to DefaultConcepts.
func ConceptsFromEnv() []string {
	raw := os.Getenv("RESEARCH_CONCEPTS")
	if raw == "" {
		return DefaultConcepts
	}
	var concepts []string
	for _, c := range strings.Split(raw, ",") {
		if c = strings.TrimSpace(c); c != "" {
			concepts = append(concepts, c)
		}
	}
	if len(concepts) == 0 {
		return DefaultConcepts
	}
	return concepts
}

// Ranker scores candidate paragraphs against a topical concept set and
// deduplicates them across all results of one retrieval call. A Ranker
// carries per-call state (the set of accepted paragraph texts) and must
// not be reused across retrieval calls.
type Ranker struct {
	// concepts is the lowercased concept vocabulary to score against.
	concepts []string

	// seen holds the exact text of every accepted paragraph, so an
	// identical paragraph from a later hit is skipped.
	seen map[string]struct{}
}

// NewRanker constructs a Ranker for a single retrieval call.
// The concept set is lowercased once so scoring is a plain substring scan.
func NewRanker(concepts []string) *Ranker {
	lowered := make([]string, 0, len(concepts))
	for _, c := range concepts {
		c = strings.TrimSpace(strings.ToLower(c))
		if c != "" {
			lowered = append(lowered, c)
		}
	}
	return &Ranker{
		concepts: lowered,
		seen:     make(map[string]struct{}),
	}
}

// score counts how many concepts appear as a case-insensitive substring
// of the paragraph.
func (r *Ranker) score(paragraph string) int {
	lower := strings.ToLower(paragraph)
	n := 0
	for _, c := range r.concepts {
		if strings.Contains(lower, c) {
			n++
		}
	}
	return n
}

// Rank scores each candidate paragraph from one hit and returns the
// qualifying passages in discovery order. Paragraphs with a zero score
// are discarded outright — this is a hard relevance filter, not a soft
// signal — and paragraphs whose exact text was already accepted (from
// this or any earlier hit in the same call) are skipped.
func (r *Ranker) Rank(title string, paragraphs iter.Seq[string]) []Passage {
	var passages []Passage
	for p := range paragraphs {
		if _, dup := r.seen[p]; dup {
			continue
		}
		s := r.score(p)
		if s == 0 {
			continue
		}
		r.seen[p] = struct{}{}
		passages = append(passages, Passage{Title: title, Text: p, Score: s})
	}
	return passages
}

// SelectTop sorts passages by score descending — stable, so discovery
// order breaks ties — and truncates to MaxBundlePassages. An empty input
// yields an empty bundle; that is the "no relevant information" signal,
// not an error.
func SelectTop(passages []Passage) EvidenceBundle {
	sorted := make([]Passage, len(passages))
	copy(sorted, passages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})
	if len(sorted) > MaxBundlePassages {
		sorted = sorted[:MaxBundlePassages]
	}
	return EvidenceBundle(sorted)
}
