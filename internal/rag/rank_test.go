package rag

import (
	"iter"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// testConcepts is a small concept vocabulary used across ranker tests.
var testConcepts = []string{"generalization", "memorization", "reinforcement learning"}

// seq wraps a slice as a single-use paragraph sequence.
func seq(paragraphs ...string) iter.Seq[string] {
	return slices.Values(paragraphs)
}

func Test_Ranker_ScoresBySubstringCount(t *testing.T) {
	t.Parallel()

	r := NewRanker(testConcepts)
	got := r.Rank("Paper A", seq(
		"Reinforcement Learning improves GENERALIZATION while reducing memorization of the training distribution.",
		"This paragraph mentions nothing from the vocabulary at all.",
		"Generalization is measured on held-out rule variants.",
	))

	want := []Passage{
		{Title: "Paper A", Text: "Reinforcement Learning improves GENERALIZATION while reducing memorization of the training distribution.", Score: 3},
		{Title: "Paper A", Text: "Generalization is measured on held-out rule variants.", Score: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Rank mismatch (-want +got):\n%s", diff)
	}
}

func Test_Ranker_ZeroScoreIsHardFilter(t *testing.T) {
	t.Parallel()

	// Even when no other passages exist, a zero-score paragraph must not
	// be promoted into the bundle.
	r := NewRanker(testConcepts)
	got := r.Rank("Paper B", seq("Completely unrelated prose about database indexing strategies."))
	if len(got) != 0 {
		t.Errorf("zero-score paragraph reached the output: %+v", got)
	}
}

func Test_Ranker_DeduplicatesAcrossHits(t *testing.T) {
	t.Parallel()

	const dup = "Generalization gains persist across unseen environments."

	r := NewRanker(testConcepts)
	first := r.Rank("Paper A", seq(dup))
	second := r.Rank("Paper B", seq(dup))

	if len(first) != 1 {
		t.Fatalf("first hit: got %d passages, want 1", len(first))
	}
	if len(second) != 0 {
		t.Errorf("duplicate text from a different source was accepted: %+v", second)
	}
}

func Test_SelectTop_StableDescendingTruncation(t *testing.T) {
	t.Parallel()

	passages := []Passage{
		{Title: "a", Text: "p1", Score: 1},
		{Title: "b", Text: "p2", Score: 3},
		{Title: "c", Text: "p3", Score: 1},
		{Title: "d", Text: "p4", Score: 2},
		{Title: "e", Text: "p5", Score: 3},
		{Title: "f", Text: "p6", Score: 1},
		{Title: "g", Text: "p7", Score: 1},
	}

	got := SelectTop(passages)

	// Stable: p2 before p5 (both score 3), p1 before p3 (both score 1).
	want := EvidenceBundle{
		{Title: "b", Text: "p2", Score: 3},
		{Title: "e", Text: "p5", Score: 3},
		{Title: "d", Text: "p4", Score: 2},
		{Title: "a", Text: "p1", Score: 1},
		{Title: "c", Text: "p3", Score: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SelectTop mismatch (-want +got):\n%s", diff)
	}
}

func Test_SelectTop_BundleLength(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		positives int
		want      int
	}{
		{"empty", 0, 0},
		{"below cap", 3, 3},
		{"at cap", 5, 5},
		{"above cap", 9, 5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			passages := make([]Passage, tc.positives)
			for i := range passages {
				passages[i] = Passage{Text: "p", Score: 1}
			}
			if got := len(SelectTop(passages)); got != tc.want {
				t.Errorf("bundle length = %d, want %d", got, tc.want)
			}
		})
	}
}

func Test_SelectTop_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	passages := []Passage{
		{Text: "low", Score: 1},
		{Text: "high", Score: 5},
	}
	_ = SelectTop(passages)
	if passages[0].Text != "low" {
		t.Errorf("SelectTop reordered its input slice")
	}
}
