package rag

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func Test_EvidenceBundle_FormatParseRoundTrip(t *testing.T) {
	t.Parallel()

	bundle := EvidenceBundle{
		{Title: "RL Generalization Study", Text: "RL policies generalize to unseen rule variants while SFT memorizes.", Score: 3},
		{Title: "Scaling%20Report", Text: "Outcome rewards shape which circuits form during training.", Score: 1},
	}

	formatted := bundle.Format("RL generalization")
	got := ParseSources(formatted)

	want := []SourceRef{
		{Title: "RL Generalization Study", Text: "RL policies generalize to unseen rule variants while SFT memorizes."},
		{Title: "Scaling Report", Text: "Outcome rewards shape which circuits form during training."},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func Test_EvidenceBundle_FormatNumbersSources(t *testing.T) {
	t.Parallel()

	bundle := EvidenceBundle{
		{Title: "A", Text: "first", Score: 2},
		{Title: "B", Text: "second", Score: 1},
	}
	formatted := bundle.Format("q")

	if !strings.Contains(formatted, "Search results for query: q") {
		t.Errorf("missing query header:\n%s", formatted)
	}
	if !strings.Contains(formatted, "Source 1: A") || !strings.Contains(formatted, "Source 2: B") {
		t.Errorf("sources not numbered in order:\n%s", formatted)
	}
}

func Test_ParseSources_IgnoresSurroundingText(t *testing.T) {
	t.Parallel()

	formatted := "Here is what I found.\n\nSource 1: T\nContent: body text\n\nLet me know if you need more."
	got := ParseSources(formatted)
	if len(got) != 1 || got[0].Title != "T" || got[0].Text != "body text" {
		t.Errorf("ParseSources = %+v, want one (T, body text) pair", got)
	}
}
