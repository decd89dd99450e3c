package team

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// scriptedCompleter returns canned texts in order and records the messages
// it was called with.
type scriptedCompleter struct {
	texts []string
	errs  []error
	calls [][]*schema.Message
	// onCall, when set, runs before each completion (used to cancel mid-run).
	onCall func(turn int)
}

func (s *scriptedCompleter) Complete(ctx context.Context, messages []*schema.Message, availableTool tool.BaseTool) (string, error) {
	turn := len(s.calls)
	s.calls = append(s.calls, messages)
	if s.onCall != nil {
		s.onCall(turn)
	}
	if turn < len(s.errs) && s.errs[turn] != nil {
		return "", s.errs[turn]
	}
	if turn < len(s.texts) {
		return s.texts[turn], nil
	}
	return fmt.Sprintf("turn %d output", turn), nil
}

func testAgents() []*Agent {
	return []*Agent{
		NewRetrievalAgent(nil),
		NewWebAgent(nil),
		NewSynthesisAgent(),
	}
}

func newTestCoordinator(t *testing.T, completer Completer) *Coordinator {
	t.Helper()
	c, err := New(&Config{Agents: testAgents(), Completer: completer})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func Test_Coordinator_MessageCapBoundsRun(t *testing.T) {
	t.Parallel()

	// No sentinel anywhere: only the cap stops the run.
	completer := &scriptedCompleter{}
	c := newTestCoordinator(t, completer)

	entries, err := c.Run(context.Background(), "does RL generalize better than SFT?")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Seed plus exactly DefaultMessageCap appended agent messages.
	if len(entries) != DefaultMessageCap+1 {
		t.Fatalf("got %d entries, want %d", len(entries), DefaultMessageCap+1)
	}
	if c.State() != StateTerminated {
		t.Errorf("state = %v, want terminated", c.State())
	}

	// Fixed cycle: retrieval, web, synthesis, retrieval, web.
	wantSpeakers := []string{SeedSpeaker, "RetrievalAgent", "WebAgent", "SynthesisAgent", "RetrievalAgent", "WebAgent"}
	for i, e := range entries {
		if e.Speaker != wantSpeakers[i] {
			t.Errorf("entry %d speaker = %q, want %q", i, e.Speaker, wantSpeakers[i])
		}
	}
}

func Test_Coordinator_SentinelStopsAtSecondTurn(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{texts: []string{
		"corpus evidence summarized",
		"web findings. " + DefaultSentinel,
	}}
	c := newTestCoordinator(t, completer)

	entries, err := c.Run(context.Background(), "task")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Exactly 2 appended messages plus the seed.
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3: %+v", len(entries), entries)
	}
	if c.State() != StateTerminated {
		t.Errorf("state = %v, want terminated", c.State())
	}
}

func Test_Coordinator_SentinelInSeedStopsAfterFirstTurn(t *testing.T) {
	t.Parallel()

	// The policy is evaluated after appends only, so a sentinel in the
	// seed is noticed after the first agent message.
	completer := &scriptedCompleter{}
	c := newTestCoordinator(t, completer)

	entries, err := c.Run(context.Background(), "already "+DefaultSentinel)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("got %d entries, want seed + 1", len(entries))
	}
}

func Test_Coordinator_IsSingleUse(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(t, &scriptedCompleter{})
	if _, err := c.Run(context.Background(), "task"); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if _, err := c.Run(context.Background(), "task"); err == nil {
		t.Error("second Run on a terminated coordinator succeeded")
	}
}

func Test_Coordinator_CancellationReturnsPartialTranscript(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	completer := &scriptedCompleter{onCall: func(turn int) {
		if turn == 1 {
			cancel()
		}
	}}
	c := newTestCoordinator(t, completer)

	entries, err := c.Run(ctx, "task")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	// The second turn completes (cancellation is only checked at turn
	// boundaries), then the run stops: seed + 2 agent messages.
	if len(entries) != 3 {
		t.Errorf("got %d entries, want 3: %+v", len(entries), entries)
	}
}

func Test_Coordinator_CompletionFailureDegradesIntoText(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{errs: []error{errors.New("model unavailable")}}
	c := newTestCoordinator(t, completer)

	entries, err := c.Run(context.Background(), "task")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !strings.Contains(entries[1].Text, "model unavailable") {
		t.Errorf("failed turn text = %q, want error description", entries[1].Text)
	}
	// The run continued to the cap despite the failed first turn.
	if len(entries) != DefaultMessageCap+1 {
		t.Errorf("got %d entries, want %d", len(entries), DefaultMessageCap+1)
	}
}

func Test_Coordinator_BuildsPromptFromTranscript(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{texts: []string{"first finding", DefaultSentinel}}
	c := newTestCoordinator(t, completer)

	if _, err := c.Run(context.Background(), "the task"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Second call: system prompt, seed, then the first agent's message
	// attributed by speaker.
	msgs := completer.calls[1]
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	if msgs[0].Role != schema.System || msgs[0].Content != webPrompt {
		t.Errorf("msgs[0] = %v %q, want web agent system prompt", msgs[0].Role, msgs[0].Content)
	}
	if msgs[1].Role != schema.User || msgs[1].Content != "the task" {
		t.Errorf("msgs[1] = %v %q, want seed task", msgs[1].Role, msgs[1].Content)
	}
	if msgs[2].Content != "RetrievalAgent: first finding" {
		t.Errorf("msgs[2] = %q, want attributed retrieval message", msgs[2].Content)
	}
}

func Test_Coordinator_ObserverSeesEveryAppend(t *testing.T) {
	t.Parallel()

	var seen []string
	c, err := New(&Config{
		Agents:    testAgents(),
		Completer: &scriptedCompleter{texts: []string{DefaultSentinel}},
		OnEntry:   func(e Entry) { seen = append(seen, e.Speaker) },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := c.Run(context.Background(), "task"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(seen) != 2 || seen[0] != SeedSpeaker || seen[1] != "RetrievalAgent" {
		t.Errorf("observed speakers = %v", seen)
	}
}

func Test_TerminationConditions(t *testing.T) {
	t.Parallel()

	var tr Transcript
	tr.Append(Entry{Speaker: SeedSpeaker, Text: "task"})

	sentinel := SentinelCondition{Marker: DefaultSentinel}
	cap5 := MessageCapCondition{Cap: 5}

	if sentinel.Satisfied(&tr, 0) {
		t.Error("sentinel fired without marker")
	}
	tr.Append(Entry{Speaker: "SynthesisAgent", Text: "done. " + DefaultSentinel})
	if !sentinel.Satisfied(&tr, 1) {
		t.Error("sentinel missed marker")
	}

	if cap5.Satisfied(&tr, 4) {
		t.Error("cap fired below threshold")
	}
	if !cap5.Satisfied(&tr, 5) {
		t.Error("cap missed threshold")
	}

	or := Or(sentinel, cap5)
	var empty Transcript
	if or.Satisfied(&empty, 0) {
		t.Error("or fired with neither condition satisfied")
	}
	if !or.Satisfied(&empty, 5) {
		t.Error("or missed cap")
	}
}
