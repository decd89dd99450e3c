package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lucaspecina/deepresearch-azure/internal/websearch"
)

// fakeSession is a scripted websearch.Session that records its lifecycle.
type fakeSession struct {
	answer *websearch.Answer
	err    error
	closed bool
}

func (f *fakeSession) Search(ctx context.Context, query string) (*websearch.Answer, error) {
	return f.answer, f.err
}

func (f *fakeSession) Close(ctx context.Context) error {
	f.closed = true
	return nil
}

// fakeProvider hands out a single scripted session.
type fakeProvider struct {
	session *fakeSession
	openErr error
	opened  int
}

func (f *fakeProvider) Open(ctx context.Context) (websearch.Session, error) {
	f.opened++
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.session, nil
}

func Test_WebSearchTool_FormatsAnswerWithSources(t *testing.T) {
	t.Parallel()

	sess := &fakeSession{answer: &websearch.Answer{
		Text: "RL generalizes better according to recent work.",
		Citations: []websearch.Citation{
			{Title: "Paper", URL: "https://example.com/a"},
			{Title: "Blog", URL: "https://example.com/b"},
		},
	}}
	tool := NewWebSearchTool(&fakeProvider{session: sess}, nil)

	out := tool.Search(context.Background(), "rl vs sft")

	want := "RL generalizes better according to recent work.\n\nSources:\n- https://example.com/a\n- https://example.com/b"
	if out != want {
		t.Errorf("out = %q, want %q", out, want)
	}
	if !sess.closed {
		t.Error("session was not closed after a successful search")
	}
}

func Test_WebSearchTool_EmptyCitationsSuffix(t *testing.T) {
	t.Parallel()

	sess := &fakeSession{answer: &websearch.Answer{Text: "Some answer."}}
	tool := NewWebSearchTool(&fakeProvider{session: sess}, nil)

	out := tool.Search(context.Background(), "q")

	if !strings.HasSuffix(out, MsgNoCitations) {
		t.Errorf("out = %q, want %q suffix", out, MsgNoCitations)
	}
	if strings.Contains(out, "Sources:") {
		t.Errorf("out = %q, must not contain a dangling Sources header", out)
	}
}

func Test_WebSearchTool_EmptyQueryIsValidationFailure(t *testing.T) {
	t.Parallel()

	cases := []string{"", "   ", "\n\t"}
	for _, query := range cases {
		provider := &fakeProvider{session: &fakeSession{}}
		obs := &recordingObserver{}
		tool := NewWebSearchTool(provider, obs.fn())

		out := tool.Search(context.Background(), query)

		if out != MsgEmptyQuery {
			t.Errorf("query %q: out = %q, want %q", query, out, MsgEmptyQuery)
		}
		if provider.opened != 0 {
			t.Errorf("query %q: backend was invoked for an invalid query", query)
		}
		if len(obs.outcomes) != 1 || obs.outcomes[0] != "search_web/validation_error" {
			t.Errorf("query %q: outcomes = %v", query, obs.outcomes)
		}
	}
}

func Test_WebSearchTool_ClosesSessionOnSearchFailure(t *testing.T) {
	t.Parallel()

	sess := &fakeSession{err: errors.New("run failed")}
	obs := &recordingObserver{}
	tool := NewWebSearchTool(&fakeProvider{session: sess}, obs.fn())

	out := tool.Search(context.Background(), "q")

	if !strings.HasPrefix(out, "Web search error:") {
		t.Errorf("out = %q, want error text", out)
	}
	if !sess.closed {
		t.Error("session leaked after search failure")
	}
	if len(obs.outcomes) != 1 || obs.outcomes[0] != "search_web/backend_error" {
		t.Errorf("outcomes = %v", obs.outcomes)
	}
}

func Test_WebSearchTool_OpenFailureIsBackendError(t *testing.T) {
	t.Parallel()

	tool := NewWebSearchTool(&fakeProvider{openErr: errors.New("quota exceeded")}, nil)
	out := tool.Search(context.Background(), "q")
	if !strings.HasPrefix(out, "Web search error:") || !strings.Contains(out, "quota exceeded") {
		t.Errorf("out = %q", out)
	}
}

func Test_WebSearchTool_InvokableRun(t *testing.T) {
	t.Parallel()

	sess := &fakeSession{answer: &websearch.Answer{Text: "ok"}}
	tool := NewWebSearchTool(&fakeProvider{session: sess}, nil)

	out, err := tool.InvokableRun(context.Background(), `{"query":"q"}`)
	if err != nil {
		t.Fatalf("InvokableRun: %v", err)
	}
	if !strings.HasPrefix(out, "ok") {
		t.Errorf("out = %q", out)
	}
}
