package team

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/schema"

	"github.com/lucaspecina/deepresearch-azure/internal/budget"
	"github.com/lucaspecina/deepresearch-azure/internal/logging"
)

// State is the coordinator lifecycle state.
type State int

const (
	// StateIdle means the coordinator has not started a run yet.
	StateIdle State = iota
	// StateRunning means turns are being issued.
	StateRunning
	// StateTerminated means the termination policy fired. Absorbing: a
	// terminated coordinator never issues another turn.
	StateTerminated
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config holds the dependencies for constructing a Coordinator.
type Config struct {
	// Agents is the fixed turn cycle. Order is binding: no agent is ever
	// skipped or reordered based on content.
	Agents []*Agent

	// Completer produces each agent's message.
	Completer Completer

	// Termination decides when the run stops. Defaults to
	// DefaultTermination (sentinel OR message cap).
	Termination Condition

	// MaxContextTokens is the estimated input budget per completion call.
	// Transcript history is trimmed oldest-first to fit; the seed task and
	// the agent's system prompt are never trimmed. Defaults to
	// budget.DefaultMaxContextTokens.
	MaxContextTokens int

	// OnEntry, when set, observes every transcript append (the seed
	// included) as it happens. Used by the server to stream runs.
	OnEntry func(Entry)
}

// Coordinator drives one research run: it seeds the transcript with the
// task, cycles through the agents in fixed order, and stops when the
// termination policy is satisfied. Turns are strictly sequential; there is
// at most one outstanding completion or tool call at any time.
type Coordinator struct {
	agents           []*Agent
	completer        Completer
	termination      Condition
	maxContextTokens int
	onEntry          func(Entry)

	state      State
	cursor     int
	turns      int
	transcript Transcript
}

// New validates the config and constructs an idle Coordinator. A
// Coordinator is single-use: one Run per instance.
func New(cfg *Config) (*Coordinator, error) {
	if len(cfg.Agents) == 0 {
		return nil, fmt.Errorf("team: at least one agent is required")
	}
	if cfg.Completer == nil {
		return nil, fmt.Errorf("team: completer must not be nil")
	}

	termination := cfg.Termination
	if termination == nil {
		termination = DefaultTermination()
	}
	maxCtx := cfg.MaxContextTokens
	if maxCtx <= 0 {
		maxCtx = budget.DefaultMaxContextTokens
	}

	return &Coordinator{
		agents:           cfg.Agents,
		completer:        cfg.Completer,
		termination:      termination,
		maxContextTokens: maxCtx,
		onEntry:          cfg.OnEntry,
		state:            StateIdle,
	}, nil
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State { return c.state }

// Transcript returns a copy of the transcript so far.
func (c *Coordinator) Transcript() []Entry { return c.transcript.Entries() }

// Run executes the research conversation for task and returns the full
// transcript. Cancellation is honored at turn boundaries only: when ctx is
// done, Run returns the partial transcript together with ctx.Err().
// Tool and completion failures never abort the run — they degrade into
// transcript text and the message cap bounds the conversation.
func (c *Coordinator) Run(ctx context.Context, task string) ([]Entry, error) {
	if c.state != StateIdle {
		return nil, fmt.Errorf("team: coordinator is %s, want idle", c.state)
	}

	log := logging.FromContext(ctx)

	c.append(Entry{Speaker: SeedSpeaker, Text: task})
	c.state = StateRunning
	c.cursor = 0
	log.Info("team: run started", slog.String("task", task))

	for c.state == StateRunning {
		select {
		case <-ctx.Done():
			log.Warn("team: run cancelled at turn boundary",
				slog.Int("turns", c.turns),
			)
			return c.transcript.Entries(), ctx.Err()
		default:
		}

		agent := c.agents[c.cursor]
		text, err := c.completer.Complete(ctx, c.buildMessages(agent), agent.Tool)
		if err != nil {
			// The turn must still yield appendable text; the message cap
			// guarantees a failing backend cannot loop forever.
			log.Error("team: turn failed",
				slog.String("agent", agent.Name),
				slog.Any("error", err),
			)
			text = fmt.Sprintf("Error: %v", err)
		}

		c.append(Entry{Speaker: agent.Name, Text: text})
		c.turns++
		c.cursor = (c.cursor + 1) % len(c.agents)

		if c.termination.Satisfied(&c.transcript, c.turns) {
			c.state = StateTerminated
			log.Info("team: run terminated", slog.Int("turns", c.turns))
		}
	}

	return c.transcript.Entries(), nil
}

// append records an entry and notifies the observer.
func (c *Coordinator) append(e Entry) {
	c.transcript.Append(e)
	if c.onEntry != nil {
		c.onEntry(e)
	}
}

// buildMessages renders the transcript for one agent's completion call:
// the agent's system prompt, the seed task as the user message, then each
// prior agent message attributed by speaker. Agent messages are trimmed
// oldest-first to fit the context budget; the prompt and seed never are.
func (c *Coordinator) buildMessages(agent *Agent) []*schema.Message {
	entries := c.transcript.entries

	system := schema.SystemMessage(agent.SystemPrompt)
	seed := schema.UserMessage(entries[0].Text)

	history := make([]*schema.Message, 0, len(entries)-1)
	for _, e := range entries[1:] {
		history = append(history, schema.AssistantMessage(fmt.Sprintf("%s: %s", e.Speaker, e.Text), nil))
	}

	fixed := []*schema.Message{system, seed}
	history = budget.TrimHistory(fixed, history, c.maxContextTokens)

	out := make([]*schema.Message, 0, 2+len(history))
	out = append(out, system, seed)
	out = append(out, history...)
	return out
}
