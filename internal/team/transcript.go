// Package team implements the turn-based agent coordinator: a fixed
// round-robin of research agents sharing one append-only transcript, with
// OR-composed termination conditions. The coordinator owns the transcript
// and the termination state for the lifetime of one run; agents never touch
// either directly.
package team

import (
	"fmt"
	"strings"
)

// SeedSpeaker is the speaker label for the initial task entry.
const SeedSpeaker = "user"

// Entry is one transcript message: who spoke and what they said.
type Entry struct {
	// Speaker is the agent name, or SeedSpeaker for the initial task.
	Speaker string
	// Text is the message content.
	Text string
}

// Transcript is the append-only conversation record for one run. The zero
// value is ready to use. Not safe for concurrent use; the coordinator is
// the only writer.
type Transcript struct {
	entries []Entry
}

// Append adds one entry to the transcript.
func (t *Transcript) Append(e Entry) {
	t.entries = append(t.entries, e)
}

// Entries returns a copy of the transcript so callers cannot mutate the
// coordinator's record.
func (t *Transcript) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of entries including the seed.
func (t *Transcript) Len() int { return len(t.entries) }

// Contains reports whether any entry's text contains the given marker.
func (t *Transcript) Contains(marker string) bool {
	for _, e := range t.entries {
		if strings.Contains(e.Text, marker) {
			return true
		}
	}
	return false
}

// String renders the transcript as ordered speaker/text pairs.
func (t *Transcript) String() string {
	var sb strings.Builder
	for i, e := range t.entries {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "%s: %s", e.Speaker, e.Text)
	}
	return sb.String()
}
