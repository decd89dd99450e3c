package team

// Default termination parameters.
const (
	// DefaultSentinel is the completion marker the synthesis agent emits.
	DefaultSentinel = "RESEARCH COMPLETE"

	// DefaultMessageCap bounds the appended agent messages per run.
	DefaultMessageCap = 5
)

// Condition decides whether a run should stop. Conditions are pure
// predicates over the current transcript snapshot and the count of appended
// agent messages (the seed task is not counted).
type Condition interface {
	Satisfied(t *Transcript, turns int) bool
}

// SentinelCondition stops once any transcript entry contains the marker.
type SentinelCondition struct {
	// Marker is the completion literal to look for.
	Marker string
}

// Satisfied reports whether the marker appears anywhere in the transcript.
func (c SentinelCondition) Satisfied(t *Transcript, turns int) bool {
	return t.Contains(c.Marker)
}

// MessageCapCondition stops once the appended message count reaches Cap.
type MessageCapCondition struct {
	// Cap is the maximum number of appended agent messages.
	Cap int
}

// Satisfied reports whether the cap has been reached.
func (c MessageCapCondition) Satisfied(t *Transcript, turns int) bool {
	return turns >= c.Cap
}

// orCondition is satisfied when any sub-condition is.
type orCondition []Condition

func (o orCondition) Satisfied(t *Transcript, turns int) bool {
	for _, c := range o {
		if c.Satisfied(t, turns) {
			return true
		}
	}
	return false
}

// Or composes conditions so that any one of them terminates the run.
// Evaluation order does not matter; every sub-condition is a pure predicate.
func Or(conditions ...Condition) Condition {
	return orCondition(conditions)
}

// DefaultTermination is the standard policy: sentinel match or message cap,
// whichever comes first.
func DefaultTermination() Condition {
	return Or(
		SentinelCondition{Marker: DefaultSentinel},
		MessageCapCondition{Cap: DefaultMessageCap},
	)
}
