// Package effects defines effect types as data structures representing I/O operations.
// This is the foundation of the Functional Core / Imperative Shell pattern.
// Effects are pure data - they describe what should happen, not how.
package effects

import "time"

// Effect is the base interface for all effects.
// Effects represent I/O operations as data that can be interpreted by the shell.
type Effect interface {
	// EffectType returns a string identifier for the effect type.
	EffectType() string
}

// LogEffect represents a logging operation.
type LogEffect struct {
	Level   string // "info", "warn", "error"
	Message string
	Fields  map[string]any
}

func (e LogEffect) EffectType() string { return "log" }

// NotifyEffect represents dispatching a notification to one recipient.
type NotifyEffect struct {
	RecipientID string
	Message     string
	Context     map[string]string
}

func (e NotifyEffect) EffectType() string { return "notify" }

// Transition operations.
const (
	TransitionAdvance  = "advance"  // current_step = ExpectedStep + 1
	TransitionComplete = "complete" // status = resolved, steps exhausted
)

// TransitionEffect represents a conditional instance state change. The shell
// must apply it only if the instance is still active at ExpectedStep.
type TransitionEffect struct {
	InstanceID   string
	ExpectedStep int
	Operation    string
	At           time.Time
}

func (e TransitionEffect) EffectType() string { return "transition" }

// ScheduleEffect represents enqueueing a delayed job.
type ScheduleEffect struct {
	Kind     string
	DedupKey string
	RunAt    time.Time
	Payload  any
}

func (e ScheduleEffect) EffectType() string { return "schedule" }
