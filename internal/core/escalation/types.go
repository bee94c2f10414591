// Package escalation contains the pure business logic of the escalation
// engine: block validation guards, step timing, step planning, target scope,
// and the trigger windows. Nothing in this package performs I/O.
package escalation

import (
	"time"

	"github.com/example/pulse/internal/core/routing"
)

// Trigger types.
const (
	TriggerBlockerReported      = "blocker_reported"
	TriggerDeadlineRisk         = "deadline_risk"
	TriggerOutputBelowThreshold = "output_below_threshold"
)

// Target scope types.
const (
	TargetAll   = "all"
	TargetSquad = "squad"
	TargetRole  = "role"
)

// Route types.
const (
	RouteReportsTo = routing.ReportsTo
	RouteRole      = routing.Role
	RouteUser      = routing.User
)

// Instance status constants.
const (
	StatusActive   = "active"
	StatusResolved = "resolved"
)

// Resolution reasons recorded on resolved instances.
const (
	ReasonStepsExhausted   = "steps_exhausted"
	ReasonBlockerResolved  = "blocker_resolved"
	ReasonConditionCleared = "condition_cleared"
	ReasonManual           = "manual"
)

// MaxSteps is the longest step chain a block may define.
const MaxSteps = 10

// Step is one (delay, route, message) unit of a block's chain.
// DelayMinutes is measured from the instance start, not the previous step.
type Step struct {
	DelayMinutes int    `json:"delayMinutes" yaml:"delayMinutes"`
	RouteType    string `json:"routeType" yaml:"routeType"`
	RouteRole    string `json:"routeRole,omitempty" yaml:"routeRole,omitempty"`
	RouteUserID  string `json:"routeUserId,omitempty" yaml:"routeUserId,omitempty"`
	Message      string `json:"message,omitempty" yaml:"message,omitempty"`
}

// Delay returns the step delay as a duration.
func (s Step) Delay() time.Duration {
	return time.Duration(s.DelayMinutes) * time.Minute
}

// Route returns the step's recipient rule.
func (s Step) Route() routing.Route {
	return routing.Route{Type: s.RouteType, Role: s.RouteRole, UserID: s.RouteUserID}
}

// Target describes which project members a block applies to.
type Target struct {
	Type    string
	SquadID string // Only for TargetSquad
	Role    string // Only for TargetRole
}

// Subject kinds. An instance's subject is the work item it concerns.
const (
	SubjectTask        = "task"
	SubjectDeliverable = "deliverable"
)

// Subject is a tagged reference to either a task or a deliverable.
// The zero value means "no subject".
type Subject struct {
	Kind string
	ID   string
}

// IsZero reports whether the subject is unset.
func (s Subject) IsZero() bool {
	return s.Kind == "" && s.ID == ""
}

// String renders the subject as "kind:id", or "" when unset.
func (s Subject) String() string {
	if s.IsZero() {
		return ""
	}
	return s.Kind + ":" + s.ID
}

// IsKnownTrigger reports whether t is a supported trigger type.
func IsKnownTrigger(t string) bool {
	switch t {
	case TriggerBlockerReported, TriggerDeadlineRisk, TriggerOutputBelowThreshold:
		return true
	}
	return false
}
