package models

// Status is the handling state of a request.
type Status string

const (
	StatusNew       Status = "new"
	StatusConfirmed Status = "confirmed"
	StatusSnoozed   Status = "snoozed"
	StatusCancelled Status = "cancelled"
)

// legalTransitions is the full set of allowed status edges. Cancelled is
// terminal: it has no outgoing edges.
var legalTransitions = map[Status][]Status{
	StatusNew:       {StatusConfirmed, StatusSnoozed, StatusCancelled},
	StatusConfirmed: {StatusSnoozed, StatusCancelled},
	StatusSnoozed:   {StatusConfirmed, StatusCancelled},
	StatusCancelled: {},
}

// ParseStatus returns the Status for s, or false if s is not a known status.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusNew, StatusConfirmed, StatusSnoozed, StatusCancelled:
		return Status(s), true
	}
	return "", false
}

func (s Status) Valid() bool {
	_, ok := legalTransitions[s]
	return ok
}

// Terminal reports whether s has no outgoing transitions.
func (s Status) Terminal() bool {
	return s.Valid() && len(legalTransitions[s]) == 0
}

// CanTransitionTo reports whether the edge s -> target is legal. A
// transition to the same status is not an edge; callers treat it as an
// idempotent no-op before consulting the table.
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range legalTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// TransitionTargets returns the statuses reachable from s, in a stable order.
func (s Status) TransitionTargets() []Status {
	return legalTransitions[s]
}
