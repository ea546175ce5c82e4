package model

// Default page window.
const (
	DefaultLimit  = 50
	DefaultOffset = 0
)

// StatusFilter names a dashboard status filter value.
type StatusFilter string

// Recognized status filter values.
const (
	FilterRunning   StatusFilter = "running"
	FilterCompleted StatusFilter = "completed"
	FilterError     StatusFilter = "error"
)

// StatePredicate restricts instances to a set of raw state codes. When
// WithErrorEvents is set, instances in ErrorEventStates that carry at least
// one error-type tracking event also match.
type StatePredicate struct {
	States           []InstanceState
	WithErrorEvents  bool
	ErrorEventStates []InstanceState
}

// Page is a LIMIT/OFFSET window applied after filtering.
type Page struct {
	Limit  int
	Offset int
}

// Filter is the compiled form of a history request.
type Filter struct {
	// Search is the LIKE pattern (already wrapped in % and escaped with \)
	// matched case-insensitively against the template name or the instance
	// id. Empty means no search predicate.
	Search string
	// State is nil when no status filter is active.
	State *StatePredicate
	Page  Page
}
