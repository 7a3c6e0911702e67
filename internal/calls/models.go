package calls

// State is the lifecycle state of a single incoming-call attempt.
//
// Sessions are single-use: Ended is terminal. A new Session must be
// constructed for the next call; the finished one is discarded.

type State string

const (
	StateIdle    State = "idle"
	StateRinging State = "ringing"
	StateActive  State = "active"
	StateEnded   State = "ended"
)

// DefaultCallerLabel is used when the visitor did not identify themselves.
const DefaultCallerLabel = "Visitor"

// Info is a read-only snapshot of a session, safe to hand to UI layers.
type Info struct {
	State           State  `json:"state"`
	CallerLabel     string `json:"caller_label"`
	PropertyID      string `json:"property_id,omitempty"`
	PropertyName    string `json:"property_name"`
	DurationSeconds int    `json:"duration_seconds"`
}
