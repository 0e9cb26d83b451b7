package quiz

import "time"

// Session is one quiz challenge instance, created at webhook receipt and
// owned by a single Solve run.
type Session struct {
	ID        string
	QuizURL   string
	SubmitURL string // from the webhook; page discovery fills it when empty
	Email     string
	Secret    string
	StartedAt time.Time
}

// Answer is the derived candidate value plus its provenance.
type Answer struct {
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"` // which heuristic produced it
	Inputs     string  `json:"inputs,omitempty"`
}

// State classifies the session outcome.
type State string

const (
	StateSubmitted State = "submitted" // provider accepted (2xx)
	StateFailed    State = "failed"    // rejected, unreachable, or no endpoint
	StateExpired   State = "expired"   // deadline hit before any attempt landed
)

// Result is the terminal record of one session.
type Result struct {
	State      State
	Answer     Answer
	HTTPStatus int
	Body       string // provider response, truncated
	Attempts   int
	Elapsed    time.Duration
	Err        error
}
