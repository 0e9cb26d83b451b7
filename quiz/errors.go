package quiz

import "errors"

var (
	// ErrRender means the quiz page never loaded at all.
	ErrRender = errors.New("quiz: page render failed")

	// ErrNoSubmitURL means neither the webhook nor the page yielded an
	// answer endpoint.
	ErrNoSubmitURL = errors.New("quiz: no submit URL")

	// ErrRejected means the provider declined the answer (HTTP 4xx).
	ErrRejected = errors.New("quiz: submission rejected")

	// ErrDeadline means the session budget ran out before any submission
	// attempt completed.
	ErrDeadline = errors.New("quiz: deadline expired")
)
