package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hazyhaar/quizhook/quiz"
	"github.com/hazyhaar/quizhook/quizsafe"
)

// webhookRequest is the provider's notification payload.
type webhookRequest struct {
	Secret    string `json:"secret"`
	URL       string `json:"url"`
	SubmitURL string `json:"submit_url,omitempty"`
	Email     string `json:"email,omitempty"`
}

// webhookHandler authenticates webhook calls and hands sessions to the
// runner. The caller gets an immediate acknowledgement; the pipeline runs
// asynchronously under its own deadline.
type webhookHandler struct {
	secret string
	email  string

	// solve runs one session. Injectable for tests.
	solve func(ctx context.Context, s *quiz.Session)

	// validateURL rejects unsafe quiz URLs. Default: quizsafe.ValidateURL.
	validateURL func(string) error
}

func (h *webhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, fmt.Errorf("invalid JSON body: %w", err))
		return
	}
	if req.URL == "" || req.Secret == "" {
		writeError(w, 400, fmt.Errorf("url and secret are required"))
		return
	}

	if h.secret == "" {
		writeError(w, 500, fmt.Errorf("no webhook secret configured"))
		return
	}
	if !quizsafe.SecretsEqual(req.Secret, h.secret) {
		writeError(w, 403, fmt.Errorf("invalid secret"))
		return
	}

	validate := h.validateURL
	if validate == nil {
		validate = quizsafe.ValidateURL
	}
	if err := validate(req.URL); err != nil {
		writeError(w, 400, fmt.Errorf("quiz URL rejected: %w", err))
		return
	}

	email := req.Email
	if email == "" {
		email = h.email
	}

	s := &quiz.Session{
		ID:        newSessionID(),
		QuizURL:   req.URL,
		SubmitURL: req.SubmitURL,
		Email:     email,
		Secret:    req.Secret,
		StartedAt: time.Now(),
	}

	// The webhook caller only needs the ack; the session owns its own
	// budget from here.
	go h.solve(context.Background(), s)

	writeJSON(w, 200, map[string]string{"status": "accepted", "session": s.ID})
}

func newSessionID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("s-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
