package quiz

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	maxSubmitAttempts = 3
	submitBackoff     = 500 * time.Millisecond
	maxResultBody     = 2048
)

// submitPayload is the provider's expected answer envelope.
type submitPayload struct {
	Email  string `json:"email"`
	Secret string `json:"secret"`
	URL    string `json:"url"`
	Answer any    `json:"answer"`
}

// submit posts the answer. 2xx is accepted; 4xx means the payload itself
// is presumed wrong and is not retried; 5xx and network failures are
// retried with backoff within whatever deadline remains.
func (r *Runner) submit(ctx context.Context, s *Session, submitURL string, answer Answer) *Result {
	res := &Result{Answer: answer}

	if submitURL == "" {
		res.State = StateFailed
		res.Err = ErrNoSubmitURL
		return res
	}

	body, err := json.Marshal(submitPayload{
		Email:  s.Email,
		Secret: s.Secret,
		URL:    s.QuizURL,
		Answer: answer.Value,
	})
	if err != nil {
		res.State = StateFailed
		res.Err = fmt.Errorf("quiz: marshal payload: %w", err)
		return res
	}

	var lastErr error
	for attempt := 1; attempt <= maxSubmitAttempts; attempt++ {
		if ctx.Err() != nil {
			break
		}
		res.Attempts = attempt

		status, respBody, err := r.post(ctx, submitURL, body)
		if err != nil {
			lastErr = err
			r.logger.Warn("quiz: submit attempt failed",
				"session", s.ID, "attempt", attempt, "error", err)
		} else {
			res.HTTPStatus = status
			res.Body = respBody
			switch {
			case status >= 200 && status < 300:
				res.State = StateSubmitted
				return res
			case status >= 400 && status < 500:
				res.State = StateFailed
				res.Err = fmt.Errorf("%w: http %d", ErrRejected, status)
				return res
			default:
				lastErr = fmt.Errorf("http %d", status)
				r.logger.Warn("quiz: submit got transient status",
					"session", s.ID, "attempt", attempt, "status", status)
			}
		}

		if attempt < maxSubmitAttempts {
			select {
			case <-ctx.Done():
			case <-time.After(submitBackoff * time.Duration(attempt)):
			}
		}
	}

	if res.Attempts == 0 {
		res.State = StateExpired
		res.Err = ErrDeadline
		return res
	}
	res.State = StateFailed
	if lastErr != nil {
		res.Err = fmt.Errorf("quiz: submit: %w", lastErr)
	}
	return res
}

func (r *Runner) post(ctx context.Context, url string, body []byte) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResultBody))
	return resp.StatusCode, string(respBody), nil
}
