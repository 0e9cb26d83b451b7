// Package quiz orchestrates one webhook-triggered quiz session end to end:
// render the page, download and extract attachments, derive an answer, and
// submit it, all inside a hard wall-clock budget. The governing policy is
// "always submit something": every stage failure degrades the answer
// instead of aborting the session.
package quiz

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/quizhook/extract"
	"github.com/hazyhaar/quizhook/fetch"
	"github.com/hazyhaar/quizhook/journal"
	"github.com/hazyhaar/quizhook/render"
	"github.com/hazyhaar/quizhook/sniff"
)

// RenderFunc loads a quiz URL and harvests the page. Injectable for tests.
type RenderFunc func(ctx context.Context, url string) (*render.Page, error)

// Config configures the Runner.
type Config struct {
	// Timeout is the whole-session wall-clock budget. Default: 170s.
	Timeout time.Duration

	// SubmitReserve is carved off the end of the budget so submission
	// always has time to run. Default: 10s.
	SubmitReserve time.Duration

	// FetchConcurrency bounds the attachment fan-out. Default: 4.
	FetchConcurrency int

	// MaxAttachments caps how many page refs are downloaded. Default: 8.
	MaxAttachments int

	// Render loads and harvests the quiz page.
	Render RenderFunc

	Fetcher   *fetch.Fetcher
	Extractor *extract.Extractor

	// Journal is optional; sessions are recorded when set.
	Journal *journal.Store

	// HTTPClient is used for submissions. Default: 15s-timeout client.
	HTTPClient *http.Client

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 170 * time.Second
	}
	if c.SubmitReserve <= 0 {
		c.SubmitReserve = 10 * time.Second
	}
	// A short session budget must still leave room to solve; the reserve
	// never eats more than half of it.
	if c.SubmitReserve > c.Timeout/2 {
		c.SubmitReserve = c.Timeout / 2
	}
	if c.FetchConcurrency <= 0 {
		c.FetchConcurrency = 4
	}
	if c.MaxAttachments <= 0 {
		c.MaxAttachments = 8
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Runner executes quiz sessions.
type Runner struct {
	cfg    Config
	logger *slog.Logger
	client *http.Client
}

// NewRunner creates a Runner.
func NewRunner(cfg Config) *Runner {
	cfg.defaults()
	return &Runner{cfg: cfg, logger: cfg.Logger, client: cfg.HTTPClient}
}

// Solve runs one session to its terminal Result. It always returns a
// Result; the deadline is a hard cancellation boundary for every stage
// except the final submission attempt, which gets the reserved slice.
func (r *Runner) Solve(ctx context.Context, s *Session) *Result {
	start := time.Now()
	log := r.logger.With("session", s.ID, "url", s.QuizURL)

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	// Solving stops SubmitReserve before the deadline so submission
	// always has room.
	solveCtx, solveCancel := context.WithTimeout(ctx, r.cfg.Timeout-r.cfg.SubmitReserve)
	defer solveCancel()

	question, contents, submitURL, renderErr := r.gather(solveCtx, s, log)

	answer := Derive(question, contents)
	log.Info("quiz: answer derived",
		"source", answer.Source,
		"confidence", answer.Confidence,
		"value", fmt.Sprint(answer.Value))

	if s.SubmitURL != "" {
		submitURL = s.SubmitURL
	}

	res := r.submit(ctx, s, submitURL, answer)
	res.Elapsed = time.Since(start)

	// A failed render only surfaces when the submission also failed;
	// a placeholder answer that lands is still a submitted session.
	if renderErr != nil && res.Err != nil {
		res.Err = fmt.Errorf("%w: %v; %w", ErrRender, renderErr, res.Err)
	}

	log.Info("quiz: session finished",
		"state", res.State,
		"status", res.HTTPStatus,
		"attempts", res.Attempts,
		"elapsed", res.Elapsed)

	r.record(s, question, res)
	return res
}

// gather renders the page and runs the bounded download+extract fan-out.
// Every failure here degrades to partial data rather than aborting; the
// render error is returned so Solve can report it on a failed session.
func (r *Runner) gather(ctx context.Context, s *Session, log *slog.Logger) (string, []*extract.Content, string, error) {
	if r.cfg.Render == nil {
		log.Error("quiz: no renderer configured")
		return "", nil, "", fmt.Errorf("no renderer configured")
	}

	page, err := r.cfg.Render(ctx, s.QuizURL)
	if err != nil {
		log.Error("quiz: render failed", "error", err)
		return "", nil, "", err
	}

	// A page with no attachments may still carry its question as pixels;
	// the renderer's screenshot goes through the image extraction path.
	if len(page.Attachments) == 0 && len(page.Screenshot) > 0 {
		shot := r.cfg.Extractor.Extract(ctx, &fetch.File{
			Body:        page.Screenshot,
			SourceURL:   page.URL,
			Filename:    "page.png",
			ContentType: "image/png",
		})
		return page.Question, []*extract.Content{shot}, page.SubmitURL, nil
	}

	refs := page.Attachments
	if len(refs) > r.cfg.MaxAttachments {
		log.Warn("quiz: attachment list truncated",
			"total", len(refs), "cap", r.cfg.MaxAttachments)
		refs = refs[:r.cfg.MaxAttachments]
	}

	// Fan out download+extract; results keep document order regardless of
	// completion order so positional heuristics stay deterministic.
	contents := make([]*extract.Content, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.FetchConcurrency)

	for i, ref := range refs {
		g.Go(func() error {
			file, err := r.cfg.Fetcher.Fetch(gctx, ref)
			if err != nil {
				log.Warn("quiz: attachment skipped", "ref", ref, "error", err)
				contents[i] = &extract.Content{
					SourceURL: ref,
					Kind:      sniff.KindUnknown,
					Method:    extract.MethodNone,
					Err:       err.Error(),
				}
				return nil
			}
			contents[i] = r.cfg.Extractor.Extract(gctx, file)
			return nil
		})
	}
	g.Wait()

	return page.Question, contents, page.SubmitURL, nil
}

func (r *Runner) record(s *Session, question string, res *Result) {
	if r.cfg.Journal == nil {
		return
	}
	errText := ""
	if res.Err != nil {
		errText = res.Err.Error()
	}
	entry := &journal.Entry{
		SessionID:  s.ID,
		QuizURL:    s.QuizURL,
		Question:   question,
		Answer:     fmt.Sprint(res.Answer.Value),
		Confidence: res.Answer.Confidence,
		Source:     res.Answer.Source,
		State:      string(res.State),
		HTTPStatus: res.HTTPStatus,
		Attempts:   res.Attempts,
		Elapsed:    res.Elapsed,
		Error:      errText,
	}
	// The session context is likely expired; journalling gets its own.
	jctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.cfg.Journal.Record(jctx, entry); err != nil {
		r.logger.Warn("quiz: journal write failed", "session", s.ID, "error", err)
	}
}
