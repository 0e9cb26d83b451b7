// Package render turns a quiz URL into a harvested Page: the question
// text, the ordered attachment references, and the submit URL candidate.
//
// Quiz pages build their DOM with JavaScript, so rendering goes through a
// real browser tab; the serialized DOM is then parsed and harvested. The
// HTML path is exposed separately so it can run on any DOM string.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/hazyhaar/quizhook/browser"
)

// Page is the harvested result of rendering one quiz URL.
type Page struct {
	URL         string
	Question    string   // task text, anchored on the question marker when present
	Markdown    string   // sanitized page content as markdown
	Attachments []string // downloadable refs in document order, deduped
	SubmitURL   string   // answer endpoint candidate, may be empty
	HTMLBytes   int      // size of the serialized DOM, diagnostic only

	// Screenshot is a full-page PNG, captured only when the page offered
	// no attachments, for questions rendered as pixels.
	Screenshot []byte
}

// Config configures the renderer.
type Config struct {
	Manager *browser.Manager

	// ScreenshotFallback captures a full-page screenshot when a page has
	// no attachments, so an OCR-enabled pipeline can still read
	// image-rendered questions.
	ScreenshotFallback bool

	Logger *slog.Logger
}

// Renderer drives a browser tab and harvests the resulting DOM.
type Renderer struct {
	cfg       Config
	logger    *slog.Logger
	converter *converter.Converter
	sanitizer *bluemonday.Policy
}

// New creates a Renderer.
func New(cfg Config) *Renderer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Renderer{
		cfg:    cfg,
		logger: cfg.Logger,
		converter: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		sanitizer: bluemonday.UGCPolicy(),
	}
}

// Render opens a tab on the quiz URL, waits for the JS-built DOM, and
// harvests it. The tab is always closed before returning.
func (r *Renderer) Render(ctx context.Context, pageURL string) (*Page, error) {
	if r.cfg.Manager == nil {
		return nil, fmt.Errorf("render: no browser manager")
	}

	tab, err := r.cfg.Manager.OpenTab(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer tab.Close()

	dom, err := tab.HTML(ctx)
	if err != nil {
		return nil, err
	}

	page, err := r.Parse(dom, pageURL)
	if err != nil {
		return nil, err
	}

	if r.cfg.ScreenshotFallback && len(page.Attachments) == 0 {
		shot, err := tab.Screenshot(ctx)
		if err != nil {
			r.logger.Warn("render: screenshot failed", "url", pageURL, "error", err)
		} else {
			page.Screenshot = shot
		}
	}

	r.logger.Debug("render: harvested page",
		"url", pageURL,
		"dom_bytes", page.HTMLBytes,
		"attachments", len(page.Attachments),
		"submit_url", page.SubmitURL != "")
	return page, nil
}

// Parse harvests a DOM string without a browser round trip.
func (r *Renderer) Parse(dom, pageURL string) (*Page, error) {
	doc, err := html.Parse(strings.NewReader(dom))
	if err != nil {
		return nil, fmt.Errorf("render: parse DOM: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}

	p := &Page{URL: pageURL, HTMLBytes: len(dom)}
	harvest(doc, base, p)
	p.Markdown = r.markdown(dom, pageURL, p.Question)
	return p, nil
}

// markdown converts the sanitized DOM to markdown. On failure or empty
// output the plain question text stands in.
func (r *Renderer) markdown(dom, pageURL, fallback string) string {
	clean := r.sanitizer.Sanitize(dom)
	if clean == "" {
		return fallback
	}
	result, err := r.converter.ConvertString(clean, converter.WithDomain(pageURL))
	if err != nil || strings.TrimSpace(result) == "" {
		return fallback
	}
	return strings.TrimSpace(result)
}
