// Package extract turns attachment payloads into normalized content.
//
// Extraction strategies per kind:
//   - tabular  — CSV/TSV or XLSX → header + rows, malformed rows skipped
//   - document — PDF text via pdfcpu; OCR fallback for image-only scans
//   - image    — OCR when enabled, empty content otherwise
//   - unknown  — empty content
//
// Extract never fails: every payload yields exactly one Content, possibly
// empty, with any failure captured in Content.Err. Empty content is a
// valid outcome distinct from error.
package extract

import (
	"bytes"
	"context"
	"log/slog"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/quizhook/fetch"
	"github.com/hazyhaar/quizhook/sniff"
)

// Method identifies how content was obtained from a payload.
type Method string

const (
	MethodDirect Method = "direct" // parsed straight from the bytes
	MethodOCR    Method = "ocr"    // optical character recognition
	MethodNone   Method = "none"   // nothing extracted
)

// Table is the structured form of a tabular attachment.
type Table struct {
	Header []string
	Rows   [][]string
}

// Column returns the index of the named column (case-insensitive), or -1.
func (t *Table) Column(name string) int {
	for i, h := range t.Header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

// Content is the normalized result of extracting one attachment.
type Content struct {
	Text      string
	Table     *Table // nil unless the payload was tabular
	MIME      string
	Kind      sniff.Kind
	Method    Method
	SourceURL string
	Filename  string
	Err       string // non-fatal failure note, empty on success
}

// Empty reports whether extraction produced no usable content.
func (c *Content) Empty() bool {
	return strings.TrimSpace(c.Text) == "" && (c.Table == nil || len(c.Table.Rows) == 0)
}

// Config configures the extractor.
type Config struct {
	// OCREnabled gates all optical character recognition.
	OCREnabled bool

	// OCRBinary is the tesseract executable name. Default: "tesseract".
	OCRBinary string

	// OCRFunc performs OCR on one image payload. Default: run OCRBinary.
	// Injectable for tests.
	OCRFunc func(ctx context.Context, image []byte) (string, error)

	// MinDocChars is the direct-extraction text length below which a PDF
	// is treated as image-only and routed to OCR. Default: 32.
	MinDocChars int

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.OCRBinary == "" {
		c.OCRBinary = "tesseract"
	}
	if c.MinDocChars <= 0 {
		c.MinDocChars = 32
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Extractor dispatches payloads to kind-specific extraction.
type Extractor struct {
	cfg    Config
	logger *slog.Logger
}

// New creates an Extractor.
func New(cfg Config) *Extractor {
	cfg.defaults()
	e := &Extractor{cfg: cfg, logger: cfg.Logger}
	if e.cfg.OCRFunc == nil {
		e.cfg.OCRFunc = e.runTesseract
	}
	return e
}

// Extract classifies and extracts one downloaded attachment.
func (e *Extractor) Extract(ctx context.Context, f *fetch.File) *Content {
	mt, kind := sniff.Detect(f.Body, f.Filename)
	c := &Content{
		MIME:      mt,
		Kind:      kind,
		Method:    MethodNone,
		SourceURL: f.SourceURL,
		Filename:  f.Filename,
	}

	if ctx.Err() != nil {
		c.Err = ctx.Err().Error()
		return c
	}

	e.logger.Debug("extract: dispatching", "url", f.SourceURL, "mime", mt, "kind", kind)

	switch kind {
	case sniff.KindTabular:
		e.extractTabular(c, f.Body)
	case sniff.KindDocument:
		e.extractDocument(ctx, c, f.Body)
	case sniff.KindImage:
		e.extractImage(ctx, c, f.Body)
	default:
		// Unknown: empty content, by policy not an error.
	}
	return c
}

// extractDocument handles PDF, plain text, and HTML payloads.
func (e *Extractor) extractDocument(ctx context.Context, c *Content, data []byte) {
	switch c.MIME {
	case "application/pdf":
		e.extractPDF(ctx, c, data)
	case "text/html":
		text, err := htmlText(data)
		if err != nil {
			c.Err = err.Error()
			return
		}
		c.Text = text
		c.Method = MethodDirect
	default:
		c.Text = normalizeWhitespace(string(data))
		c.Method = MethodDirect
	}
}

// extractImage routes a raster image through OCR, or yields empty content
// when OCR is disabled.
func (e *Extractor) extractImage(ctx context.Context, c *Content, data []byte) {
	if !e.cfg.OCREnabled {
		e.logger.Debug("extract: OCR disabled, skipping image", "url", c.SourceURL)
		return
	}
	text, err := e.cfg.OCRFunc(ctx, data)
	if err != nil {
		c.Err = err.Error()
		return
	}
	c.Text = normalizeWhitespace(text)
	c.Method = MethodOCR
}

// htmlText collects visible text from an HTML payload.
func htmlText(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(doc)
	return sb.String(), nil
}

// normalizeWhitespace collapses runs of whitespace, preserving newlines as
// line boundaries.
func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
