// Package fetch downloads quiz attachments over HTTP with per-download
// time limits, size caps, and SSRF validation on the URL and every
// redirect hop. data: URIs embedded in the rendered page are decoded
// locally without a network round trip.
package fetch

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/hazyhaar/quizhook/quizsafe"
)

// File is one downloaded attachment. The bytes are released by the caller
// after extraction; the fetcher never retains them.
type File struct {
	Body        []byte
	SourceURL   string
	Filename    string // from Content-Disposition, else URL basename
	ContentType string // raw response header, may be empty or wrong
}

// Config configures the fetcher.
type Config struct {
	Timeout  time.Duration // per-download limit. Default: 30s.
	MaxBytes int64         // max payload size. Default: quizsafe.MaxResponseBody.
	// UserAgent sent with requests.
	UserAgent string
	// URLValidator validates URLs before fetch (SSRF prevention).
	// Default: quizsafe.ValidateURL.
	URLValidator func(string) error
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = quizsafe.MaxResponseBody
	}
	if c.UserAgent == "" {
		c.UserAgent = "quizhook/1.0"
	}
	if c.URLValidator == nil {
		c.URLValidator = quizsafe.ValidateURL
	}
}

// Fetcher performs attachment downloads.
type Fetcher struct {
	client *http.Client
	config Config
}

// New creates a Fetcher with SSRF protection on redirects.
func New(cfg Config) *Fetcher {
	cfg.defaults()
	validate := cfg.URLValidator
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				if err := validate(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked (SSRF): %w", err)
				}
				return nil
			},
		},
		config: cfg,
	}
}

// Fetch retrieves one attachment URL. data: URIs are decoded in place.
// The per-download timeout applies on top of ctx, so one slow attachment
// cannot consume the whole session budget.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*File, error) {
	if strings.HasPrefix(rawURL, "data:") {
		return decodeDataURI(rawURL)
	}

	if err := f.config.URLValidator(rawURL); err != nil {
		return nil, fmt.Errorf("URL blocked (SSRF): %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	}

	body, err := quizsafe.LimitedReadAll(resp.Body, f.config.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &File{
		Body:        body,
		SourceURL:   rawURL,
		Filename:    filename(resp.Header.Get("Content-Disposition"), rawURL),
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// filename extracts a declared filename from Content-Disposition, falling
// back to the URL path's basename.
func filename(disposition, rawURL string) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if name := params["filename"]; name != "" {
				return name
			}
		}
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return ""
	}
	return base
}

// decodeDataURI decodes a base64 data: URI into a File. The MIME type in
// the header becomes both the content type and the synthetic filename
// extension so downstream classification has something to work with.
func decodeDataURI(uri string) (*File, error) {
	header, b64, ok := strings.Cut(uri, ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URI")
	}
	meta := strings.TrimPrefix(header, "data:")
	mt, _, _ := strings.Cut(meta, ";")
	if !strings.Contains(header, ";base64") {
		return nil, fmt.Errorf("unsupported data URI encoding")
	}
	body, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode data URI: %w", err)
	}

	name := "embedded.bin"
	if i := strings.LastIndexByte(mt, '/'); i >= 0 && i+1 < len(mt) {
		name = "embedded." + mt[i+1:]
	}
	return &File{
		Body:        body,
		SourceURL:   "data:",
		Filename:    name,
		ContentType: mt,
	}, nil
}
