package extract

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/hazyhaar/quizhook/fetch"
	"github.com/hazyhaar/quizhook/sniff"
)

func TestExtract_ImageOCR(t *testing.T) {
	e := New(Config{
		OCREnabled: true,
		OCRFunc: func(ctx context.Context, image []byte) (string, error) {
			return "  The answer   is 42  ", nil
		},
	})

	f := &fetch.File{
		Body:     pngHeader(),
		Filename: "chart.png",
	}
	c := e.Extract(context.Background(), f)

	if c.Kind != sniff.KindImage {
		t.Fatalf("kind: got %v (mime %s)", c.Kind, c.MIME)
	}
	if c.Method != MethodOCR {
		t.Errorf("method: got %v", c.Method)
	}
	if c.Text != "The answer is 42" {
		t.Errorf("text: got %q", c.Text)
	}
}

func TestExtract_ImageOCRDisabled(t *testing.T) {
	// WHAT: With OCR off an image yields empty content, not an error.
	// WHY: Empty is a legitimate extraction outcome; the answer engine
	// falls through to its placeholder.
	e := New(Config{OCREnabled: false})

	c := e.Extract(context.Background(), &fetch.File{Body: pngHeader(), Filename: "chart.png"})
	if !c.Empty() {
		t.Error("expected empty content")
	}
	if c.Err != "" {
		t.Errorf("unexpected error note: %q", c.Err)
	}
	if c.Method != MethodNone {
		t.Errorf("method: got %v", c.Method)
	}
}

func TestExtract_ImageOCRFailure(t *testing.T) {
	e := New(Config{
		OCREnabled: true,
		OCRFunc: func(ctx context.Context, image []byte) (string, error) {
			return "", fmt.Errorf("tesseract: exit status 1")
		},
	})

	c := e.Extract(context.Background(), &fetch.File{Body: pngHeader(), Filename: "x.png"})
	if c.Err == "" {
		t.Error("expected error note")
	}
	if !c.Empty() {
		t.Error("expected empty content on OCR failure")
	}
}

func TestExtract_UnknownKind(t *testing.T) {
	e := New(Config{})
	c := e.Extract(context.Background(), &fetch.File{
		Body:     []byte{0x00, 0x01, 0x02, 0xff, 0xfe},
		Filename: "blob.bin",
	})

	if c.Kind != sniff.KindUnknown {
		t.Fatalf("kind: got %v", c.Kind)
	}
	if !c.Empty() || c.Err != "" {
		t.Error("unknown kind must yield clean empty content")
	}
}

func TestExtract_HTMLDocument(t *testing.T) {
	e := New(Config{})
	c := e.Extract(context.Background(), &fetch.File{
		Body:     []byte("<html><head><script>var x=1;</script></head><body><p>Question text</p></body></html>"),
		Filename: "page.html",
	})

	if c.Kind != sniff.KindDocument {
		t.Fatalf("kind: got %v (mime %s)", c.Kind, c.MIME)
	}
	if !strings.Contains(c.Text, "Question text") {
		t.Errorf("text: got %q", c.Text)
	}
	if strings.Contains(c.Text, "var x") {
		t.Error("script content leaked into text")
	}
}

func TestExtract_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := New(Config{})
	c := e.Extract(ctx, &fetch.File{Body: []byte("a,b\n1,2\n"), Filename: "d.csv"})
	if c.Err == "" {
		t.Error("expected context error note")
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	in := "  line  one \n\n\n   line\ttwo  \n"
	want := "line one\nline two"
	if got := normalizeWhitespace(in); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// pngHeader returns enough of a PNG for content sniffing to fire.
func pngHeader() []byte {
	return []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
}
