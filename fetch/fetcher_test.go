package fetch

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// noopValidator allows all URLs (for tests that don't test SSRF).
func noopValidator(_ string) error { return nil }

func TestFetch_Success(t *testing.T) {
	body := "name,total\na,1\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="data.csv"`)
		w.Write([]byte(body))
	}))
	defer srv.Close()

	f := New(Config{URLValidator: noopValidator})
	file, err := f.Fetch(context.Background(), srv.URL+"/download")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(file.Body) != body {
		t.Errorf("body: got %q", string(file.Body))
	}
	if file.Filename != "data.csv" {
		t.Errorf("filename: got %q", file.Filename)
	}
	if file.ContentType != "text/csv" {
		t.Errorf("content type: got %q", file.ContentType)
	}
}

func TestFetch_FilenameFromURL(t *testing.T) {
	// WHAT: Without Content-Disposition the URL basename is the filename.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	f := New(Config{URLValidator: noopValidator})
	file, err := f.Fetch(context.Background(), srv.URL+"/files/report.pdf?v=2")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if file.Filename != "report.pdf" {
		t.Errorf("filename: got %q", file.Filename)
	}
}

func TestFetch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
	}))
	defer srv.Close()

	f := New(Config{URLValidator: noopValidator})
	if _, err := f.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestFetch_Timeout(t *testing.T) {
	// WHAT: The per-download limit fires without consuming the caller's context.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
		w.Write([]byte("late"))
	}))
	defer srv.Close()

	f := New(Config{Timeout: 100 * time.Millisecond, URLValidator: noopValidator})
	start := time.Now()
	_, err := f.Fetch(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > time.Second {
		t.Error("timeout took too long to fire")
	}
}

func TestFetch_MaxBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 1000; i++ {
			w.Write([]byte("x"))
		}
	}))
	defer srv.Close()

	f := New(Config{MaxBytes: 100, URLValidator: noopValidator})
	if _, err := f.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error when size limit exceeded")
	}
}

func TestFetch_SSRFBlocked(t *testing.T) {
	f := New(Config{})
	_, err := f.Fetch(context.Background(), "http://169.254.169.254/latest/")
	if err == nil {
		t.Fatal("expected error for metadata endpoint URL")
	}
	if !strings.Contains(err.Error(), "SSRF") {
		t.Errorf("expected SSRF error, got: %v", err)
	}
}

func TestFetch_RedirectToPrivate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://10.255.255.1/admin", http.StatusFound)
	}))
	defer srv.Close()

	first := true
	allowFirst := func(u string) error {
		if first {
			first = false
			return nil
		}
		return quizsafeErr
	}

	f := New(Config{URLValidator: allowFirst})
	_, err := f.Fetch(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error for redirect to private IP")
	}
	if !strings.Contains(err.Error(), "SSRF") {
		t.Errorf("expected SSRF in error, got: %v", err)
	}
}

var quizsafeErr = errTest("SSRF: private IP blocked")

type errTest string

func (e errTest) Error() string { return string(e) }

func TestFetch_DataURI(t *testing.T) {
	payload := "a,b\n1,2\n"
	uri := "data:text/csv;base64," + base64.StdEncoding.EncodeToString([]byte(payload))

	f := New(Config{URLValidator: noopValidator})
	file, err := f.Fetch(context.Background(), uri)
	if err != nil {
		t.Fatalf("data URI: %v", err)
	}
	if string(file.Body) != payload {
		t.Errorf("body: got %q", string(file.Body))
	}
	if file.ContentType != "text/csv" {
		t.Errorf("content type: got %q", file.ContentType)
	}
	if file.Filename != "embedded.csv" {
		t.Errorf("filename: got %q", file.Filename)
	}
}

func TestFetch_DataURIMalformed(t *testing.T) {
	f := New(Config{URLValidator: noopValidator})
	if _, err := f.Fetch(context.Background(), "data:text/plain"); err == nil {
		t.Error("expected error for data URI without payload")
	}
	if _, err := f.Fetch(context.Background(), "data:text/plain,unencoded"); err == nil {
		t.Error("expected error for non-base64 data URI")
	}
}
