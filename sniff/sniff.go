// Package sniff classifies attachment payloads into a normalized MIME type
// and an extraction kind, independent of the declared filename.
//
// Classification never errors: content sniffing (magic bytes) takes
// precedence, the filename extension is the fallback, and when both are
// inconclusive the result degrades to application/octet-stream.
package sniff

import (
	"bytes"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Kind is the extraction strategy a payload dispatches to.
type Kind string

const (
	KindTabular  Kind = "tabular"  // delimited text or spreadsheet
	KindDocument Kind = "document" // PDF or similar
	KindImage    Kind = "image"    // raster image, OCR territory
	KindUnknown  Kind = "unknown"  // no extraction strategy
)

const octetStream = "application/octet-stream"

// Detect returns the normalized MIME type and extraction Kind for a payload.
// Same bytes and filename always yield the same result.
func Detect(data []byte, filename string) (string, Kind) {
	if mt := sniffMagic(data); mt != "" {
		return mt, kindOf(mt)
	}
	if mt := byExtension(filename); mt != "" {
		return mt, kindOf(mt)
	}
	// Last resort: printable text with separators is worth a tabular attempt.
	if looksDelimited(data) {
		return "text/csv", KindTabular
	}
	return octetStream, KindUnknown
}

// sniffMagic inspects the payload's leading bytes. Returns "" when
// inconclusive.
func sniffMagic(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	switch {
	case bytes.HasPrefix(data, []byte("%PDF-")):
		return "application/pdf"
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		// ZIP container: an OOXML spreadsheet if the package parts say so.
		if bytes.Contains(data, []byte("xl/worksheets")) || bytes.Contains(data, []byte("xl/workbook")) {
			return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		}
		return "application/zip"
	}

	ct := http.DetectContentType(data)
	// Strip parameters ("text/plain; charset=utf-8" → "text/plain").
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch {
	case strings.HasPrefix(ct, "image/"):
		return ct
	case ct == "application/pdf":
		return ct
	case ct == "text/plain":
		if looksDelimited(data) {
			return "text/csv"
		}
		return ct
	case ct == octetStream:
		return "" // inconclusive
	}
	return ct
}

// byExtension maps the declared filename's extension to a MIME type.
// Returns "" when there is no extension or no known mapping.
func byExtension(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case "":
		return ""
	case ".csv":
		return "text/csv"
	case ".tsv":
		return "text/tab-separated-values"
	case ".xlsx", ".xls":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	mt := mime.TypeByExtension(ext)
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}

// kindOf maps a normalized MIME type onto the closed Kind set.
func kindOf(mt string) Kind {
	switch {
	case mt == "text/csv", mt == "text/tab-separated-values",
		strings.Contains(mt, "spreadsheet"), strings.Contains(mt, "ms-excel"):
		return KindTabular
	case mt == "application/pdf":
		return KindDocument
	case strings.HasPrefix(mt, "image/"):
		return KindImage
	case mt == "text/plain", mt == "text/html":
		return KindDocument
	}
	return KindUnknown
}

// looksDelimited reports whether data is valid text whose first lines carry
// a consistent comma or tab separator count.
func looksDelimited(data []byte) bool {
	sample := data
	if len(sample) > 4096 {
		sample = sample[:4096]
	}
	if !utf8.Valid(sample) {
		return false
	}
	lines := strings.Split(string(sample), "\n")
	if len(lines) < 2 {
		return false
	}
	for _, sep := range []string{",", "\t"} {
		first := strings.Count(lines[0], sep)
		if first == 0 {
			continue
		}
		second := strings.Count(lines[1], sep)
		if second == first {
			return true
		}
	}
	return false
}
