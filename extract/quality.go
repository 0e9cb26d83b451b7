package extract

import "unicode"

// pdfQuality captures metrics of a direct PDF text extraction, used to
// decide whether the document is a scan that needs OCR instead.
type pdfQuality struct {
	PageCount       int
	TotalChars      int
	PrintableRatio  float64
	HasImageStreams bool
}

// charsPerPage averages extracted character count over pages.
func (q *pdfQuality) charsPerPage() float64 {
	if q.PageCount == 0 {
		return 0
	}
	return float64(q.TotalChars) / float64(q.PageCount)
}

// NeedsOCR reports whether direct extraction looks unusable. Scanned
// documents show almost no text but carry image streams; corrupted
// encodings show a low printable ratio.
func (q *pdfQuality) NeedsOCR(minChars int) bool {
	if q.TotalChars < minChars && q.HasImageStreams {
		return true
	}
	if q.charsPerPage() < 50 && q.HasImageStreams {
		return true
	}
	if q.TotalChars > 0 && q.PrintableRatio < 0.85 {
		return true
	}
	return false
}

// printableRatio is the fraction of runes that are printable text.
func printableRatio(s string) float64 {
	if s == "" {
		return 1.0
	}
	total, printable := 0, 0
	for _, r := range s {
		total++
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			printable++
		}
	}
	return float64(printable) / float64(total)
}
