package extract

import (
	"bytes"
	"context"
	"io"
	"regexp"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// extractPDF extracts text from a PDF payload. Direct content-stream
// extraction runs first; when the result is below the image-only
// threshold (scanned document), the embedded page images are routed
// through OCR instead.
func (e *Extractor) extractPDF(ctx context.Context, c *Content, data []byte) {
	conf := model.NewDefaultConfiguration()
	pctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		c.Err = "pdfcpu read: " + err.Error()
		return
	}

	text, q := directPDFText(pctx)
	if !q.NeedsOCR(e.cfg.MinDocChars) {
		applyDocText(c, text, MethodDirect)
		return
	}

	// Image-only or garbage text: try OCR over the embedded raster streams.
	if !e.cfg.OCREnabled {
		e.logger.Debug("extract: PDF needs OCR but OCR is disabled", "url", c.SourceURL)
		applyDocText(c, text, MethodDirect)
		return
	}

	images := jpegStreams(pctx)
	if len(images) == 0 {
		e.logger.Debug("extract: PDF needs OCR but has no decodable images", "url", c.SourceURL)
		applyDocText(c, text, MethodDirect)
		return
	}

	var sb strings.Builder
	var ocrErr error
	for _, img := range images {
		if ctx.Err() != nil {
			break
		}
		out, err := e.cfg.OCRFunc(ctx, img)
		if err != nil {
			ocrErr = err
			continue
		}
		if out = strings.TrimSpace(out); out != "" {
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(out)
		}
	}

	if sb.Len() > 0 {
		applyDocText(c, normalizeWhitespace(sb.String()), MethodOCR)
		return
	}
	if ocrErr != nil {
		c.Err = ocrErr.Error()
	}
	applyDocText(c, text, MethodDirect)
}

// applyDocText records extracted document text and recovers an embedded
// table when the text is tabular, so a table inside a PDF reaches the
// column heuristics the same way a CSV does.
func applyDocText(c *Content, text string, m Method) {
	c.Text = text
	if text == "" {
		return
	}
	c.Method = m
	c.Table = tableFromText(text)
}

// directPDFText walks every page's content stream and collects text
// operators, along with quality metrics for the OCR-fallback decision.
func directPDFText(pctx *model.Context) (string, *pdfQuality) {
	var all strings.Builder
	totalChars := 0

	for pageNr := 1; pageNr <= pctx.PageCount; pageNr++ {
		pageText := pageContentText(pctx, pageNr)
		if pageText == "" {
			continue
		}
		totalChars += len([]rune(pageText))
		if all.Len() > 0 {
			all.WriteByte('\n')
		}
		all.WriteString(pageText)
	}

	text := all.String()
	q := &pdfQuality{
		PageCount:       pctx.PageCount,
		TotalChars:      totalChars,
		PrintableRatio:  printableRatio(text),
		HasImageStreams: hasImageStreams(pctx),
	}
	return text, q
}

// pageContentText extracts text from a single PDF page content stream.
func pageContentText(pctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(pctx, pageNr)
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return textFromStream(data)
}

// hasImageStreams checks if the PDF contains image XObjects.
func hasImageStreams(pctx *model.Context) bool {
	if pctx.Optimize != nil {
		for pageNr := 1; pageNr <= pctx.PageCount; pageNr++ {
			if len(pdfcpu.ImageObjNrs(pctx, pageNr)) > 0 {
				return true
			}
		}
	}
	for _, entry := range pctx.Table {
		if imageStreamDict(entry) != nil {
			return true
		}
	}
	return false
}

// jpegStreams collects the raw bytes of DCT-encoded (JPEG) image XObjects.
// Other raster encodings carry undecoded pixel data and are skipped.
func jpegStreams(pctx *model.Context) [][]byte {
	var images [][]byte
	for _, entry := range pctx.Table {
		sd := imageStreamDict(entry)
		if sd == nil || len(sd.Raw) == 0 {
			continue
		}
		for _, f := range sd.FilterPipeline {
			if f.Name == "DCTDecode" {
				images = append(images, sd.Raw)
				break
			}
		}
	}
	return images
}

func imageStreamDict(entry *model.XRefTableEntry) *types.StreamDict {
	if entry == nil || entry.Free || entry.Compressed {
		return nil
	}
	sd, ok := entry.Object.(types.StreamDict)
	if !ok {
		return nil
	}
	if subtype, found := sd.Find("Subtype"); found {
		if name, isName := subtype.(types.Name); isName && name == "Image" {
			return &sd
		}
	}
	return nil
}

// pdfStringRe matches PDF string literals in parentheses: (text here)
var pdfStringRe = regexp.MustCompile(`\(([^)]*)\)`)

// textFromStream parses PDF content stream operators for text.
func textFromStream(data []byte) string {
	var sb strings.Builder

	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		// Tj / TJ operators: (text) Tj, [(text) -100 (more)] TJ
		if bytes.HasSuffix(line, []byte("Tj")) || bytes.HasSuffix(line, []byte("TJ")) {
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				if text := decodePDFString(m[1]); text != "" {
					sb.WriteString(text)
				}
			}
		}

		// ' operator (move to next line and show text): (text) '
		if bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")) {
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				if text := decodePDFString(m[1]); text != "" {
					sb.WriteByte('\n')
					sb.WriteString(text)
				}
			}
		}

		// Td/TD operator (text positioning).
		if bytes.HasSuffix(line, []byte("Td")) || bytes.HasSuffix(line, []byte("TD")) {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
		}

		// T* operator (move to start of next line).
		if bytes.Equal(line, []byte("T*")) {
			sb.WriteByte('\n')
		}
	}

	return normalizeWhitespace(sb.String())
}

// decodePDFString handles basic PDF escape sequences.
func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\\' && i+1 < len(raw) {
			i++
			switch raw[i] {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case '\\':
				sb.WriteByte('\\')
			case '(':
				sb.WriteByte('(')
			case ')':
				sb.WriteByte(')')
			default:
				// Octal escape (e.g. \040 for space).
				if raw[i] >= '0' && raw[i] <= '7' {
					val := int(raw[i] - '0')
					if i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7' {
						i++
						val = val*8 + int(raw[i]-'0')
						if i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7' {
							i++
							val = val*8 + int(raw[i]-'0')
						}
					}
					sb.WriteByte(byte(val))
				} else {
					sb.WriteByte(raw[i])
				}
			}
		} else {
			sb.WriteByte(raw[i])
		}
	}
	return sb.String()
}
