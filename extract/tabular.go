package extract

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// extractTabular parses a delimited-text or spreadsheet payload into a
// Table. Malformed rows are skipped individually; only a payload that
// yields no rows at all is recorded as a failure.
func (e *Extractor) extractTabular(c *Content, data []byte) {
	var table *Table
	var err error

	if bytes.HasPrefix(data, []byte("PK\x03\x04")) {
		table, err = parseXLSX(data)
	} else {
		table, err = parseDelimited(data)
	}
	if err != nil {
		c.Err = err.Error()
		return
	}

	c.Table = table
	c.Text = tableText(table)
	c.Method = MethodDirect
}

// parseDelimited reads comma- or tab-separated text. Rows with parse
// errors are dropped rather than aborting the file.
func parseDelimited(data []byte) (*Table, error) {
	sep := ','
	if firstLine, _, _ := bytes.Cut(data, []byte("\n")); !bytes.ContainsRune(firstLine, ',') && bytes.ContainsRune(firstLine, '\t') {
		sep = '\t'
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sep
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Skip the malformed row and keep going.
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no parseable rows")
	}

	t := &Table{Header: trimAll(records[0])}
	width := len(t.Header)
	for _, rec := range records[1:] {
		if len(rec) != width {
			continue
		}
		t.Rows = append(t.Rows, trimAll(rec))
	}
	return t, nil
}

// tableFromText recovers a Table from document text whose lines look
// tabular: a consistent comma/tab delimiter, or whitespace-aligned
// columns carrying numbers. Returns nil when the text reads as prose,
// so PDF tables still reach the column heuristics while ordinary
// paragraphs never masquerade as data.
func tableFromText(text string) *Table {
	var lines []string
	for _, ln := range strings.Split(text, "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			lines = append(lines, ln)
		}
	}
	if len(lines) < 2 {
		return nil
	}

	if t, err := parseDelimited([]byte(strings.Join(lines, "\n"))); err == nil && len(t.Header) > 1 && len(t.Rows) > 0 {
		return t
	}
	return columnarTable(lines)
}

// columnarTable splits whitespace-aligned lines into columns. Every line
// must agree on the column count and the data rows must carry at least
// one number.
func columnarTable(lines []string) *Table {
	header := strings.Fields(lines[0])
	if len(header) < 2 {
		return nil
	}

	t := &Table{Header: header}
	numeric := false
	for _, ln := range lines[1:] {
		fields := strings.Fields(ln)
		if len(fields) != len(header) {
			return nil
		}
		for _, v := range fields {
			if _, err := strconv.ParseFloat(v, 64); err == nil {
				numeric = true
			}
		}
		t.Rows = append(t.Rows, fields)
	}
	if !numeric {
		return nil
	}
	return t
}

// --- XLSX (OOXML spreadsheet) ---
//
// An .xlsx file is a ZIP archive; the first worksheet lives in
// xl/worksheets/sheet1.xml and string cells point into
// xl/sharedStrings.xml by index.

type xlsxSST struct {
	Items []struct {
		T string `xml:"t"`
	} `xml:"si"`
}

type xlsxSheet struct {
	Rows []struct {
		Cells []struct {
			Ref  string `xml:"r,attr"`
			Type string `xml:"t,attr"`
			V    string `xml:"v"`
		} `xml:"c"`
	} `xml:"sheetData>row"`
}

func parseXLSX(data []byte) (*Table, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}

	shared, err := readSharedStrings(zr)
	if err != nil {
		return nil, err
	}

	sheetXML, err := readZipFile(zr, "xl/worksheets/sheet1.xml")
	if err != nil {
		return nil, err
	}
	var sheet xlsxSheet
	if err := xml.Unmarshal(sheetXML, &sheet); err != nil {
		return nil, fmt.Errorf("parse sheet: %w", err)
	}

	var records [][]string
	for _, row := range sheet.Rows {
		var rec []string
		for _, cell := range row.Cells {
			val := cell.V
			if cell.Type == "s" {
				idx, err := strconv.Atoi(cell.V)
				if err != nil || idx < 0 || idx >= len(shared) {
					val = ""
				} else {
					val = shared[idx]
				}
			}
			// Place by column reference so sparse rows stay aligned.
			col := columnIndex(cell.Ref)
			for len(rec) <= col {
				rec = append(rec, "")
			}
			rec[col] = val
		}
		if len(rec) > 0 {
			records = append(records, rec)
		}
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty worksheet")
	}

	t := &Table{Header: trimAll(records[0])}
	for _, rec := range records[1:] {
		for len(rec) < len(t.Header) {
			rec = append(rec, "")
		}
		t.Rows = append(t.Rows, trimAll(rec[:len(t.Header)]))
	}
	return t, nil
}

func readSharedStrings(zr *zip.Reader) ([]string, error) {
	data, err := readZipFile(zr, "xl/sharedStrings.xml")
	if err != nil {
		// Sheets with only numeric cells have no shared strings part.
		return nil, nil
	}
	var sst xlsxSST
	if err := xml.Unmarshal(data, &sst); err != nil {
		return nil, fmt.Errorf("parse shared strings: %w", err)
	}
	out := make([]string, len(sst.Items))
	for i, item := range sst.Items {
		out[i] = item.T
	}
	return out, nil
}

func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("open %s: %w", name, err)
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("%s not found in archive", name)
}

// columnIndex converts a cell reference like "B7" to a zero-based column.
func columnIndex(ref string) int {
	col := 0
	for _, r := range ref {
		if r < 'A' || r > 'Z' {
			break
		}
		col = col*26 + int(r-'A') + 1
	}
	if col == 0 {
		return 0
	}
	return col - 1
}

// tableText renders a table as delimited text for the free-text heuristics.
func tableText(t *Table) string {
	var sb strings.Builder
	sb.WriteString(strings.Join(t.Header, ","))
	for _, row := range t.Rows {
		sb.WriteByte('\n')
		sb.WriteString(strings.Join(row, ","))
	}
	return sb.String()
}

func trimAll(rec []string) []string {
	out := make([]string, len(rec))
	for i, v := range rec {
		out[i] = strings.TrimSpace(v)
	}
	return out
}
