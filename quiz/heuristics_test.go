package quiz

import (
	"testing"

	"github.com/hazyhaar/quizhook/extract"
)

func tableContent(header []string, rows [][]string) *extract.Content {
	return &extract.Content{
		Table:    &extract.Table{Header: header, Rows: rows},
		Filename: "data.csv",
	}
}

func TestDerive_TabularSum(t *testing.T) {
	// WHAT: A question naming a column gets that column's sum.
	contents := []*extract.Content{
		tableContent([]string{"name", "total"}, [][]string{
			{"a", "10"}, {"b", "20"}, {"c", "12.5"},
		}),
	}

	a := Derive("What is the total?", contents)
	if a.Source != SourceTabular {
		t.Fatalf("source: got %s", a.Source)
	}
	if a.Value != 42.5 {
		t.Errorf("value: got %v", a.Value)
	}
	if a.Confidence != 0.9 {
		t.Errorf("confidence: got %v", a.Confidence)
	}
}

func TestDerive_TabularAggregates(t *testing.T) {
	contents := []*extract.Content{
		tableContent([]string{"id", "value"}, [][]string{
			{"1", "10"}, {"2", "30"}, {"3", "20"},
		}),
	}

	cases := []struct {
		question string
		want     any
	}{
		{"Sum the value column", int64(60)},
		{"What is the average value?", int64(20)},
		{"How many rows have a value?", int64(3)},
		{"What is the maximum value?", int64(30)},
		{"What is the lowest value?", int64(10)},
	}
	for _, tc := range cases {
		t.Run(tc.question, func(t *testing.T) {
			a := Derive(tc.question, contents)
			if a.Source != SourceTabular {
				t.Fatalf("source: got %s", a.Source)
			}
			if a.Value != tc.want {
				t.Errorf("value: got %v, want %v", a.Value, tc.want)
			}
		})
	}
}

func TestDerive_TabularValueFallback(t *testing.T) {
	// WHAT: When the question names no header, the "value" column is
	// aggregated by default.
	contents := []*extract.Content{
		tableContent([]string{"label", "value"}, [][]string{
			{"x", "1"}, {"y", "2"},
		}),
	}

	a := Derive("Q42. Compute the answer from the attached file.", contents)
	if a.Source != SourceTabular {
		t.Fatalf("source: got %s", a.Source)
	}
	if a.Value != int64(3) {
		t.Errorf("value: got %v", a.Value)
	}
}

func TestDerive_SkipsNonNumericCells(t *testing.T) {
	contents := []*extract.Content{
		tableContent([]string{"value"}, [][]string{
			{"5"}, {"n/a"}, {"7"},
		}),
	}

	a := Derive("total value?", contents)
	if a.Value != int64(12) {
		t.Errorf("value: got %v", a.Value)
	}
}

func TestDerive_Arithmetic(t *testing.T) {
	a := Derive("Q17. What is 12 + 30 * 2?", nil)
	if a.Source != SourceArithmetic {
		t.Fatalf("source: got %s", a.Source)
	}
	if a.Value != int64(72) {
		t.Errorf("value: got %v", a.Value)
	}
	if a.Confidence != 0.8 {
		t.Errorf("confidence: got %v", a.Confidence)
	}
}

func TestDerive_DateIsNotArithmetic(t *testing.T) {
	// WHAT: A digit-operator run outside a "what is" phrase (a date, an
	// ID) must not be evaluated as an expression.
	a := Derive("Q19. True or false: the 2026-08-31 deadline has passed.", nil)
	if a.Source == SourceArithmetic {
		t.Fatalf("date evaluated as arithmetic: %v", a.Value)
	}
	if a.Source != SourceBoolean {
		t.Errorf("source: got %s", a.Source)
	}

	a = Derive("Report 2026-08-31 covers the period.", nil)
	if a.Source != SourcePlaceholder {
		t.Errorf("source: got %s, value %v", a.Source, a.Value)
	}
}

func TestDerive_Boolean(t *testing.T) {
	a := Derive("Q8. True or false: water is wet.", nil)
	if a.Source != SourceBoolean {
		t.Fatalf("source: got %s", a.Source)
	}
	if a.Value != true {
		t.Errorf("value: got %v", a.Value)
	}
}

func TestDerive_TextNumber(t *testing.T) {
	contents := []*extract.Content{
		{Text: "The measured concentration was 3.14 mg/L overall.", Filename: "report.pdf"},
	}

	a := Derive("What concentration was measured?", contents)
	if a.Source != SourceTextNumber {
		t.Fatalf("source: got %s", a.Source)
	}
	if a.Value != 3.14 {
		t.Errorf("value: got %v", a.Value)
	}
}

func TestDerive_Placeholder(t *testing.T) {
	// WHAT: With no matching signal at all, the placeholder answer comes
	// back with zero confidence rather than an error.
	a := Derive("Describe the painting.", nil)
	if a.Source != SourcePlaceholder {
		t.Fatalf("source: got %s", a.Source)
	}
	if a.Confidence != 0 {
		t.Errorf("confidence: got %v", a.Confidence)
	}
}

func TestDerive_TabularOutranksText(t *testing.T) {
	// WHAT: Structured signal wins over a free-text number even when the
	// text content comes first.
	contents := []*extract.Content{
		{Text: "See table, roughly 999 entries.", Filename: "notes.txt"},
		tableContent([]string{"value"}, [][]string{{"1"}, {"2"}}),
	}

	a := Derive("sum of value?", contents)
	if a.Source != SourceTabular {
		t.Errorf("source: got %s", a.Source)
	}
}

func TestEvalExpr(t *testing.T) {
	cases := []struct {
		expr    string
		want    float64
		wantErr bool
	}{
		{"1 + 2", 3, false},
		{"2 * 3 + 4", 10, false},
		{"2 + 3 * 4", 14, false},
		{"(2 + 3) * 4", 20, false},
		{"10 / 4", 2.5, false},
		{"7 - 2 - 1", 4, false},
		{"-3 + 5", 2, false},
		{"1 / 0", 0, true},
		{"2 +", 0, true},
		{"(1 + 2", 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			got, err := evalExpr(tc.expr)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("eval: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}
