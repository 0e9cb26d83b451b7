package quiz

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/hazyhaar/quizhook/extract"
)

// Heuristic sources, in priority order. Structured signal outranks
// free-text pattern matches.
const (
	SourceTabular     = "tabular"
	SourceArithmetic  = "arithmetic"
	SourceBoolean     = "boolean"
	SourceTextNumber  = "text-number"
	SourcePlaceholder = "placeholder"
)

// Derive combines the question text and the extracted contents into one
// candidate answer. It never fails: when nothing matches, the placeholder
// answer carries the lowest confidence so the session can still submit.
func Derive(question string, contents []*extract.Content) Answer {
	if a, ok := tabularAnswer(question, contents); ok {
		return a
	}
	if a, ok := arithmeticAnswer(question); ok {
		return a
	}
	if a, ok := booleanAnswer(question); ok {
		return a
	}
	if a, ok := textNumberAnswer(contents); ok {
		return a
	}
	return Answer{Value: "", Confidence: 0, Source: SourcePlaceholder}
}

// --- tabular ---

// aggregates maps question keywords to the aggregation they request.
// Sum is the default when a column matches but no keyword does.
var aggregates = []struct {
	keywords []string
	name     string
}{
	{[]string{"average", "mean"}, "avg"},
	{[]string{"how many", "count", "number of rows"}, "count"},
	{[]string{"maximum", "max ", "highest", "largest"}, "max"},
	{[]string{"minimum", "min ", "lowest", "smallest"}, "min"},
	{[]string{"sum", "total", "add"}, "sum"},
}

// tabularAnswer matches a table column against the question text and
// aggregates its numeric values. The "value" column is the fallback
// when the question names no header.
func tabularAnswer(question string, contents []*extract.Content) (Answer, bool) {
	q := strings.ToLower(question)

	for _, c := range contents {
		if c.Table == nil || len(c.Table.Rows) == 0 {
			continue
		}

		col := matchColumn(q, c.Table)
		if col < 0 {
			col = c.Table.Column("value")
		}
		if col < 0 {
			continue
		}

		nums := columnNumbers(c.Table, col)
		if len(nums) == 0 {
			continue
		}

		agg := "sum"
		for _, a := range aggregates {
			if containsAny(q, a.keywords) {
				agg = a.name
				break
			}
		}

		value := aggregate(nums, agg)
		return Answer{
			Value:      numValue(value),
			Confidence: 0.9,
			Source:     SourceTabular,
			Inputs:     fmt.Sprintf("%s(%s) over %d rows from %s", agg, c.Table.Header[col], len(nums), c.Filename),
		}, true
	}
	return Answer{}, false
}

// matchColumn returns the index of the first header word present in the
// question, skipping single-character headers that match too eagerly.
func matchColumn(q string, t *extract.Table) int {
	for i, h := range t.Header {
		h = strings.ToLower(strings.TrimSpace(h))
		if len(h) < 2 {
			continue
		}
		if strings.Contains(q, h) {
			return i
		}
	}
	return -1
}

func columnNumbers(t *extract.Table, col int) []float64 {
	var nums []float64
	for _, row := range t.Rows {
		if col >= len(row) {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
		if err != nil {
			continue
		}
		nums = append(nums, v)
	}
	return nums
}

func aggregate(nums []float64, agg string) float64 {
	switch agg {
	case "count":
		return float64(len(nums))
	case "avg":
		return sum(nums) / float64(len(nums))
	case "max":
		m := nums[0]
		for _, v := range nums[1:] {
			if v > m {
				m = v
			}
		}
		return m
	case "min":
		m := nums[0]
		for _, v := range nums[1:] {
			if v < m {
				m = v
			}
		}
		return m
	default:
		return sum(nums)
	}
}

func sum(nums []float64) float64 {
	var s float64
	for _, v := range nums {
		s += v
	}
	return s
}

// --- arithmetic ---

// arithmeticLeadRe anchors on "what is <expr>". Bare digit runs elsewhere
// in a question (dates, IDs) are not expressions.
var arithmeticLeadRe = regexp.MustCompile(`(?i)what\s+is\s+([0-9(][0-9(). \t+*/-]*)`)

// arithmeticRe requires at least one operator inside the candidate.
var arithmeticRe = regexp.MustCompile(`\d+(?:\.\d+)?(?:\s*[-+*/]\s*\(?\s*\d+(?:\.\d+)?\s*\)?)+`)

func arithmeticAnswer(question string) (Answer, bool) {
	m := arithmeticLeadRe.FindStringSubmatch(question)
	if m == nil {
		return Answer{}, false
	}
	expr := strings.TrimSpace(m[1])
	// The capture may run past the expression ("what is 2 + 3 - see..."),
	// leaving a dangling operator.
	expr = strings.TrimRight(expr, " \t+-*/(")
	if !arithmeticRe.MatchString(expr) {
		return Answer{}, false
	}
	value, err := evalExpr(expr)
	if err != nil {
		return Answer{}, false
	}
	return Answer{
		Value:      numValue(value),
		Confidence: 0.8,
		Source:     SourceArithmetic,
		Inputs:     expr,
	}, true
}

// --- boolean ---

func booleanAnswer(question string) (Answer, bool) {
	q := strings.ToLower(question)
	if !strings.Contains(q, "true or false") && !strings.Contains(q, "true/false") {
		return Answer{}, false
	}
	// Without a knowledge base the affirmative is the better-than-chance
	// guess for quiz statements.
	return Answer{Value: true, Confidence: 0.5, Source: SourceBoolean}, true
}

// --- free text ---

var numberRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// textNumberAnswer pulls the first number out of the extracted contents.
func textNumberAnswer(contents []*extract.Content) (Answer, bool) {
	for _, c := range contents {
		if c.Text == "" {
			continue
		}
		m := numberRe.FindString(c.Text)
		if m == "" {
			continue
		}
		v, err := strconv.ParseFloat(m, 64)
		if err != nil {
			continue
		}
		return Answer{
			Value:      numValue(v),
			Confidence: 0.3,
			Source:     SourceTextNumber,
			Inputs:     "first number in " + c.Filename,
		}, true
	}
	return Answer{}, false
}

// numValue renders integral floats as integers so "42" is submitted
// instead of "42.000000".
func numValue(v float64) any {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return int64(v)
	}
	return v
}
