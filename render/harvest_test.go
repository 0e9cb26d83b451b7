package render

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

const quizPage = `<html><body>
<div class="navbar">Quiz Portal</div>
<div id="question">
  <p>Q217. Sum the value column of the attached file.</p>
  <a href="/files/data.csv">data.csv</a>
  <a href="/files/data.csv">data.csv again</a>
  <a href="https://cdn.example.com/report.pdf?v=1">report</a>
  <a href="/about.html">about</a>
  <p>Post your answer to https://quiz.example.com/api/submit</p>
</div>
</body></html>`

func TestParse_Question(t *testing.T) {
	r := New(Config{})
	p, err := r.Parse(quizPage, "https://quiz.example.com/page/1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !strings.HasPrefix(p.Question, "Q217.") {
		t.Errorf("question not anchored on marker: %q", p.Question)
	}
	if !strings.Contains(p.Question, "Sum the value column") {
		t.Errorf("question: %q", p.Question)
	}
}

func TestParse_Attachments(t *testing.T) {
	// WHAT: Attachment refs are deduped, resolved absolute, and kept in
	// document order; non-downloadable links are skipped.
	r := New(Config{})
	p, err := r.Parse(quizPage, "https://quiz.example.com/page/1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	want := []string{
		"https://quiz.example.com/files/data.csv",
		"https://cdn.example.com/report.pdf?v=1",
	}
	if len(p.Attachments) != len(want) {
		t.Fatalf("attachments: got %v", p.Attachments)
	}
	for i, u := range want {
		if p.Attachments[i] != u {
			t.Errorf("attachment %d: got %q, want %q", i, p.Attachments[i], u)
		}
	}
}

func TestParse_SubmitURLFromText(t *testing.T) {
	r := New(Config{})
	p, err := r.Parse(quizPage, "https://quiz.example.com/page/1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.SubmitURL != "https://quiz.example.com/api/submit" {
		t.Errorf("submit URL: got %q", p.SubmitURL)
	}
}

func TestParse_SubmitURLFromForm(t *testing.T) {
	// WHAT: Without any "submit" URL, the first form action is the
	// candidate.
	page := `<html><body>
	<div class="task">Q33. Is the sky blue? Answer true or false.</div>
	<form action="/answers" method="post"><input name="answer"></form>
	</body></html>`

	r := New(Config{})
	p, err := r.Parse(page, "https://quiz.example.com/q/33")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.SubmitURL != "https://quiz.example.com/answers" {
		t.Errorf("submit URL: got %q", p.SubmitURL)
	}
}

func TestParse_SubmitURLFromFormAction(t *testing.T) {
	page := `<html><body>
	<form action="/quiz/submit"><input name="answer"></form>
	</body></html>`

	r := New(Config{})
	p, err := r.Parse(page, "https://quiz.example.com/")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.SubmitURL != "https://quiz.example.com/quiz/submit" {
		t.Errorf("submit URL: got %q", p.SubmitURL)
	}
}

func TestParse_DownloadLabelledAnchor(t *testing.T) {
	// WHAT: An anchor labelled "download" is an attachment even when its
	// URL carries no recognizable extension.
	page := `<html><body>
	<div class="question">Q9. Use the attached file.</div>
	<a href="/attachments/8f3a">Download the data</a>
	<a href="/help">help</a>
	</body></html>`

	r := New(Config{})
	p, err := r.Parse(page, "https://quiz.example.com/")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []string{"https://quiz.example.com/attachments/8f3a"}
	if len(p.Attachments) != 1 || p.Attachments[0] != want[0] {
		t.Errorf("attachments: got %v, want %v", p.Attachments, want)
	}
}

func TestParse_DataURIAttachment(t *testing.T) {
	page := `<html><body>
	<div class="question">Q45. Read the embedded file.</div>
	<a href="data:text/csv;base64,YSxiCjEsMgo=">inline data</a>
	<img src="data:image/png;base64,iVBORw0KGgo=">
	</body></html>`

	r := New(Config{})
	p, err := r.Parse(page, "https://quiz.example.com/")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(p.Attachments) != 2 {
		t.Fatalf("attachments: got %v", p.Attachments)
	}
	for _, a := range p.Attachments {
		if !strings.HasPrefix(a, "data:") {
			t.Errorf("expected data URI, got %q", a)
		}
	}
}

func TestParse_FallbackToBody(t *testing.T) {
	// WHAT: With no question container, the body text is the question.
	page := `<html><body><p>What is 2 + 2?</p></body></html>`

	r := New(Config{})
	p, err := r.Parse(page, "https://quiz.example.com/")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !strings.Contains(p.Question, "What is 2 + 2?") {
		t.Errorf("question: %q", p.Question)
	}
	if p.SubmitURL != "" {
		t.Errorf("submit URL should be empty, got %q", p.SubmitURL)
	}
}

func TestParse_SelectorPriority(t *testing.T) {
	// WHAT: #result outranks .question when both exist.
	page := `<html><body>
	<div id="result">Q10. The real task.</div>
	<div class="question">decoy text</div>
	</body></html>`

	r := New(Config{})
	p, err := r.Parse(page, "https://quiz.example.com/")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !strings.Contains(p.Question, "The real task") {
		t.Errorf("question: %q", p.Question)
	}
	if strings.Contains(p.Question, "decoy") {
		t.Errorf("lower-priority selector won: %q", p.Question)
	}
}

func TestParse_MarkdownFallback(t *testing.T) {
	page := `<html><body><div class="task">Q11. Plain question.</div></body></html>`

	r := New(Config{})
	p, err := r.Parse(page, "https://quiz.example.com/")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Markdown == "" {
		t.Error("expected non-empty markdown")
	}
}

func TestQuerySelectorAll(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(
		`<html><body><div class="a b">x</div><span id="only">y</span><div>z</div></body></html>`))
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		sel  string
		want int
	}{
		{"div", 2},
		{".a", 1},
		{".b", 1},
		{"#only", 1},
		{"div.a", 1},
		{"span#only", 1},
		{".missing", 0},
		{"body div", 2},
	}
	for _, tc := range cases {
		if got := len(querySelectorAll(doc, tc.sel)); got != tc.want {
			t.Errorf("querySelectorAll(%q): got %d, want %d", tc.sel, got, tc.want)
		}
	}
}
