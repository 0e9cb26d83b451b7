package render

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// questionSelectors are tried in order; the first non-empty match wins.
// Quiz pages put their task text under one of these containers.
var questionSelectors = []string{
	"#result", ".result", "#question", ".question", "#task", ".task",
}

// questionLineRe matches a numbered question marker like "Q102." so the
// harvest can anchor on the actual task line inside a noisy container.
var questionLineRe = regexp.MustCompile(`Q\d{2,4}\.`)

// attachmentRe matches URLs whose path ends in a downloadable extension.
var attachmentRe = regexp.MustCompile(`(?i)\.(csv|tsv|xlsx|xls|pdf|zip|png|jpe?g)$`)

// submitRe spots a submit endpoint anywhere in a URL.
var submitRe = regexp.MustCompile(`(?i)submit`)

// harvest pulls the question text, attachment references, and the submit
// URL candidate out of a parsed document.
func harvest(doc *html.Node, base *url.URL, p *Page) {
	p.Question = questionText(doc)
	p.Attachments = attachmentURLs(doc, base)
	p.SubmitURL = submitURL(doc, base)
}

// questionText returns the text of the first matching question container,
// falling back to the whole body. When a numbered question marker exists,
// the text from that marker onward is preferred.
func questionText(doc *html.Node) string {
	for _, sel := range questionSelectors {
		for _, n := range querySelectorAll(doc, sel) {
			if text := collectText(n); text != "" {
				return anchorOnQuestion(text)
			}
		}
	}
	for _, n := range querySelectorAll(doc, "body") {
		if text := collectText(n); text != "" {
			return anchorOnQuestion(text)
		}
	}
	return ""
}

func anchorOnQuestion(text string) string {
	if loc := questionLineRe.FindStringIndex(text); loc != nil {
		return strings.TrimSpace(text[loc[0]:])
	}
	return text
}

// attachmentURLs collects, in document order, every href/src that points
// at a downloadable payload. data: URIs are kept verbatim; relative URLs
// are resolved against the page URL. Duplicates are dropped.
func attachmentURLs(doc *html.Node, base *url.URL) []string {
	var out []string
	seen := make(map[string]bool)

	// force bypasses the extension check: anchors labelled "download"
	// point at payloads regardless of how their URL looks.
	add := func(ref string, force bool) {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			return
		}
		if strings.HasPrefix(ref, "data:") {
			if !seen[ref] {
				seen[ref] = true
				out = append(out, ref)
			}
			return
		}
		abs := resolveRef(base, ref)
		if abs == "" {
			return
		}
		if !force {
			u, err := url.Parse(abs)
			if err != nil || !attachmentRe.MatchString(u.Path) {
				return
			}
		}
		if !seen[abs] {
			seen[abs] = true
			out = append(out, abs)
		}
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "a":
				label := strings.ToLower(collectText(n))
				add(getAttr(n, "href"), strings.Contains(label, "download"))
			case "img":
				if src := getAttr(n, "src"); strings.HasPrefix(src, "data:") {
					add(src, false)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

// submitURL finds where the answer should be posted: the first URL on the
// page containing "submit" (href or form action), else the first form
// action of any kind.
func submitURL(doc *html.Node, base *url.URL) string {
	var firstForm string

	var found string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != "" {
			return
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "a":
				if href := getAttr(n, "href"); submitRe.MatchString(href) {
					found = resolveRef(base, href)
					return
				}
			case "form":
				action := getAttr(n, "action")
				if submitRe.MatchString(action) {
					found = resolveRef(base, action)
					return
				}
				if firstForm == "" && action != "" {
					firstForm = resolveRef(base, action)
				}
			}
		}
		// Plain-text URLs inside the page body count too.
		if n.Type == html.TextNode && submitRe.MatchString(n.Data) {
			if u := firstURLIn(n.Data); u != "" && submitRe.MatchString(u) {
				found = u
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if found != "" {
		return found
	}
	return firstForm
}

var urlInTextRe = regexp.MustCompile(`https?://[^\s"'<>]+`)

func firstURLIn(text string) string {
	return urlInTextRe.FindString(text)
}

func resolveRef(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

// collectText gathers visible text under a node, skipping script/style.
func collectText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
