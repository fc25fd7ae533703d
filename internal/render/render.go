// Package render turns a day of threads into a markdown document.
package render

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"post-archivist/internal/analytics"
	"post-archivist/internal/expand"
	"post-archivist/internal/linkresolve"
	"post-archivist/internal/model"
	"post-archivist/internal/thread"
	"post-archivist/internal/timerange"
)

//go:embed day.tmpl
var dayTpl string

var compiled = template.Must(template.New("day").Parse(dayTpl))

// TitleLookup returns a previously resolved link title.
type TitleLookup interface {
	Lookup(url string) (linkresolve.Resolution, bool)
}

// Titles adapts a plain map to TitleLookup.
type Titles map[string]linkresolve.Resolution

func (t Titles) Lookup(url string) (linkresolve.Resolution, bool) {
	r, ok := t[url]
	return r, ok
}

// Document is the rendered text for one local date.
type Document struct {
	Date    string
	Content string
}

// Renderer holds everything rendering needs besides the threads. Rendering
// performs no I/O; Titles and Media must be filled before Render is called.
type Renderer struct {
	Username      string
	WebBaseURL    string
	DocType       string
	HeadingFormat string
	Titles        TitleLookup
	// Media maps media keys to document-relative paths.
	Media map[string]string
}

type threadData struct {
	Heading     string
	URL         string
	Body        string
	ShowMetrics bool
	Metrics     model.Metrics
}

type dayData struct {
	Date    string
	DocType string
	Summary analytics.Summary
	Threads []threadData
}

// Render produces the document for b. Citations are built by e.
func (r Renderer) Render(b thread.DayBucket, e *expand.Expander) (Document, error) {
	d := dayData{
		Date:    b.Date,
		DocType: r.docType(),
		Summary: analytics.Summarize(b),
	}
	for _, t := range b.Threads {
		head := t.Head()
		d.Threads = append(d.Threads, threadData{
			Heading:     head.CreatedAt.In(timerange.Local).Format(r.headingFormat()),
			URL:         r.postURL(r.Username, head.ID),
			Body:        r.threadBody(t, e),
			ShowMetrics: t.Kind != thread.PlainRepost,
			Metrics:     t.Metrics(),
		})
	}
	var buf bytes.Buffer
	if err := compiled.Execute(&buf, d); err != nil {
		return Document{}, fmt.Errorf("render %s: %w", b.Date, err)
	}
	return Document{Date: b.Date, Content: strings.TrimRight(buf.String(), "\n") + "\n"}, nil
}

func (r Renderer) threadBody(t thread.Thread, e *expand.Expander) string {
	var blocks []string
	if t.Kind == thread.PlainRepost {
		head := t.Head()
		if ref, ok := head.Ref(model.RefRepost); ok {
			blocks = append(blocks, r.citation(e.ExpandFrom(head, ref), 1))
		}
		return strings.Join(blocks, "\n\n")
	}

	inThread := make(map[string]bool, len(t.Posts))
	for _, p := range t.Posts {
		inThread[p.ID] = true
	}
	for _, p := range t.Posts {
		if ref, ok := p.Ref(model.RefReply); ok && !inThread[ref.ID] {
			blocks = append(blocks, r.citation(e.ExpandFrom(p, ref), 1))
		}
		// An article stands alone: no attachments or quoted post.
		if p.IsArticle() {
			blocks = append(blocks, r.article(p)...)
			continue
		}
		if text := r.text(p); text != "" {
			blocks = append(blocks, text)
		}
		blocks = append(blocks, r.media(p)...)
		if ref, ok := p.Ref(model.RefQuote); ok {
			blocks = append(blocks, r.citation(e.ExpandFrom(p, ref), 1))
		}
	}
	return strings.Join(blocks, "\n\n")
}

// citation renders n and its descendants as nested block quotes, one
// "> " per level.
func (r Renderer) citation(n *expand.Node, depth int) string {
	prefix := strings.Repeat("> ", depth)
	if n.Status != expand.Resolved {
		return prefix + r.stub(n)
	}
	empty := strings.TrimRight(prefix, " ")
	var lines []string
	if n.Author != "" {
		lines = append(lines, prefix+"@"+n.Author+":", empty)
	}
	if n.Post.IsArticle() {
		for i, block := range r.article(n.Post) {
			if i > 0 {
				lines = append(lines, empty)
			}
			lines = append(lines, quoteLines(block, prefix)...)
		}
		return strings.Join(lines, "\n")
	}
	lines = append(lines, quoteLines(r.text(n.Post), prefix)...)
	for _, img := range r.media(n.Post) {
		lines = append(lines, empty, prefix+img)
	}
	if n.Child != nil {
		lines = append(lines, empty, r.citation(n.Child, depth+1))
	}
	return strings.Join(lines, "\n")
}

func quoteLines(block, prefix string) []string {
	empty := strings.TrimRight(prefix, " ")
	var out []string
	for _, l := range strings.Split(block, "\n") {
		if l == "" {
			out = append(out, empty)
			continue
		}
		out = append(out, prefix+l)
	}
	return out
}

// article returns the bold title, the cover image and the plain text of an
// article post, skipping any that are empty.
func (r Renderer) article(p model.Post) []string {
	a := p.Article
	var blocks []string
	if t := strings.TrimSpace(a.Title); t != "" {
		blocks = append(blocks, "**"+sanitizeLinkText(t)+"**")
	}
	if rel, ok := r.Media[a.CoverMedia]; ok && a.CoverMedia != "" {
		blocks = append(blocks, fmt.Sprintf("![](%s)", rel))
	}
	if body := strings.TrimSpace(a.PlainText); body != "" {
		blocks = append(blocks, body)
	}
	return blocks
}

func (r Renderer) stub(n *expand.Node) string {
	u := r.statusURL(n.TargetID)
	switch n.Status {
	case expand.DepthExceeded:
		return fmt.Sprintf("[More citations on X](%s)", u)
	case expand.Cycle:
		return fmt.Sprintf("[Cited post shown above](%s)", u)
	default:
		return fmt.Sprintf("[Unavailable post](%s)", u)
	}
}

// text returns the post body with short links replaced: a resolved link
// becomes [title](target), anything else the bare target URL.
func (r Renderer) text(p model.Post) string {
	text, ents := p.Body()
	for _, u := range ents.URLs {
		if u.URL == "" {
			continue
		}
		target := u.Target()
		replacement := target
		if r.Titles != nil {
			if res, ok := r.Titles.Lookup(target); ok && res.Resolved() {
				replacement = fmt.Sprintf("[%s](%s)", sanitizeLinkText(res.Title), target)
			}
		}
		text = strings.ReplaceAll(text, u.URL, replacement)
	}
	return strings.TrimSpace(text)
}

func (r Renderer) media(p model.Post) []string {
	var out []string
	for _, k := range p.Attachments.MediaKeys {
		if rel, ok := r.Media[k]; ok {
			out = append(out, fmt.Sprintf("![](%s)", rel))
		}
	}
	return out
}

func (r Renderer) postURL(username, id string) string {
	if username == "" {
		return r.statusURL(id)
	}
	return fmt.Sprintf("%s/%s/status/%s", r.webBase(), username, id)
}

func (r Renderer) statusURL(id string) string {
	return fmt.Sprintf("%s/i/web/status/%s", r.webBase(), id)
}

func (r Renderer) webBase() string {
	if r.WebBaseURL == "" {
		return "https://x.com"
	}
	return strings.TrimRight(r.WebBaseURL, "/")
}

func (r Renderer) docType() string {
	if r.DocType == "" {
		return "x-posts"
	}
	return r.DocType
}

func (r Renderer) headingFormat() string {
	if r.HeadingFormat == "" {
		return "2006-01-02 15:04"
	}
	return r.HeadingFormat
}

func sanitizeLinkText(s string) string {
	return strings.NewReplacer("[", "", "]", "").Replace(s)
}

// LinkTargets lists the expanded URL of every link entity in posts, in
// first-seen order without duplicates.
func LinkTargets(posts ...[]model.Post) []string {
	seen := map[string]bool{}
	var out []string
	for _, group := range posts {
		for _, p := range group {
			if p.IsArticle() {
				continue
			}
			_, ents := p.Body()
			for _, u := range ents.URLs {
				t := u.Target()
				if t == "" || seen[t] {
					continue
				}
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}
