package markdown

import (
	"bufio"
	"errors"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Document represents a Markdown file with YAML frontmatter.
type Document struct {
	Frontmatter map[string]any
	Body        string
}

// ParseFile reads a Markdown file and extracts YAML frontmatter and body.
func ParseFile(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse extracts YAML frontmatter and body from r.
// Frontmatter is expected at the top between two lines containing only "---".
func Parse(r io.Reader) (Document, error) {
	br := bufio.NewReader(r)
	peek, err := br.Peek(3)
	if err != nil && !errors.Is(err, io.EOF) {
		return Document{}, err
	}
	hasFM := string(peek) == "---"
	var fmBuf strings.Builder
	var bodyBuf strings.Builder

	if hasFM {
		// Consume the opening '---' line
		if _, err := br.ReadString('\n'); err != nil && !errors.Is(err, io.EOF) {
			return Document{}, err
		}
		for {
			l, err := br.ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return Document{}, err
			}
			if strings.TrimSpace(l) == "---" {
				break
			}
			fmBuf.WriteString(l)
			if errors.Is(err, io.EOF) {
				break
			}
		}
	}
	for {
		l, err := br.ReadString('\n')
		bodyBuf.WriteString(l)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Document{}, err
		}
	}

	d := Document{
		Frontmatter: map[string]any{},
		Body:        bodyBuf.String(),
	}
	if hasFM {
		m := map[string]any{}
		if err := yaml.Unmarshal([]byte(fmBuf.String()), &m); err != nil {
			return Document{}, err
		}
		d.Frontmatter = m
	}
	return d, nil
}

// String returns a frontmatter value as text. YAML dates decoded as
// time.Time come back as YYYY-MM-DD.
func (d Document) String(key string) string {
	switch v := d.Frontmatter[key].(type) {
	case string:
		return v
	case time.Time:
		return v.Format("2006-01-02")
	case nil:
		return ""
	default:
		b, _ := yaml.Marshal(v)
		return strings.TrimSpace(string(b))
	}
}

// Heading is a level-two heading whose text is a link.
type Heading struct {
	Text string
	URL  string
}

var linkedH2 = regexp.MustCompile(`(?m)^## \[([^\]]*)\]\(([^)\s]+)\)\s*$`)

// LinkedHeadings returns every "## [text](url)" heading in body order.
func (d Document) LinkedHeadings() []Heading {
	var out []Heading
	for _, m := range linkedH2.FindAllStringSubmatch(d.Body, -1) {
		out = append(out, Heading{Text: m[1], URL: m[2]})
	}
	return out
}
