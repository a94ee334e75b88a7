package email

import (
	_ "embed"
	"html/template"
	"strings"

	"golang.org/x/net/html"
)

var (
	//go:embed digest.html
	digestHTML     string
	digestTemplate = template.Must(template.New("digest.html").Parse(digestHTML))
)

func mustFillTemplate(tmpl *template.Template, values any) string {
	buf := new(strings.Builder)
	err := tmpl.Execute(buf, values)
	if err != nil {
		return ""
	}
	return buf.String()
}

// DigestEmailFormat renders a notification digest. Lines is pre-rendered
// HTML produced by the digest builder, one entry per line.
type DigestEmailFormat struct {
	Title    string
	Lines    []template.HTML
	NextPage string
}

func (ef *DigestEmailFormat) Subject() string {
	return ef.Title
}

func (ef *DigestEmailFormat) Body() string {
	return mustFillTemplate(digestTemplate, ef)
}

// PlainText is the text/plain alternative of Body.
func (ef *DigestEmailFormat) PlainText() string {
	buf := new(strings.Builder)
	for _, line := range ef.Lines {
		z := html.NewTokenizer(strings.NewReader(string(line)))
		for {
			tt := z.Next()
			if tt == html.ErrorToken {
				break
			}
			if tt == html.TextToken {
				buf.Write(z.Text())
			}
		}
		buf.WriteString("\n")
	}
	if ef.NextPage != "" {
		buf.WriteString(ef.NextPage + "\n")
	}
	return buf.String()
}
