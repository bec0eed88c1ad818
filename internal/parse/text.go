package parse

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"golang.org/x/net/html"
)

// TextProcessor transforms the free-text fields of a feed before they
// are returned. Link-like fields (urls, logo, hub, ...) are never
// processed.
type TextProcessor interface {
	Process(text string) string
}

// GetTextProcessor maps the process_text query parameter to a
// processor. Unknown names return nil (no processing).
func GetTextProcessor(name string) TextProcessor {
	switch name {
	case "strip_html":
		return &StripHTMLProcessor{}
	case "markdown":
		return &MarkdownProcessor{}
	}
	return nil
}

var multiNewline = regexp.MustCompile(`\n{3,}`)

// StripHTMLProcessor removes markup so the text can be shown in a plain
// text view. Line-break-like elements become newlines, list items
// become bullet lines, and entities are decoded.
type StripHTMLProcessor struct{}

func (p *StripHTMLProcessor) Process(text string) string {
	if text == "" || !strings.ContainsAny(text, "<&") {
		return strings.TrimSpace(text)
	}

	var b strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(text))
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			result := multiNewline.ReplaceAllString(b.String(), "\n\n")
			return strings.TrimSpace(result)
		case html.TextToken:
			b.WriteString(tokenizer.Token().Data)
		case html.StartTagToken, html.SelfClosingTagToken, html.EndTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "br", "ul":
				b.WriteString("\n")
			case "li":
				if tt == html.EndTagToken {
					b.WriteString("\n")
				} else {
					b.WriteString("\n * ")
				}
			case "p":
				b.WriteString("\n\n")
			}
		}
	}
}

// MarkdownProcessor converts HTML to Markdown. Unconvertible input
// yields the empty string, matching the strip-everything fallback of
// the text view.
type MarkdownProcessor struct {
	converter *md.Converter
}

func (p *MarkdownProcessor) Process(text string) string {
	if text == "" {
		return ""
	}
	if p.converter == nil {
		p.converter = md.NewConverter("", true, nil)
	}
	result, err := p.converter.ConvertString(text)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(result)
}
