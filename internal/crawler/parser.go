package crawler

import (
	"io"
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Parser extracts visible text and links from HTML content.
type Parser struct {
	// baseURL is the URL of the page being parsed, used for resolving relative URLs.
	baseURL *url.URL
}

// ParseResult contains the information the crawler needs from one page.
type ParseResult struct {
	// Title is the page title from the <title> tag.
	Title string

	// Text is the visible text of the page. Runs of whitespace are collapsed
	// to a single space and block elements are separated by a space.
	Text string

	// Links are the absolute http(s) URLs of every <a href> in document
	// order. Duplicates are kept.
	Links []string
}

// skippedElements hold no visible text.
var skippedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Title:    true,
}

// blockElements are separated from their neighbours in the extracted text,
// so "<p>one</p><p>two</p>" reads "one two" rather than "onetwo".
var blockElements = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Br: true, atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true,
	atom.Fieldset: true, atom.Figcaption: true, atom.Figure: true, atom.Footer: true,
	atom.Form: true, atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
	atom.H5: true, atom.H6: true, atom.Header: true, atom.Hr: true, atom.Li: true,
	atom.Main: true, atom.Nav: true, atom.Ol: true, atom.P: true, atom.Pre: true,
	atom.Section: true, atom.Table: true, atom.Td: true, atom.Th: true, atom.Tr: true,
	atom.Ul: true,
}

// NewParser creates a new HTML parser with the given base URL.
// The base URL is used to resolve relative links.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse reads HTML from content and extracts title, visible text and links.
// Malformed markup is repaired by the HTML5 parsing algorithm, so an error
// is only returned when content cannot be read.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{
		Links: make([]string, 0),
	}
	text := &textBuilder{}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if n.DataAtom == atom.Title && result.Title == "" {
				result.Title = strings.TrimSpace(nodeText(n))
			}
			if n.DataAtom == atom.A {
				if href, ok := getAttr(n, "href"); ok {
					if resolved := p.resolveURL(href); resolved != "" {
						result.Links = append(result.Links, resolved)
					}
				}
			}
			if skippedElements[n.DataAtom] {
				return
			}
			if blockElements[n.DataAtom] {
				text.breakWord()
				defer text.breakWord()
			}
		case html.TextNode:
			text.write(n.Data)
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)

	result.Text = text.String()
	return result, nil
}

// resolveURL resolves href against the base URL.
// Non-navigational and non-http(s) links yield "".
func (p *Parser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" {
		return ""
	}

	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := p.baseURL.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

// textBuilder collapses whitespace while text is appended.
type textBuilder struct {
	b       strings.Builder
	pending bool
}

// write appends s, turning every whitespace run into a single space.
func (t *textBuilder) write(s string) {
	for _, r := range s {
		if unicode.IsSpace(r) {
			t.pending = true
			continue
		}
		if t.pending && t.b.Len() > 0 {
			t.b.WriteByte(' ')
		}
		t.pending = false
		t.b.WriteRune(r)
	}
}

// breakWord makes sure the next written text is separated by a space.
func (t *textBuilder) breakWord() {
	t.pending = true
}

func (t *textBuilder) String() string {
	return t.b.String()
}

// nodeText concatenates the text children of n.
func nodeText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}
