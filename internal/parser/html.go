package parser

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
)

// HTMLParser handles HTML files. Block elements and <br> delimit units;
// table cells are tagged as such.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, eris.Wrap(err, "parser: parse html")
	}

	doc := newDocument(filename)
	if title := findTitle(root); title != "" {
		doc.Title = title
	}

	c := &htmlCollector{doc: doc}
	start := findBody(root)
	if start == nil {
		start = root
	}
	c.walk(start, false, SourceParagraph)
	c.flush(SourceParagraph)
	return doc, nil
}

type htmlCollector struct {
	doc       *Document
	line      strings.Builder
	highlight bool
}

func (c *htmlCollector) flush(source SourceKind) {
	if strings.TrimSpace(c.line.String()) != "" {
		c.doc.add(c.line.String(), c.highlight, source)
	}
	c.line.Reset()
	c.highlight = false
}

func (c *htmlCollector) walk(n *html.Node, marked bool, source SourceKind) {
	switch n.Type {
	case html.TextNode:
		if marked && strings.TrimSpace(n.Data) != "" {
			c.highlight = true
		}
		c.line.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "head", "nav", "noscript", "template":
			return
		case "br":
			c.flush(source)
			return
		}
		if n.Data == "mark" || hasBackgroundStyle(n) {
			marked = true
		}
	}

	block := n.Type == html.ElementNode && isBlock(n.Data)
	if block {
		c.flush(source)
		if n.Data == "td" || n.Data == "th" {
			source = SourceTableCell
		}
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		c.walk(ch, marked, source)
	}
	if block {
		c.flush(source)
	}
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "li", "ul", "ol", "td", "th", "tr", "table", "blockquote",
		"h1", "h2", "h3", "h4", "h5", "h6", "dt", "dd", "pre", "section", "article":
		return true
	}
	return false
}

func hasBackgroundStyle(n *html.Node) bool {
	for _, a := range n.Attr {
		if a.Key != "style" {
			continue
		}
		for _, decl := range strings.Split(a.Val, ";") {
			prop, val, ok := strings.Cut(decl, ":")
			if !ok {
				continue
			}
			prop = strings.ToLower(strings.TrimSpace(prop))
			val = strings.ToLower(strings.TrimSpace(val))
			if (prop == "background" || prop == "background-color") && val != "" &&
				val != "none" && val != "transparent" && val != "inherit" {
				return true
			}
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
