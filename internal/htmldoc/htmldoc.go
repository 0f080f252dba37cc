// Package htmldoc inspects generated HTML documents.
package htmldoc

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Title returns the trimmed text of the first <title> element, or "".
func Title(doc string) string {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return ""
	}
	return findTitle(root)
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		if n.FirstChild != nil {
			return strings.TrimSpace(n.FirstChild.Data)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

// IsComplete reports whether doc spells out its own <html> and <body>
// elements. The HTML parser synthesizes both for fragments, so the check
// runs on the raw tokens instead of the parsed tree.
func IsComplete(doc string) bool {
	z := html.NewTokenizer(strings.NewReader(doc))
	var sawHTML, sawBody bool
	for {
		switch z.Next() {
		case html.ErrorToken:
			return sawHTML && sawBody
		case html.StartTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Html:
				sawHTML = true
			case atom.Body:
				sawBody = true
			}
			if sawHTML && sawBody {
				return true
			}
		}
	}
}
