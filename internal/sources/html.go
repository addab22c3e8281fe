package sources

import (
	"strings"

	"golang.org/x/net/html"
)

// fragments returns the non-empty trimmed text nodes under n in document order.
func fragments(n *html.Node) []string {
	var out []string
	collectText(n, &out)
	return out
}

func collectText(n *html.Node, out *[]string) {
	if n == nil {
		return
	}
	switch n.Type {
	case html.TextNode:
		if t := strings.TrimSpace(n.Data); t != "" {
			*out = append(*out, t)
		}
		return
	case html.CommentNode:
		return
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, out)
	}
}

func nodeText(n *html.Node) string {
	return strings.Join(fragments(n), " ")
}
