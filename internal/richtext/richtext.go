// Package richtext normalizes article HTML before it is stored.
package richtext

import (
	"bytes"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// EmbedClass wraps every normalized video iframe.
const EmbedClass = "video-embed"

// Elements removed together with their content.
var droppedElements = map[string]bool{
	"script": true, "style": true, "template": true, "noscript": true,
	"form": true, "button": true, "input": true, "select": true, "textarea": true,
	"object": true, "embed": true, "applet": true, "frame": true, "frameset": true,
	"meta": true, "base": true, "link": true, "title": true,
	"svg": true, "math": true,
}

var commonAttrs = []string{"class", "title", "lang", "dir"}

// allowedElements lists the markup an article may carry and the attributes
// kept on each. Any other element is replaced by its children.
var allowedElements = map[string][]string{
	"p": nil, "br": nil, "hr": nil, "div": nil, "span": nil,
	"h1": nil, "h2": nil, "h3": nil, "h4": nil, "h5": nil, "h6": nil,
	"strong": nil, "b": nil, "em": nil, "i": nil, "u": nil, "s": nil,
	"sub": nil, "sup": nil, "mark": nil, "small": nil, "code": nil, "pre": nil,
	"blockquote": nil, "ul": nil, "ol": {"start"}, "li": nil,
	"figure": nil, "figcaption": nil,
	"table": nil, "thead": nil, "tbody": nil, "tfoot": nil, "tr": nil,
	"th": {"colspan", "rowspan"}, "td": {"colspan", "rowspan"},
	"a":      {"href"},
	"img":    {"src", "alt", "width", "height"},
	"iframe": {"src"},
}

// Schemes accepted per URL attribute. Relative URLs are always accepted.
var urlSchemes = map[string][]string{
	"href": {"http", "https", "mailto"},
	"src":  {"http", "https"},
}

// Normalize reduces article HTML to an allowlist of elements and attributes,
// rewrites video iframes to canonical embed URLs and wraps them in a
// responsive container. Iframes that do not point at a known video provider
// are removed. Running it twice yields the same output.
func Normalize(src string) (string, error) {
	context := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(src), context)
	if err != nil {
		return "", fmt.Errorf("parse article html: %w", err)
	}

	root := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	for _, n := range nodes {
		root.AppendChild(n)
	}

	var iframes []*html.Node
	sanitize(root, &iframes)
	for _, n := range iframes {
		normalizeIframe(n)
	}

	var buf bytes.Buffer
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", fmt.Errorf("render article html: %w", err)
		}
	}
	return buf.String(), nil
}

// sanitize filters the children of n in place and collects iframes for
// normalizeIframe.
func sanitize(n *html.Node, iframes *[]*html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch c.Type {
		case html.TextNode:
		case html.ElementNode:
			attrs, allowed := allowedElements[c.Data]
			switch {
			case c.Namespace != "" || droppedElements[c.Data]:
				n.RemoveChild(c)
			case !allowed:
				sanitize(c, iframes)
				unwrap(c)
			default:
				c.Attr = keepAttrs(c.Attr, attrs)
				if c.DataAtom == atom.Iframe {
					*iframes = append(*iframes, c)
				} else {
					sanitize(c, iframes)
				}
			}
		default:
			// comments, doctypes
			n.RemoveChild(c)
		}
		c = next
	}
}

func unwrap(n *html.Node) {
	parent := n.Parent
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		parent.InsertBefore(c, n)
		c = next
	}
	parent.RemoveChild(n)
}

func keepAttrs(in []html.Attribute, allowed []string) []html.Attribute {
	kept := in[:0]
	for _, a := range in {
		if a.Namespace != "" {
			continue
		}
		if !slices.Contains(allowed, a.Key) && !slices.Contains(commonAttrs, a.Key) {
			continue
		}
		if schemes, isURL := urlSchemes[a.Key]; isURL && !safeURL(a.Val, schemes) {
			continue
		}
		kept = append(kept, a)
	}
	return kept
}

// safeURL reports whether raw is relative or uses one of schemes. Browsers
// ignore ASCII whitespace and control characters inside a scheme, so they are
// removed before the scheme is read.
func safeURL(raw string, schemes []string) bool {
	cleaned := strings.Map(func(r rune) rune {
		if r <= 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, raw)
	i := strings.IndexAny(cleaned, ":/?#")
	if i < 0 || cleaned[i] != ':' {
		return true
	}
	return slices.Contains(schemes, strings.ToLower(cleaned[:i]))
}

func normalizeIframe(n *html.Node) {
	embed, ok := EmbedURL(attr(n, "src"))
	if !ok {
		n.Parent.RemoveChild(n)
		return
	}

	attrs := []html.Attribute{
		{Key: "src", Val: embed},
		{Key: "title", Val: orDefault(attr(n, "title"), "Video")},
		{Key: "loading", Val: "lazy"},
		{Key: "allow", Val: "accelerometer; encrypted-media; gyroscope; picture-in-picture"},
		{Key: "allowfullscreen", Val: ""},
	}
	n.Attr = attrs

	parent := n.Parent
	if parent.DataAtom == atom.Div && attr(parent, "class") == EmbedClass {
		return
	}
	wrapper := &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
		Attr:     []html.Attribute{{Key: "class", Val: EmbedClass}},
	}
	parent.InsertBefore(wrapper, n)
	parent.RemoveChild(n)
	wrapper.AppendChild(n)
}

// EmbedURL maps YouTube and Vimeo watch, share and embed links onto their
// canonical embed URL.
func EmbedURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")

	var id string
	switch host {
	case "youtube.com", "youtube-nocookie.com":
		switch {
		case u.Path == "/watch":
			id = u.Query().Get("v")
		case len(segments) == 2 && (segments[0] == "embed" || segments[0] == "shorts" || segments[0] == "live"):
			id = segments[1]
		}
		if validVideoID(id) {
			return "https://www.youtube.com/embed/" + id, true
		}
	case "youtu.be":
		if len(segments) == 1 && validVideoID(segments[0]) {
			return "https://www.youtube.com/embed/" + segments[0], true
		}
	case "vimeo.com", "player.vimeo.com":
		last := segments[len(segments)-1]
		if last != "" && isDigits(last) {
			return "https://player.vimeo.com/video/" + last, true
		}
	}
	return "", false
}

func validVideoID(id string) bool {
	if id == "" || len(id) > 32 {
		return false
	}
	for _, r := range id {
		if !(r == '-' || r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
