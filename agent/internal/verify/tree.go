package verify

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ViewType selects which markdown view the isolated tree imitates.
type ViewType string

const (
	ViewReading ViewType = "reading"
	ViewSource  ViewType = "source"
)

// hostChain is the ancestor chain from the body's first child down to the
// view content, as class lists.
var hostChain = []string{
	"app-container",
	"horizontal-main-container",
	"workspace",
	"workspace-split mod-root",
	"workspace-tabs",
	"workspace-tab-container",
	"workspace-leaf",
	"workspace-leaf-content",
	"view-content",
}

var readingChain = []string{
	"markdown-reading-view",
	"markdown-preview-view markdown-rendered",
	"markdown-preview-section",
	"",
}

var sourceChain = []string{
	"markdown-source-view cm-s-obsidian mod-cm6 is-live-preview",
	"cm-editor",
	"cm-scroller",
	"cm-sizer",
	"cm-contentContainer",
	"cm-content",
	"cm-embed-block markdown-rendered cm-callout",
}

// tree is the isolated document.
type tree struct {
	doc    *html.Node
	head   *html.Node
	body   *html.Node
	target *html.Node
}

func newElement(a atom.Atom, class string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	if class != "" {
		n.Attr = []html.Attribute{{Key: "class", Val: class}}
	}
	return n
}

func buildTree(view ViewType, scheme string) *tree {
	doc := &html.Node{Type: html.DocumentNode}
	root := newElement(atom.Html, "")
	head := newElement(atom.Head, "")
	body := newElement(atom.Body, bodyClass(scheme))
	doc.AppendChild(root)
	root.AppendChild(head)
	root.AppendChild(body)

	chain := append([]string(nil), hostChain...)
	if view == ViewSource {
		chain = append(chain, sourceChain...)
	} else {
		chain = append(chain, readingChain...)
	}

	parent := body
	for _, class := range chain {
		n := newElement(atom.Div, class)
		parent.AppendChild(n)
		parent = n
	}
	target := newElement(atom.Div, "callout")
	parent.AppendChild(target)

	return &tree{doc: doc, head: head, body: body, target: target}
}

func bodyClass(scheme string) string {
	return "theme-" + scheme + " obsidian-app"
}

func (t *tree) setScheme(scheme string) {
	setAttr(t.body, "class", bodyClass(scheme))
}

func (t *tree) setCallout(id string) {
	setAttr(t.target, "data-callout", id)
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func newStyleNode(text string) *html.Node {
	n := newElement(atom.Style, "")
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return n
}

func styleText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(c.Data)
	}
	return b.String()
}

func setStyleText(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

// ancestors returns n and its element ancestors, innermost first.
func ancestors(n *html.Node) []*html.Node {
	var out []*html.Node
	for ; n != nil && n.Type == html.ElementNode; n = n.Parent {
		out = append(out, n)
	}
	return out
}
