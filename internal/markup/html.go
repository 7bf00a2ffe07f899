package markup

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"headswap/internal/hserrors"
	"headswap/pkg/tree"
)

// HTML is the codec for HTML documents. Parsing follows the HTML5
// algorithm, so implied html, head and body elements are always present in
// a parsed document.
type HTML struct{}

func (HTML) Parse(data []byte) ([]tree.Node, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &hserrors.ParseError{Message: "failed to parse HTML", Cause: err}
	}
	return fromHTMLChildren(doc), nil
}

// ParseFragment parses data in an <html> context when it starts with a
// <head> or <body> tag and in a <body> context otherwise.
func (HTML) ParseFragment(data []byte) ([]tree.Node, error) {
	nodes, err := html.ParseFragment(bytes.NewReader(data), fragmentContext(data))
	if err != nil {
		return nil, &hserrors.ParseError{Message: "failed to parse HTML fragment", Cause: err}
	}

	out := make([]tree.Node, 0, len(nodes))
	for _, n := range nodes {
		if tn, ok := fromHTML(n); ok {
			out = append(out, tn)
		}
	}
	return out, nil
}

func (HTML) Serialize(nodes []tree.Node) ([]byte, error) {
	doc := &html.Node{Type: html.DocumentNode}
	for _, n := range nodes {
		doc.AppendChild(toHTML(n))
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, fmt.Errorf("failed to render HTML: %w", err)
	}
	return buf.Bytes(), nil
}

func fragmentContext(data []byte) *html.Node {
	head := strings.ToLower(strings.TrimLeft(string(data[:min(len(data), 64)]), " \t\r\n\f\ufeff"))
	if strings.HasPrefix(head, "<head") || strings.HasPrefix(head, "<body") {
		return &html.Node{Type: html.ElementNode, Data: "html", DataAtom: atom.Html}
	}
	return &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
}

func fromHTMLChildren(n *html.Node) []tree.Node {
	var out []tree.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if tn, ok := fromHTML(c); ok {
			out = append(out, tn)
		}
	}
	return out
}

func fromHTML(n *html.Node) (tree.Node, bool) {
	switch n.Type {
	case html.TextNode:
		return tree.Text{Data: n.Data}, true
	case html.CommentNode:
		return tree.Comment{Data: n.Data}, true
	case html.DoctypeNode:
		return tree.Directive{Data: n.Data, Attrs: fromHTMLAttrs(n.Attr)}, true
	case html.ElementNode:
		return &tree.Element{
			Space:    n.Namespace,
			Name:     n.Data,
			Attrs:    fromHTMLAttrs(n.Attr),
			Children: fromHTMLChildren(n),
		}, true
	case html.RawNode:
		return tree.Text{Data: n.Data}, true
	default:
		return nil, false
	}
}

func fromHTMLAttrs(attrs []html.Attribute) []tree.Attr {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]tree.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = tree.Attr{Space: a.Namespace, Key: a.Key, Val: a.Val}
	}
	return out
}

func toHTML(n tree.Node) *html.Node {
	switch v := n.(type) {
	case tree.Text:
		return &html.Node{Type: html.TextNode, Data: v.Data}
	case tree.Comment:
		return &html.Node{Type: html.CommentNode, Data: v.Data}
	case tree.Directive:
		return &html.Node{Type: html.DoctypeNode, Data: v.Data, Attr: toHTMLAttrs(v.Attrs)}
	case tree.ProcInst:
		// HTML has no processing instructions; emit them verbatim.
		return &html.Node{Type: html.RawNode, Data: "<?" + v.Target + " " + v.Inst + "?>"}
	case *tree.Element:
		out := &html.Node{
			Type:      html.ElementNode,
			Data:      v.Name,
			DataAtom:  atom.Lookup([]byte(v.Name)),
			Namespace: v.Space,
			Attr:      toHTMLAttrs(v.Attrs),
		}
		for _, c := range v.Children {
			out.AppendChild(toHTML(c))
		}
		return out
	default:
		panic(fmt.Sprintf("markup: unknown node type %T", n))
	}
}

func toHTMLAttrs(attrs []tree.Attr) []html.Attribute {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]html.Attribute, len(attrs))
	for i, a := range attrs {
		out[i] = html.Attribute{Namespace: a.Space, Key: a.Key, Val: a.Val}
	}
	return out
}
