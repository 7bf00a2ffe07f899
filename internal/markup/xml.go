package markup

import (
	"fmt"
	"io"

	"github.com/beevik/etree"

	"headswap/internal/hserrors"
	"headswap/pkg/tree"
)

// XML is the codec for XML and XHTML documents. Input must already be
// UTF-8 (see Decode); the encoding named in the XML declaration is kept
// as-is in the tree.
type XML struct{}

func (XML) Parse(data []byte) ([]tree.Node, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = passthroughCharset
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, &hserrors.ParseError{Message: "failed to parse XML", Cause: err}
	}
	return fromXMLTokens(doc.Child), nil
}

// ParseFragment parses a fragment the same way as a document; a fragment
// must be well-formed XML on its own.
func (x XML) ParseFragment(data []byte) ([]tree.Node, error) {
	return x.Parse(data)
}

func (XML) Serialize(nodes []tree.Node) ([]byte, error) {
	doc := etree.NewDocument()
	doc.WriteSettings.CanonicalText = true
	doc.WriteSettings.CanonicalAttrVal = true
	for _, n := range nodes {
		appendXML(&doc.Element, n)
	}

	output, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize XML: %w", err)
	}
	return output, nil
}

// passthroughCharset satisfies encoding declarations for input that Decode
// has already converted to UTF-8.
func passthroughCharset(_ string, input io.Reader) (io.Reader, error) {
	return input, nil
}

func fromXMLTokens(tokens []etree.Token) []tree.Node {
	var out []tree.Node
	for _, tok := range tokens {
		switch t := tok.(type) {
		case *etree.Element:
			out = append(out, &tree.Element{
				Space:    t.Space,
				Name:     t.Tag,
				Attrs:    fromXMLAttrs(t.Attr),
				Children: fromXMLTokens(t.Child),
			})
		case *etree.CharData:
			out = append(out, tree.Text{Data: t.Data})
		case *etree.Comment:
			out = append(out, tree.Comment{Data: t.Data})
		case *etree.Directive:
			out = append(out, tree.Directive{Data: t.Data})
		case *etree.ProcInst:
			out = append(out, tree.ProcInst{Target: t.Target, Inst: t.Inst})
		}
	}
	return out
}

func fromXMLAttrs(attrs []etree.Attr) []tree.Attr {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]tree.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = tree.Attr{Space: a.Space, Key: a.Key, Val: a.Value}
	}
	return out
}

func appendXML(parent *etree.Element, n tree.Node) {
	switch v := n.(type) {
	case tree.Text:
		parent.AddChild(etree.NewText(v.Data))
	case tree.Comment:
		parent.AddChild(etree.NewComment(v.Data))
	case tree.Directive:
		parent.AddChild(etree.NewDirective(v.Data))
	case tree.ProcInst:
		parent.AddChild(etree.NewProcInst(v.Target, v.Inst))
	case *tree.Element:
		el := etree.NewElement(v.QualifiedName())
		for _, a := range v.Attrs {
			key := a.Key
			if a.Space != "" {
				key = a.Space + ":" + a.Key
			}
			el.CreateAttr(key, a.Val)
		}
		for _, c := range v.Children {
			appendXML(el, c)
		}
		parent.AddChild(el)
	default:
		panic(fmt.Sprintf("markup: unknown node type %T", n))
	}
}
