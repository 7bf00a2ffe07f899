// Package tree defines the document model shared by the selector matcher,
// the rewrite engine and the markup codecs.
//
// A Node is one of a closed set of variants. Only *Element carries children;
// every other variant is an opaque leaf. Consumers switch on the concrete
// type and panic on anything they do not know, so adding a variant breaks
// loudly instead of being silently dropped.
package tree

import "fmt"

// Node is a single entry in a document forest.
type Node interface {
	isNode()
}

// Document is an ordered sequence of root-level nodes. It need not have a
// single root.
type Document = []Node

// Attr is one element attribute. Space holds the namespace prefix or URI as
// reported by the parser and is empty for plain HTML attributes.
type Attr struct {
	Space string
	Key   string
	Val   string
}

// Text is character data.
type Text struct {
	Data string
}

// Comment is a markup comment.
type Comment struct {
	Data string
}

// Directive is a declaration such as an HTML doctype or an XML <!...>
// directive. HTML doctypes store the name in Data and the public and system
// identifiers as the "public" and "system" attributes.
type Directive struct {
	Data  string
	Attrs []Attr
}

// ProcInst is an XML processing instruction.
type ProcInst struct {
	Target string
	Inst   string
}

// Element is a named node with ordered attributes and exclusively owned
// children.
type Element struct {
	Space    string
	Name     string
	Attrs    []Attr
	Children []Node
}

func (Text) isNode()      {}
func (Comment) isNode()   {}
func (Directive) isNode() {}
func (ProcInst) isNode()  {}
func (*Element) isNode()  {}

// NewElement returns an element with the given name and attributes and no
// children.
func NewElement(name string, attrs ...Attr) *Element {
	return &Element{Name: name, Attrs: attrs}
}

// Append adds children to e and returns e for chaining.
func (e *Element) Append(children ...Node) *Element {
	e.Children = append(e.Children, children...)
	return e
}

// Attr returns the value of the first attribute named key, ignoring
// namespaces.
func (e *Element) Attr(key string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// QualifiedName returns "space:name" when the element has a namespace
// prefix and the bare name otherwise.
func (e *Element) QualifiedName() string {
	if e.Space == "" {
		return e.Name
	}
	return e.Space + ":" + e.Name
}

// IsElement reports whether n is an *Element.
func IsElement(n Node) bool {
	_, ok := n.(*Element)
	return ok
}

// AsElement returns n as an *Element. ok is false for every other variant
// and for a nil *Element.
func AsElement(n Node) (el *Element, ok bool) {
	el, ok = n.(*Element)
	if ok && el == nil {
		return nil, false
	}
	return el, ok
}

// CloneAttrs returns a copy of attrs that shares no backing array with it.
// A nil slice stays nil.
func CloneAttrs(attrs []Attr) []Attr {
	if attrs == nil {
		return nil
	}
	out := make([]Attr, len(attrs))
	copy(out, attrs)
	return out
}

// Clone returns a deep copy of n.
func Clone(n Node) Node {
	switch v := n.(type) {
	case Text, Comment, ProcInst:
		return v
	case Directive:
		return Directive{Data: v.Data, Attrs: CloneAttrs(v.Attrs)}
	case *Element:
		if v == nil {
			return v
		}
		return &Element{
			Space:    v.Space,
			Name:     v.Name,
			Attrs:    CloneAttrs(v.Attrs),
			Children: CloneAll(v.Children),
		}
	default:
		panic(fmt.Sprintf("tree: unknown node type %T", n))
	}
}

// CloneAll deep-copies a sequence of nodes.
func CloneAll(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = Clone(n)
	}
	return out
}

// Equal reports whether a and b are structurally equal. Nil and empty
// attribute or child slices compare equal.
func Equal(a, b Node) bool {
	switch x := a.(type) {
	case Text:
		y, ok := b.(Text)
		return ok && x == y
	case Comment:
		y, ok := b.(Comment)
		return ok && x == y
	case ProcInst:
		y, ok := b.(ProcInst)
		return ok && x == y
	case Directive:
		y, ok := b.(Directive)
		return ok && x.Data == y.Data && attrsEqual(x.Attrs, y.Attrs)
	case *Element:
		y, ok := b.(*Element)
		if !ok {
			return false
		}
		if x == nil || y == nil {
			return x == y
		}
		return x.Space == y.Space &&
			x.Name == y.Name &&
			attrsEqual(x.Attrs, y.Attrs) &&
			EqualAll(x.Children, y.Children)
	case nil:
		return b == nil
	default:
		panic(fmt.Sprintf("tree: unknown node type %T", a))
	}
}

// EqualAll reports whether two node sequences are structurally equal.
func EqualAll(a, b []Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func attrsEqual(a, b []Attr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
