// Package rewrite replaces every element matching a selector with a copy of
// a replacement node.
//
// The engine is a pure function of its inputs: the input forest is never
// modified and the output shares no mutable state with it or with the
// replacement. A matched element is excised together with its subtree; its
// children are not searched. Every other element is rebuilt with rewritten
// children, so matches at any depth are found.
//
// Traversal uses an explicit stack of frames rather than recursion, so very
// deep documents cost heap, not goroutine stack.
package rewrite

import (
	"fmt"

	"headswap/pkg/selector"
	"headswap/pkg/tree"
)

// frame holds one sibling sequence being rebuilt. out grows in lockstep with
// src, so len(out) is the index of the next source node to visit.
type frame struct {
	src []tree.Node
	out []tree.Node
	// elem is the source element whose children are src; nil for the
	// document level.
	elem *tree.Element
}

// Rewrite returns a copy of nodes in which every element matching sel is
// replaced by an independent deep copy of replacement.
func Rewrite(nodes []tree.Node, sel selector.Selector, replacement tree.Node) []tree.Node {
	out, _ := Apply(nodes, sel, replacement)
	return out
}

// Apply is Rewrite that also reports how many elements were replaced.
func Apply(nodes []tree.Node, sel selector.Selector, replacement tree.Node) ([]tree.Node, int) {
	replaced := 0
	stack := []*frame{newFrame(nodes, nil)}

	for {
		top := stack[len(stack)-1]

		if len(top.out) == len(top.src) {
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return top.out, replaced
			}
			parent := stack[len(stack)-1]
			parent.out = append(parent.out, &tree.Element{
				Space:    top.elem.Space,
				Name:     top.elem.Name,
				Attrs:    tree.CloneAttrs(top.elem.Attrs),
				Children: top.out,
			})
			continue
		}

		switch n := top.src[len(top.out)].(type) {
		case *tree.Element:
			if n == nil {
				top.out = append(top.out, n)
				continue
			}
			if sel.Match(n) {
				top.out = append(top.out, tree.Clone(replacement))
				replaced++
				continue
			}
			stack = append(stack, newFrame(n.Children, n))
		case tree.Text, tree.Comment, tree.Directive, tree.ProcInst:
			top.out = append(top.out, tree.Clone(n))
		default:
			panic(fmt.Sprintf("rewrite: unknown node type %T", n))
		}
	}
}

func newFrame(src []tree.Node, elem *tree.Element) *frame {
	f := &frame{src: src, elem: elem}
	if src != nil {
		f.out = make([]tree.Node, 0, len(src))
	}
	return f
}

// Count returns the number of elements Rewrite would replace. Descendants
// of a match are not counted.
func Count(nodes []tree.Node, sel selector.Selector) int {
	count := 0
	work := [][]tree.Node{nodes}

	for len(work) > 0 {
		siblings := work[len(work)-1]
		work = work[:len(work)-1]

		for _, n := range siblings {
			el, ok := tree.AsElement(n)
			if !ok {
				continue
			}
			if sel.Match(el) {
				count++
				continue
			}
			if len(el.Children) > 0 {
				work = append(work, el.Children)
			}
		}
	}

	return count
}
