// Package selector decides whether an element should be replaced.
//
// The minimal selector is Tag, an exact and case-sensitive tag-name match.
// Parse additionally understands simple compound selectors built from a tag,
// an #id, .class names and [attr] or [attr=val] predicates, e.g.
// "meta[name=viewport]" or "div.note#main". Descendant combinators and
// wildcards are not supported.
package selector

import (
	"fmt"
	"slices"
	"strings"

	"headswap/pkg/tree"
)

// Selector is an immutable element predicate. Implementations must not
// depend on the element's position in the tree.
type Selector interface {
	Match(el *tree.Element) bool
	String() string
}

// Match reports whether n is an element satisfying sel. Non-element nodes
// never match.
func Match(sel Selector, n tree.Node) bool {
	el, ok := tree.AsElement(n)
	return ok && sel.Match(el)
}

// Tag matches elements whose name equals the tag exactly.
type Tag string

func (t Tag) Match(el *tree.Element) bool {
	return el.Name == string(t)
}

func (t Tag) String() string {
	return string(t)
}

// AttrPredicate requires an attribute to be present and, when HasValue is
// set, to equal Value.
type AttrPredicate struct {
	Key      string
	Value    string
	HasValue bool
}

// Compound matches when every non-empty part matches.
type Compound struct {
	Tag     string
	ID      string
	Classes []string
	Attrs   []AttrPredicate
}

func (c Compound) Match(el *tree.Element) bool {
	if c.Tag != "" && el.Name != c.Tag {
		return false
	}

	if c.ID != "" {
		if id, _ := el.Attr("id"); id != c.ID {
			return false
		}
	}

	if len(c.Classes) > 0 {
		classAttr, _ := el.Attr("class")
		classes := strings.Fields(classAttr)
		for _, want := range c.Classes {
			if !slices.Contains(classes, want) {
				return false
			}
		}
	}

	for _, p := range c.Attrs {
		val, ok := el.Attr(p.Key)
		if !ok {
			return false
		}
		if p.HasValue && val != p.Value {
			return false
		}
	}

	return true
}

func (c Compound) String() string {
	var b strings.Builder
	b.WriteString(c.Tag)
	if c.ID != "" {
		b.WriteString("#" + c.ID)
	}
	for _, cls := range c.Classes {
		b.WriteString("." + cls)
	}
	for _, p := range c.Attrs {
		b.WriteString("[" + p.Key)
		if p.HasValue {
			b.WriteString(`="` + p.Value + `"`)
		}
		b.WriteString("]")
	}
	return b.String()
}

// Parse parses a selector expression. A bare tag name yields a Tag.
func Parse(expr string) (Selector, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty selector")
	}
	if strings.ContainsAny(expr, " \t\n>+~,*") {
		return nil, fmt.Errorf("unsupported selector %q: only simple tag, id, class and attribute selectors are allowed", expr)
	}

	var c Compound
	rest := expr

	// Attribute predicates come last: tag#id.class[attr=val][attr2]
	if idx := strings.IndexByte(rest, '['); idx >= 0 {
		attrs, err := parseAttrPredicates(rest[idx:])
		if err != nil {
			return nil, fmt.Errorf("invalid selector %q: %w", expr, err)
		}
		c.Attrs = attrs
		rest = rest[:idx]
	}

	// Split on '#' and '.', keeping the marker with each part.
	for len(rest) > 0 {
		end := strings.IndexAny(rest[1:], "#.")
		var part string
		if end < 0 {
			part, rest = rest, ""
		} else {
			part, rest = rest[:end+1], rest[end+1:]
		}

		switch part[0] {
		case '#':
			if len(part) == 1 {
				return nil, fmt.Errorf("invalid selector %q: empty id", expr)
			}
			if c.ID != "" {
				return nil, fmt.Errorf("invalid selector %q: more than one id", expr)
			}
			c.ID = part[1:]
		case '.':
			if len(part) == 1 {
				return nil, fmt.Errorf("invalid selector %q: empty class", expr)
			}
			c.Classes = append(c.Classes, part[1:])
		default:
			if c.Tag != "" || c.ID != "" || len(c.Classes) > 0 {
				return nil, fmt.Errorf("invalid selector %q: tag name must come first", expr)
			}
			c.Tag = part
		}
	}

	if c.ID == "" && len(c.Classes) == 0 && len(c.Attrs) == 0 {
		return Tag(c.Tag), nil
	}
	return c, nil
}

func parseAttrPredicates(s string) ([]AttrPredicate, error) {
	var preds []AttrPredicate
	for len(s) > 0 {
		if s[0] != '[' {
			return nil, fmt.Errorf("unexpected %q after attribute predicate", s)
		}
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return nil, fmt.Errorf("unterminated attribute predicate")
		}
		body := s[1:end]
		s = s[end+1:]

		var p AttrPredicate
		if eq := strings.IndexByte(body, '='); eq >= 0 {
			p.Key = body[:eq]
			p.Value = strings.Trim(body[eq+1:], `"'`)
			p.HasValue = true
		} else {
			p.Key = body
		}
		if p.Key == "" {
			return nil, fmt.Errorf("empty attribute name")
		}
		preds = append(preds, p)
	}
	return preds, nil
}
