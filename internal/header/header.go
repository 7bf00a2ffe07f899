// Package header loads the replacement fragment and checks that it can be
// spliced in where the selector matches.
package header

import (
	"fmt"
	"os"
	"strings"

	"headswap/internal/hserrors"
	"headswap/internal/markup"
	"headswap/pkg/selector"
	"headswap/pkg/tree"
)

// Read reads the raw fragment file.
func Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &hserrors.IOError{Op: "read header", Path: path, Cause: err}
	}
	return data, nil
}

// Parse decodes and parses raw fragment bytes with the codec for f and
// returns the single element they contain. The element must satisfy sel.
// Whitespace, comments and declarations around it are ignored; so is the
// empty <body> the HTML parser implies after a lone <head>.
func Parse(data []byte, f markup.Format, sel selector.Selector) (*tree.Element, error) {
	codec, err := markup.CodecFor(f)
	if err != nil {
		return nil, &hserrors.ConfigError{Field: "format", Cause: err}
	}

	utf8, _, err := markup.Decode(f, data)
	if err != nil {
		return nil, err
	}

	nodes, err := codec.ParseFragment(utf8)
	if err != nil {
		return nil, err
	}

	return pick(nodes, sel)
}

// Load reads and parses the fragment at path.
func Load(path string, f markup.Format, sel selector.Selector) (*tree.Element, error) {
	data, err := Read(path)
	if err != nil {
		return nil, err
	}
	el, err := Parse(data, f, sel)
	if err != nil {
		return nil, fmt.Errorf("header %s: %w", path, err)
	}
	return el, nil
}

func pick(nodes []tree.Node, sel selector.Selector) (*tree.Element, error) {
	var found *tree.Element

	for _, n := range nodes {
		switch v := n.(type) {
		case tree.Text:
			if strings.TrimSpace(v.Data) != "" {
				return nil, &hserrors.ConfigError{
					Field:   "header_file",
					Message: fmt.Sprintf("unexpected text %q outside the header element", abbreviate(v.Data)),
				}
			}
		case tree.Comment, tree.Directive, tree.ProcInst:
		case *tree.Element:
			if found == nil {
				if !sel.Match(v) {
					return nil, &hserrors.ConfigError{
						Field:   "header_file",
						Message: fmt.Sprintf("element <%s> does not match selector %q", v.Name, sel.String()),
					}
				}
				found = v
				continue
			}
			if v.Name == "body" && len(v.Children) == 0 && len(v.Attrs) == 0 {
				continue
			}
			return nil, &hserrors.ConfigError{
				Field:   "header_file",
				Message: fmt.Sprintf("fragment must contain a single element, found extra <%s>", v.Name),
			}
		default:
			panic(fmt.Sprintf("header: unknown node type %T", n))
		}
	}

	if found == nil {
		return nil, &hserrors.ConfigError{Field: "header_file", Message: "fragment contains no element"}
	}
	return found, nil
}

// abbreviate shortens s to at most 32 runes.
func abbreviate(s string) string {
	s = strings.TrimSpace(s)
	if runes := []rune(s); len(runes) > 32 {
		return string(runes[:32]) + "..."
	}
	return s
}
