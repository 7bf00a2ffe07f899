// This file contains the per-document pipeline: decode, parse, rewrite,
// serialize and re-encode. It is independent of the filesystem so it can be
// driven by the batch runner or called directly.
package batch

import (
	"errors"
	"fmt"

	"headswap/internal/hserrors"
	"headswap/internal/markup"
	"headswap/pkg/rewrite"
	"headswap/pkg/selector"
	"headswap/pkg/tree"
)

// Transform rewrites one document. It returns the re-encoded output and the
// number of replaced elements. When nothing matched, out is nil and the
// document should be left as it is.
func Transform(data []byte, f markup.Format, sel selector.Selector, replacement tree.Node) (out []byte, matches int, err error) {
	codec, err := markup.CodecFor(f)
	if err != nil {
		return nil, 0, err
	}

	utf8, cs, err := markup.Decode(f, data)
	if err != nil {
		return nil, 0, err
	}

	nodes, err := codec.Parse(utf8)
	if err != nil {
		return nil, 0, err
	}

	rewritten, matches := rewrite.Apply(nodes, sel, replacement)
	if matches == 0 {
		return nil, 0, nil
	}

	rendered, err := codec.Serialize(rewritten)
	if err != nil {
		return nil, matches, err
	}

	out, err = cs.Retarget(f, rendered).Encode(rendered)
	if err != nil {
		return nil, matches, err
	}
	return out, matches, nil
}

// withPath attaches path to a ParseError raised without one.
func withPath(err error, path string) error {
	var pe *hserrors.ParseError
	if errors.As(err, &pe) && pe.Path == "" {
		pe.Path = path
		return err
	}
	return fmt.Errorf("%s: %w", path, err)
}
