// Package markup converts between raw document bytes and the tree model.
//
// HTML is parsed and rendered with golang.org/x/net/html, XML and XHTML
// with github.com/beevik/etree. Both codecs work on UTF-8; Decode and
// Charset.Encode move documents in and out of their original encoding.
package markup

import (
	"fmt"
	"path/filepath"
	"strings"

	"headswap/pkg/tree"
)

// Format identifies which codec handles a document.
type Format int

const (
	// FormatAuto picks a codec from the file extension.
	FormatAuto Format = iota
	FormatHTML
	FormatXML
)

var xmlExtensions = []string{".xml", ".xhtml", ".xht"}

func (f Format) String() string {
	switch f {
	case FormatAuto:
		return "auto"
	case FormatHTML:
		return "html"
	case FormatXML:
		return "xml"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ParseFormat parses "auto", "html" or "xml". The empty string means auto.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "html":
		return FormatHTML, nil
	case "xml":
		return FormatXML, nil
	default:
		return FormatAuto, fmt.Errorf("unknown format '%s', must be one of: auto, html, xml", s)
	}
}

// FormatFor returns forced unless it is FormatAuto, in which case the format
// is derived from the path's extension.
func FormatFor(path string, forced Format) Format {
	if forced != FormatAuto {
		return forced
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, x := range xmlExtensions {
		if ext == x {
			return FormatXML
		}
	}
	return FormatHTML
}

// Codec parses UTF-8 markup into a forest and serializes it back.
type Codec interface {
	// Parse parses a complete document.
	Parse(data []byte) ([]tree.Node, error)
	// ParseFragment parses a standalone fragment such as a header file.
	ParseFragment(data []byte) ([]tree.Node, error)
	// Serialize renders a forest as UTF-8 markup.
	Serialize(nodes []tree.Node) ([]byte, error)
}

// CodecFor returns the codec for a concrete format.
func CodecFor(f Format) (Codec, error) {
	switch f {
	case FormatHTML:
		return HTML{}, nil
	case FormatXML:
		return XML{}, nil
	default:
		return nil, fmt.Errorf("no codec for format %s", f)
	}
}
