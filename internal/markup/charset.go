package markup

import (
	"bytes"
	"fmt"
	"regexp"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"

	"headswap/internal/hserrors"
)

var (
	utf8BOM = []byte{0xEF, 0xBB, 0xBF}

	xmlEncodingDecl = regexp.MustCompile(`^\s*<\?xml[^>]*?\sencoding\s*=\s*["']([A-Za-z0-9._:-]+)["']`)
	htmlMetaCharset = regexp.MustCompile(`(?is)<meta[^>]*charset`)
)

// prescanLen matches the window the HTML encoding sniffing algorithm scans
// for <meta> declarations.
const prescanLen = 1024

// Charset records how a document was encoded so the rewritten output can be
// written back the same way.
type Charset struct {
	// Name is the canonical encoding name, e.g. "utf-8" or "windows-1252".
	Name string
	// BOM is set when the input started with a UTF-8 byte order mark.
	BOM bool

	enc encoding.Encoding // nil for UTF-8
}

// UTF8 is the charset of plain UTF-8 input without a byte order mark.
var UTF8 = Charset{Name: "utf-8"}

// Decode converts data to UTF-8. HTML encodings are sniffed from the byte
// order mark, <meta> declarations and content heuristics; XML encodings are
// taken from the XML declaration and default to UTF-8.
func Decode(f Format, data []byte) ([]byte, Charset, error) {
	if bytes.HasPrefix(data, utf8BOM) {
		return data[len(utf8BOM):], Charset{Name: "utf-8", BOM: true}, nil
	}

	var (
		enc  encoding.Encoding
		name string
	)
	switch f {
	case FormatXML:
		m := xmlEncodingDecl.FindSubmatch(data)
		if m == nil {
			return data, UTF8, nil
		}
		enc, name = charset.Lookup(string(m[1]))
		if enc == nil {
			return nil, Charset{}, &hserrors.ParseError{Message: fmt.Sprintf("unsupported encoding %q", m[1])}
		}
	default:
		var certain bool
		enc, name, certain = charset.DetermineEncoding(data, "text/html")
		// Sniffing only sees the first 1024 bytes. An undeclared document
		// that is valid UTF-8 throughout is UTF-8.
		if !certain && !declaresCharset(data) && utf8.Valid(data) {
			return data, UTF8, nil
		}
	}

	if name == "utf-8" {
		return data, UTF8, nil
	}

	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return nil, Charset{}, &hserrors.ParseError{Message: "failed to decode " + name, Cause: err}
	}
	return decoded, Charset{Name: name, enc: enc}, nil
}

// Encode converts UTF-8 output back to the charset. Runes the charset cannot
// represent are written as numeric character references.
func (c Charset) Encode(utf8 []byte) ([]byte, error) {
	out := utf8
	if c.enc != nil {
		var err error
		out, err = encoding.HTMLEscapeUnsupported(c.enc.NewEncoder()).Bytes(utf8)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", c.Name, err)
		}
	}
	if c.BOM {
		out = append(append(make([]byte, 0, len(utf8BOM)+len(out)), utf8BOM...), out...)
	}
	return out, nil
}

// Retarget returns the charset the rewritten document must be written in.
// out is the serialized UTF-8 output. An encoding declared in out (a <meta>
// charset for HTML, the XML declaration for XML) takes precedence over the
// input charset c. A BOM is kept only while the output stays UTF-8.
func (c Charset) Retarget(f Format, out []byte) Charset {
	var (
		enc  encoding.Encoding
		name string
	)
	switch f {
	case FormatXML:
		m := xmlEncodingDecl.FindSubmatch(out)
		if m == nil {
			return Charset{Name: "utf-8", BOM: c.BOM}
		}
		enc, name = charset.Lookup(string(m[1]))
	default:
		if !declaresCharset(out) {
			return c
		}
		enc, name, _ = charset.DetermineEncoding(out, "text/html")
	}

	if enc == nil {
		return c
	}
	if name == "utf-8" {
		return Charset{Name: name, BOM: c.BOM}
	}
	// A UTF-8 byte order mark never precedes legacy bytes.
	return Charset{Name: name, enc: enc}
}

// declaresCharset reports whether an HTML <meta> in the prescan window
// names a charset.
func declaresCharset(data []byte) bool {
	return htmlMetaCharset.Match(data[:min(len(data), prescanLen)])
}
