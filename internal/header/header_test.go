package header

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"headswap/internal/hserrors"
	"headswap/internal/markup"
	"headswap/pkg/selector"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		format      markup.Format
		fragment    string
		expectError bool
		children    int
	}{
		{
			name:     "html head",
			format:   markup.FormatHTML,
			fragment: "<head>\n<meta charset=\"utf-8\">\n<title>Site</title>\n</head>\n",
			children: 5,
		},
		{
			name:     "html head with leading comment",
			format:   markup.FormatHTML,
			fragment: "<!-- canonical header --><head><title>Site</title></head>",
			children: 1,
		},
		{
			name:        "html element is not head",
			format:      markup.FormatHTML,
			fragment:    "<div>nope</div>",
			expectError: true,
		},
		{
			name:        "html trailing body content",
			format:      markup.FormatHTML,
			fragment:    "<head><title>x</title></head><p>body text</p>",
			expectError: true,
		},
		{
			name:        "only text",
			format:      markup.FormatHTML,
			fragment:    "just text",
			expectError: true,
		},
		{
			name:        "empty",
			format:      markup.FormatHTML,
			fragment:    "   ",
			expectError: true,
		},
		{
			name:     "xml head",
			format:   markup.FormatXML,
			fragment: "<?xml version=\"1.0\"?>\n<head><title>x</title></head>",
			children: 1,
		},
		{
			name:        "xml wrong root",
			format:      markup.FormatXML,
			fragment:    "<header/>",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el, err := Parse([]byte(tt.fragment), tt.format, selector.Tag("head"))
			if tt.expectError {
				require.Error(t, err)
				assert.True(t, errors.Is(err, hserrors.ErrConfig), "expected a configuration error, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "head", el.Name)
			assert.Len(t, el.Children, tt.children)
		})
	}
}

func TestParseStrayTextMessage(t *testing.T) {
	fragment := "<title>x</title>" + strings.Repeat("é", 40)

	_, err := Parse([]byte(fragment), markup.FormatHTML, selector.Tag("title"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, hserrors.ErrConfig))
	assert.True(t, utf8.ValidString(err.Error()), "message is not valid UTF-8: %q", err.Error())
	assert.Contains(t, err.Error(), strings.Repeat("é", 32)+"...")
}

func TestAbbreviate(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  short  ", "short"},
		{strings.Repeat("a", 32), strings.Repeat("a", 32)},
		{strings.Repeat("a", 33), strings.Repeat("a", 32) + "..."},
		{strings.Repeat("日", 33), strings.Repeat("日", 32) + "..."},
		{"a" + strings.Repeat("é", 40), "a" + strings.Repeat("é", 31) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := abbreviate(tt.input)
			assert.Equal(t, tt.expected, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestParseMalformedXML(t *testing.T) {
	_, err := Parse([]byte("<head><title></head>"), markup.FormatXML, selector.Tag("head"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, hserrors.ErrParse))
}

func TestParseCompoundSelector(t *testing.T) {
	sel, err := selector.Parse("meta[name=viewport]")
	require.NoError(t, err)

	el, err := Parse([]byte(`<meta name="viewport" content="width=device-width">`), markup.FormatHTML, sel)
	require.NoError(t, err)
	assert.Equal(t, "meta", el.Name)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "header.html")
	require.NoError(t, os.WriteFile(path, []byte("<head><title>ok</title></head>"), 0o644))

	el, err := Load(path, markup.FormatHTML, selector.Tag("head"))
	require.NoError(t, err)
	assert.Equal(t, "head", el.Name)

	_, err = Load(filepath.Join(dir, "missing.html"), markup.FormatHTML, selector.Tag("head"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, hserrors.ErrIO))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
