package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCSV(t *testing.T) {
	path := writeFile(t, "people.csv", "name,age\nAda, 36\nLinus,54\n")

	text, err := NewExtensionLoader().Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "name age\nAda 36\nLinus 54", text)
}

func TestLoadHTMLDropsScripts(t *testing.T) {
	path := writeFile(t, "page.html", `<html><head><style>p{color:red}</style><script>var x = 1;</script></head>
<body><h1>Title</h1><p>Body text</p></body></html>`)

	text, err := NewExtensionLoader().Load(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, text, "Title")
	assert.Contains(t, text, "Body text")
	assert.NotContains(t, text, "var x")
	assert.NotContains(t, text, "color:red")
}

func TestLoadTextTrims(t *testing.T) {
	path := writeFile(t, "notes.TXT", "\n  hello  \n")

	text, err := NewExtensionLoader().Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestCheckNamesExtension(t *testing.T) {
	err := NewExtensionLoader().Check("/tmp/archive.zip")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.True(t, strings.Contains(err.Error(), `".zip"`))

	err = NewExtensionLoader().Check("/tmp/README")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
