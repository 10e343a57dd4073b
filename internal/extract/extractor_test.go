package extract

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSupported(t *testing.T) {
	e := New()
	require.True(t, e.Supported("text/plain"))
	require.True(t, e.Supported("text/plain; charset=utf-8"))
	require.True(t, e.Supported("text/markdown"))
	require.True(t, e.Supported("application/pdf"))
	require.True(t, e.Supported(MimeDocx))
	require.False(t, e.Supported("image/png"))
	require.False(t, e.Supported("application/octet-stream"))
}

func TestExtractPlainText(t *testing.T) {
	e := New()
	text, err := e.ExtractText([]byte("  Quarterly revenue grew 14% year over year.  "), "text/plain")
	require.NoError(t, err)
	require.Equal(t, "Quarterly revenue grew 14% year over year.", text)
}

func TestExtractRejectsShortText(t *testing.T) {
	e := New()
	_, err := e.ExtractText([]byte("hi"), "text/plain")
	require.Error(t, err)
	require.Contains(t, err.Error(), "too short")
}

func TestExtractRejectsBinaryGarbage(t *testing.T) {
	e := New()
	garbage := make([]byte, 0, 100)
	for i := 0; i < 50; i++ {
		garbage = append(garbage, 0x01, 'a')
	}
	_, err := e.ExtractText(garbage, "text/plain")
	require.Error(t, err)
}

func TestExtractRejectsUnsupportedMime(t *testing.T) {
	e := New()
	_, err := e.ExtractText([]byte("some perfectly fine text content"), "image/png")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported mime type")
}

func TestExtractDocx(t *testing.T) {
	body := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph of the policy.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second paragraph with </w:t></w:r><w:r><w:t>two runs.</w:t></w:r></w:p>
  </w:body>
</w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	e := New()
	text, err := e.ExtractText(buf.Bytes(), MimeDocx)
	require.NoError(t, err)
	require.Contains(t, text, "First paragraph of the policy.")
	require.Contains(t, text, "Second paragraph with two runs.")
	lines := strings.Split(text, "\n")
	require.Len(t, lines, 2)
}

func TestExtractDocxMissingBody(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/styles.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte("<styles/>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	e := New()
	_, err = e.ExtractText(buf.Bytes(), MimeDocx)
	require.Error(t, err)
}
