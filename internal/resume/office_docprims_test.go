//go:build docprims

package resume

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractorVersion(t *testing.T) {
	require.Contains(t, ExtractorVersion(), ".")
}

func TestExtractInvalidDocx(t *testing.T) {
	_, err := Extract("resume.docx", []byte("not a valid docx"))
	var uerr *UnreadableDocumentError
	require.True(t, errors.As(err, &uerr))
}

func TestParseDocprimsText(t *testing.T) {
	text, err := parseDocprimsText([]byte(`{"document":{"text":"Jane Doe","quality":{"status":"ok"}}}`))
	require.NoError(t, err)
	require.Equal(t, "Jane Doe", text)

	_, err = parseDocprimsText([]byte("{"))
	require.Error(t, err)
}
