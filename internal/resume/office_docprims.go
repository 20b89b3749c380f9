//go:build docprims

package resume

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/3leaps/docprims/bindings/go/docprims"
)

func extractOffice(filename string, data []byte) (string, error) {
	// docprims detects the format from the URI extension.
	uri := fmt.Sprintf("mem://%s", filepath.Base(filename))

	opts := &docprims.Options{
		Limits: &docprims.Limits{
			MaxInputBytes:  MaxUploadBytes,
			MaxOutputBytes: 2 * 1024 * 1024,
			MaxBlocks:      5000,
		},
	}

	result, err := docprims.ExtractBytes(uri, data, opts)
	if err != nil {
		return "", fmt.Errorf("docprims extraction failed: %w", err)
	}
	return parseDocprimsText(result)
}

type docprimsResult struct {
	Document struct {
		Text    string `json:"text"`
		Quality struct {
			Status string `json:"status"`
			Reason string `json:"reason,omitempty"`
		} `json:"quality"`
	} `json:"document"`
}

func parseDocprimsText(jsonData []byte) (string, error) {
	var result docprimsResult
	if err := json.Unmarshal(jsonData, &result); err != nil {
		return "", fmt.Errorf("parsing docprims output: %w", err)
	}
	return result.Document.Text, nil
}

// ExtractorVersion returns the docprims version.
func ExtractorVersion() string {
	return docprims.Version()
}
