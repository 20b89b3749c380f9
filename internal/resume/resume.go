// Package resume turns uploaded resume files into plain text.
package resume

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// MaxUploadBytes is the largest accepted resume file.
const MaxUploadBytes = 5 << 20

// AllowedExtensions lists the accepted resume file extensions.
var AllowedExtensions = []string{".pdf", ".doc", ".docx", ".txt", ".md"}

// UnreadableDocumentError reports a resume that cannot be turned into text.
type UnreadableDocumentError struct {
	Filename string
	Reason   string
	Err      error
}

func (e *UnreadableDocumentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unreadable document %q: %s: %v", e.Filename, e.Reason, e.Err)
	}
	return fmt.Sprintf("unreadable document %q: %s", e.Filename, e.Reason)
}

func (e *UnreadableDocumentError) Unwrap() error { return e.Err }

// Allowed reports whether filename has an accepted extension.
func Allowed(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// Extract returns the text of a resume file. Every failure is an
// *UnreadableDocumentError.
func Extract(filename string, data []byte) (string, error) {
	unreadable := func(reason string, err error) error {
		return &UnreadableDocumentError{Filename: filename, Reason: reason, Err: err}
	}

	if !Allowed(filename) {
		return "", unreadable("unsupported file type, expected one of "+strings.Join(AllowedExtensions, " "), nil)
	}
	if len(data) == 0 {
		return "", unreadable("file is empty", nil)
	}
	if len(data) > MaxUploadBytes {
		return "", unreadable(fmt.Sprintf("file exceeds %d MB", MaxUploadBytes>>20), nil)
	}

	var (
		text string
		err  error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		text, err = extractPDF(data)
	case ".docx":
		text, err = extractOffice(filename, data)
	default:
		text, err = plainText(data)
	}
	if err != nil {
		return "", unreadable("text extraction failed", err)
	}

	text = normalize(text)
	if text == "" {
		return "", unreadable("no text found", nil)
	}
	return text, nil
}

func plainText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if bytes.IndexByte(data, 0) >= 0 || !utf8.Valid(data) {
		return "", fmt.Errorf("content is not plain text")
	}
	return string(data), nil
}

// normalize unifies line endings and drops runs of blank lines.
func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
