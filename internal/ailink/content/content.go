package content

import "strings"

// ContentType represents supported content types using IANA media types.
type ContentType string

const (
	ContentTypeText ContentType = "text/plain"
	ContentTypeJSON ContentType = "application/json"
)

// ContentBlock represents a single piece of content.
type ContentBlock struct {
	Type ContentType `json:"type"`
	Text string      `json:"text,omitempty"`
}

// Message represents a chat message.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// PlainText concatenates the text blocks of a message.
func (m Message) PlainText() string {
	parts := make([]string, 0, len(m.Content))
	for _, block := range m.Content {
		parts = append(parts, block.Text)
	}
	return strings.Join(parts, "\n")
}
