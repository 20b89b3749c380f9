// Package core holds the records persisted by the store.
package core

import "time"

// DefaultHistoryLimit is the number of cover letters returned by history.
const DefaultHistoryLimit = 10

// CoverLetter is a generated letter kept in history.
type CoverLetter struct {
	ID         int64     `json:"id"`
	Company    string    `json:"company"`
	Position   string    `json:"position"`
	Content    string    `json:"content"`
	TemplateID string    `json:"templateId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// CustomTemplate is a user-defined cover letter template. Structure uses the
// same {placeholder} slots as the built-in templates.
type CustomTemplate struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Structure   string    `json:"structure"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Preferences are the single user's saved defaults.
type Preferences struct {
	Name                string    `json:"name,omitempty"`
	Email               string    `json:"email,omitempty"`
	DefaultTemplate     string    `json:"defaultTemplate,omitempty"`
	PreferredCreativity int       `json:"preferredCreativity,omitempty"`
	UpdatedAt           time.Time `json:"updatedAt"`
}
