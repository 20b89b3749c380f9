// Package export renders cover letters as plain text or Markdown documents
// and writes them to the export directory.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/jedib0t/go-pretty/v6/text"
)

// Format selects the document flavour.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
)

const (
	defaultName     = "Applicant Name"
	defaultEmail    = "applicant@email.com"
	defaultWrapText = 80
	dateLayout      = "January 2, 2006"
)

// ParseFormat normalizes a format name. Empty means text.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s", value)
	}
}

// Extension returns the file extension for f, including the dot.
func (f Format) Extension() string {
	if f == FormatMarkdown {
		return ".md"
	}
	return ".txt"
}

// Metadata describes the letter being exported.
type Metadata struct {
	Company      string `json:"company"`
	Position     string `json:"position"`
	UserName     string `json:"userName,omitempty"`
	UserEmail    string `json:"userEmail,omitempty"`
	TemplateName string `json:"templateName,omitempty"`
	// Header and Footer replace the default blocks when set.
	Header string `json:"customHeader,omitempty"`
	Footer string `json:"customFooter,omitempty"`
}

// Style controls layout.
type Style struct {
	Format Format `json:"format,omitempty"`
	// LineWidth soft-wraps paragraphs. Zero uses 80 columns for text and no
	// wrapping for Markdown; negative disables wrapping.
	LineWidth int `json:"lineWidth,omitempty"`
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithClock overrides the time source used for dates and filenames.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

// Exporter writes rendered letters into a directory.
type Exporter struct {
	dir string
	now func() time.Time
}

// New returns an Exporter writing into dir.
func New(dir string, opts ...Option) *Exporter {
	e := &Exporter{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dir returns the export directory.
func (e *Exporter) Dir() string {
	return e.dir
}

// Render returns the document text without writing it.
func (e *Exporter) Render(content string, meta Metadata, style Style) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("content is required")
	}
	if style.Format == "" {
		style.Format = FormatText
	}
	if _, err := ParseFormat(string(style.Format)); err != nil {
		return "", err
	}

	width := style.LineWidth
	if width == 0 && style.Format == FormatText {
		width = defaultWrapText
	}

	now := e.now()
	var b strings.Builder
	if style.Format == FormatMarkdown {
		writeMarkdown(&b, content, meta, now, width)
	} else {
		writeText(&b, content, meta, now, width)
	}
	return b.String(), nil
}

// RenderToFile renders the letter and writes it as
// cover-letter-<company>-<unix millis>.<ext>, returning the file path.
func (e *Exporter) RenderToFile(content string, meta Metadata, style Style) (string, error) {
	doc, err := e.Render(content, meta, style)
	if err != nil {
		return "", err
	}
	if style.Format == "" {
		style.Format = FormatText
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	path := filepath.Join(e.dir, e.Filename(meta.Company, style.Format))
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}

// Filename builds the export filename for company at the current time.
func (e *Exporter) Filename(company string, format Format) string {
	return Filename(company, format, e.now())
}

// Filename builds the export filename for company at t.
func Filename(company string, format Format, t time.Time) string {
	return fmt.Sprintf("cover-letter-%s-%d%s", Slug(company), t.UnixMilli(), format.Extension())
}

// Slug lowercases s and joins its words with hyphens. Characters other than
// letters and digits are dropped.
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '_':
			dash = true
		}
	}
	if b.Len() == 0 {
		return "company"
	}
	return b.String()
}

func writeText(b *strings.Builder, content string, meta Metadata, now time.Time, width int) {
	if header := strings.TrimSpace(meta.Header); header != "" {
		b.WriteString(header + "\n\n")
	} else {
		b.WriteString(orDefault(meta.UserName, defaultName) + "\n")
		b.WriteString(orDefault(meta.UserEmail, defaultEmail) + "\n\n")
		b.WriteString(strings.TrimSpace(meta.Company) + "\n")
		b.WriteString("Re: " + strings.TrimSpace(meta.Position) + " Position\n")
		b.WriteString(now.Format(dateLayout) + "\n\n")
	}

	b.WriteString(strings.Join(paragraphs(content, width), "\n\n"))
	b.WriteString("\n\n")

	if footer := strings.TrimSpace(meta.Footer); footer != "" {
		b.WriteString(footer + "\n")
		return
	}
	b.WriteString("Sincerely,\n\n")
	b.WriteString(orDefault(meta.UserName, defaultName) + "\n")
}

func writeMarkdown(b *strings.Builder, content string, meta Metadata, now time.Time, width int) {
	if header := strings.TrimSpace(meta.Header); header != "" {
		b.WriteString(header + "\n\n")
	} else {
		fmt.Fprintf(b, "# Cover Letter: %s at %s\n\n", escapeMarkdown(meta.Position), escapeMarkdown(meta.Company))
		fmt.Fprintf(b, "**%s**  \n", escapeMarkdown(orDefault(meta.UserName, defaultName)))
		fmt.Fprintf(b, "%s  \n", escapeMarkdown(orDefault(meta.UserEmail, defaultEmail)))
		fmt.Fprintf(b, "%s\n\n", now.Format(dateLayout))
		if name := strings.TrimSpace(meta.TemplateName); name != "" {
			fmt.Fprintf(b, "_Template: %s_\n\n", escapeMarkdown(name))
		}
		b.WriteString("---\n\n")
	}

	b.WriteString(strings.Join(paragraphs(content, width), "\n\n"))
	b.WriteString("\n\n")

	if footer := strings.TrimSpace(meta.Footer); footer != "" {
		b.WriteString("---\n\n" + footer + "\n")
		return
	}
	b.WriteString("Sincerely,\n\n")
	b.WriteString(escapeMarkdown(orDefault(meta.UserName, defaultName)) + "\n")
}

// paragraphs splits content on blank lines, trims each paragraph and soft
// wraps it when width is positive.
func paragraphs(content string, width int) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	raw := strings.Split(content, "\n\n")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if width > 0 {
			p = wrapLines(p, width)
		}
		out = append(out, p)
	}
	return out
}

func wrapLines(paragraph string, width int) string {
	lines := strings.Split(paragraph, "\n")
	for i, line := range lines {
		lines[i] = text.WrapSoft(strings.TrimSpace(line), width)
	}
	return strings.Join(lines, "\n")
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

var markdownEscaper = strings.NewReplacer("*", "\\*", "_", "\\_", "#", "\\#", "|", "\\|")

func escapeMarkdown(value string) string {
	return markdownEscaper.Replace(strings.TrimSpace(value))
}
