package compose

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Section describes a resume section the builder can write.
type Section struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Instruction string `json:"-"`
}

var sections = map[string]Section{
	"summary":    {Type: "summary", Title: "Professional Summary", Instruction: "Write a compelling professional summary highlighting key achievements and expertise"},
	"experience": {Type: "experience", Title: "Work Experience", Instruction: "Format work experience with achievements and measurable results"},
	"education":  {Type: "education", Title: "Education", Instruction: "Format education details professionally"},
	"skills":     {Type: "skills", Title: "Skills", Instruction: "Organize and categorize skills effectively"},
	"projects":   {Type: "projects", Title: "Projects", Instruction: "Highlight key projects with technologies and outcomes"},
}

// DefaultFormat is used when a requested section format is unknown.
const DefaultFormat = "modern"

var formatStyles = map[string]string{
	"modern":      "Clean, minimalist style with clear hierarchy",
	"traditional": "Classic format with standard bullet points",
	"creative":    "Unique layout with visual emphasis",
	"executive":   "Sophisticated style emphasizing leadership",
}

// Sections lists the supported resume sections by type.
func Sections() []Section {
	out := make([]Section, 0, len(sections))
	for _, s := range sections {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

func lookupSection(sectionType string) (Section, error) {
	key := strings.ToLower(strings.TrimSpace(sectionType))
	if key == "" {
		return Section{}, &ValidationError{Field: "sectionType"}
	}
	section, ok := sections[key]
	if !ok {
		return Section{}, &ValidationError{Field: "sectionType", Message: fmt.Sprintf("invalid section type %q", sectionType)}
	}
	return section, nil
}

// SectionResult is a written resume section.
type SectionResult struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// GenerateSection writes a resume section from raw notes.
func (s *Service) GenerateSection(ctx context.Context, sectionType, input string) (*SectionResult, error) {
	const op = "resume_section"
	section, err := lookupSection(sectionType)
	if err != nil {
		return nil, s.invalid(op, err)
	}
	if err := required("input", input); err != nil {
		return nil, s.invalid(op, err)
	}
	text, err := s.generate(ctx, op, "resume-section", map[string]string{
		"section_instruction": section.Instruction,
		"input":               strings.TrimSpace(input),
	})
	if err != nil {
		return nil, err
	}
	return &SectionResult{Title: section.Title, Content: text}, nil
}

// ImproveSection rewrites an existing resume section.
func (s *Service) ImproveSection(ctx context.Context, sectionType, content string) (*SectionResult, error) {
	const op = "improve_section"
	section, err := lookupSection(sectionType)
	if err != nil {
		return nil, s.invalid(op, err)
	}
	if err := required("content", content); err != nil {
		return nil, s.invalid(op, err)
	}
	text, err := s.generate(ctx, op, "improve-section", map[string]string{
		"section_title": section.Title,
		"content":       strings.TrimSpace(content),
	})
	if err != nil {
		return nil, err
	}
	return &SectionResult{Title: section.Title, Content: text}, nil
}

// SuggestKeywords lists keywords for resume content in an industry.
func (s *Service) SuggestKeywords(ctx context.Context, content, industry string) ([]string, error) {
	const op = "suggest_keywords"
	if err := required("content", content); err != nil {
		return nil, s.invalid(op, err)
	}
	if err := required("industry", industry); err != nil {
		return nil, s.invalid(op, err)
	}
	text, err := s.generate(ctx, op, "suggest-keywords", map[string]string{
		"content":  strings.TrimSpace(content),
		"industry": strings.TrimSpace(industry),
	})
	if err != nil {
		return nil, err
	}
	return parseList(text), nil
}

// FormatSection restyles a resume section. Unknown formats use DefaultFormat.
func (s *Service) FormatSection(ctx context.Context, content, format string) (string, error) {
	const op = "format_section"
	if err := required("content", content); err != nil {
		return "", s.invalid(op, err)
	}
	format = strings.ToLower(strings.TrimSpace(format))
	notes, ok := formatStyles[format]
	if !ok {
		format = DefaultFormat
		notes = formatStyles[DefaultFormat]
	}
	return s.generate(ctx, op, "format-section", map[string]string{
		"content":     strings.TrimSpace(content),
		"format":      format,
		"style_notes": notes,
	})
}

// ImproveWriting polishes free text, optionally in a named tone.
func (s *Service) ImproveWriting(ctx context.Context, text, style string) (string, error) {
	const op = "improve_writing"
	if err := required("text", text); err != nil {
		return "", s.invalid(op, err)
	}
	return s.generate(ctx, op, "improve-writing", map[string]string{
		"text":  strings.TrimSpace(text),
		"style": strings.TrimSpace(style),
	})
}
