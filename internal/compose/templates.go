package compose

import (
	"strconv"
	"strings"

	"github.com/writify/writify/internal/core"
	"github.com/writify/writify/internal/fallback"
)

// CustomTemplateID returns the template id a stored custom template is
// registered under.
func CustomTemplateID(id int64) string {
	return "custom-" + strconv.FormatInt(id, 10)
}

// Placeholders every new custom template must contain.
var requiredPlaceholders = []string{"{company}", "{position}"}

// ValidateCustomTemplate checks a template before it is stored. The structure
// must name the company and position.
func ValidateCustomTemplate(tpl core.CustomTemplate) error {
	if err := validateTemplateFields(tpl); err != nil {
		return err
	}
	for _, ph := range requiredPlaceholders {
		if !strings.Contains(tpl.Structure, ph) {
			return &ValidationError{Field: "structure", Message: "structure must contain the " + ph + " placeholder"}
		}
	}
	return nil
}

func validateTemplateFields(tpl core.CustomTemplate) error {
	if err := required("name", tpl.Name); err != nil {
		return err
	}
	return required("structure", tpl.Structure)
}

// RegisterCustomTemplate makes a stored template available to cover letter
// generation and returns the registered form. Rows saved without the company
// or position placeholders are still accepted; the generator adds both.
func (s *Service) RegisterCustomTemplate(tpl core.CustomTemplate) (fallback.Template, error) {
	if err := validateTemplateFields(tpl); err != nil {
		return fallback.Template{}, err
	}
	registered := fallback.Template{
		ID:          CustomTemplateID(tpl.ID),
		Name:        strings.TrimSpace(tpl.Name),
		Description: strings.TrimSpace(tpl.Description),
		Body:        tpl.Structure,
	}
	if err := s.offline.RegisterTemplate(registered); err != nil {
		return fallback.Template{}, err
	}
	return s.offline.Template(registered.ID), nil
}
