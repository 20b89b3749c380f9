package prompt

import (
	"errors"
	"fmt"
	"strings"
)

// MissingVariablesError reports required variables without a value.
type MissingVariablesError struct {
	Slug      string
	Variables []string
}

func (e *MissingVariablesError) Error() string {
	return fmt.Sprintf("prompt %s missing variables: %s", e.Slug, strings.Join(e.Variables, ", "))
}

// Render fills the templates of def and joins them into one prompt text.
func Render(def *Prompt, vars map[string]string) (string, error) {
	system, user, err := RenderParts(def, vars)
	if err != nil {
		return "", err
	}
	if system == "" {
		return user, nil
	}
	return system + "\n\n" + user, nil
}

// RenderParts fills the system and user templates of def separately.
func RenderParts(def *Prompt, vars map[string]string) (string, string, error) {
	if def == nil {
		return "", "", errors.New("prompt is required")
	}

	var missing []string
	for _, name := range def.Config.Input.RequiredVariables {
		if strings.TrimSpace(vars[name]) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", "", &MissingVariablesError{Slug: def.Config.Slug, Variables: missing}
	}

	// Conditionals first, then variable substitution.
	system := applyVars(applyConditionals(def.Config.SystemTemplate, vars), vars)
	user := applyVars(applyConditionals(def.Config.UserTemplate, vars), vars)
	return strings.TrimSpace(system), strings.TrimSpace(user), nil
}

func applyVars(template string, vars map[string]string) string {
	if len(vars) == 0 {
		return template
	}
	pairs := make([]string, 0, len(vars)*2)
	for key, value := range vars {
		pairs = append(pairs, "{{"+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// applyConditionals handles {{#if var}}content{{else}}fallback{{/if}} blocks.
// If the variable exists and is non-empty, the content is included; otherwise the fallback is used.
func applyConditionals(template string, vars map[string]string) string {
	result := template
	for {
		start := strings.Index(result, "{{#if")
		if start == -1 {
			break
		}
		tagEnd := strings.Index(result[start:], "}}")
		if tagEnd == -1 {
			break
		}
		tagEnd += start

		varName := strings.TrimSpace(result[start+len("{{#if") : tagEnd])
		blockStart := tagEnd + 2

		elseStart, elseEnd, endStart, endEnd := findConditionalBlock(result, blockStart)
		if endStart == -1 {
			break
		}

		ifContent := result[blockStart:endStart]
		elseContent := ""
		if elseStart != -1 {
			ifContent = result[blockStart:elseStart]
			elseContent = result[elseEnd:endStart]
		}

		replacement := elseContent
		if strings.TrimSpace(vars[varName]) != "" {
			replacement = ifContent
		}

		result = result[:start] + replacement + result[endEnd:]
	}
	return result
}

func findConditionalBlock(input string, start int) (int, int, int, int) {
	depth := 0
	elseStart := -1
	elseEnd := -1

	pos := start
	for {
		openIdx := strings.Index(input[pos:], "{{")
		if openIdx == -1 {
			return -1, -1, -1, -1
		}
		openIdx += pos

		closeIdx := strings.Index(input[openIdx:], "}}")
		if closeIdx == -1 {
			return -1, -1, -1, -1
		}
		closeIdx += openIdx

		tag := strings.TrimSpace(input[openIdx+2 : closeIdx])
		switch {
		case tag == "#if" || strings.HasPrefix(tag, "#if "):
			depth++
		case tag == "/if":
			if depth == 0 {
				return elseStart, elseEnd, openIdx, closeIdx + 2
			}
			depth--
		case tag == "else" && depth == 0 && elseStart == -1:
			elseStart = openIdx
			elseEnd = closeIdx + 2
		}

		pos = closeIdx + 2
	}
}
