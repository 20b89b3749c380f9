package compose

import (
	"strings"
	"unicode"
)

// extractJSON trims code fences and surrounding prose from a model reply,
// returning the outermost JSON object when one is present.
func extractJSON(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimPrefix(text, "json")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// parseList turns a bulleted or numbered reply into items. Heading lines
// ending in a colon are skipped.
func parseList(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-•*# ")
		line = trimOrdinal(line)
		line = strings.Trim(line, "* ")
		if line == "" || strings.HasSuffix(line, ":") {
			continue
		}
		out = append(out, line)
	}
	if out == nil {
		return []string{}
	}
	return out
}

func trimOrdinal(line string) string {
	i := 0
	for i < len(line) && unicode.IsDigit(rune(line[i])) {
		i++
	}
	if i == 0 || i >= len(line) {
		return line
	}
	if line[i] == '.' || line[i] == ')' {
		return strings.TrimSpace(line[i+1:])
	}
	return line
}
