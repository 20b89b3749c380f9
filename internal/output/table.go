package output

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/writify/writify/internal/compose"
	"github.com/writify/writify/internal/core"
	"github.com/writify/writify/internal/fallback"
	"github.com/writify/writify/internal/gateway"
)

const timeLayout = "2006-01-02 15:04"

// Letters renders cover letter history.
func Letters(format Format, letters []core.CoverLetter) (string, error) {
	if format == FormatJSON {
		if letters == nil {
			letters = []core.CoverLetter{}
		}
		return JSON(letters)
	}

	t := newTable()
	t.AppendHeader(table.Row{"ID", "Company", "Position", "Template", "Created", "Preview"})
	for _, l := range letters {
		t.AppendRow(table.Row{l.ID, l.Company, l.Position, l.TemplateID, formatTime(l.CreatedAt), preview(l.Content)})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", fmt.Sprintf("%d letter(s)", len(letters))})
	return render(format, t), nil
}

// Templates renders the cover letter templates known to the generator.
func Templates(format Format, templates []fallback.Template) (string, error) {
	if format == FormatJSON {
		if templates == nil {
			templates = []fallback.Template{}
		}
		return JSON(templates)
	}

	t := newTable()
	t.AppendHeader(table.Row{"ID", "Name", "Kind", "Description"})
	for _, tpl := range templates {
		kind := "custom"
		if tpl.Builtin {
			kind = "built-in"
		}
		t.AppendRow(table.Row{tpl.ID, tpl.Name, kind, tpl.Description})
	}
	return render(format, t), nil
}

// GatewayStatus renders a gateway snapshot.
func GatewayStatus(format Format, stats gateway.Stats) (string, error) {
	if format == FormatJSON {
		return JSON(stats)
	}

	mode := "online"
	if stats.FallbackActive {
		mode = "offline (fallback since " + formatTime(stats.FallbackSince) + ")"
	}

	t := newTable()
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRows([]table.Row{
		{"Mode", mode},
		{"Hourly usage", fmt.Sprintf("%d/%d", stats.HourlyCount, stats.HourlyLimit)},
		{"Window resets", formatTime(stats.WindowResetsAt)},
		{"Last request", formatTime(stats.LastRequest)},
		{"Queue depth", strconv.Itoa(stats.QueueDepth)},
		{"Processing", strconv.FormatBool(stats.Processing)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Dispatched", stats.Totals.Dispatched},
		{"Succeeded", stats.Totals.Succeeded},
		{"Failed", stats.Totals.Failed},
		{"Retries", stats.Totals.Retries},
		{"Quota rejections", stats.Totals.QuotaRejections},
		{"Fallback activations", stats.Totals.FallbackActivations},
		{"Fallback served", stats.Totals.FallbackServed},
	})
	return render(format, t), nil
}

// Skills renders suggested skills, one column per category.
func Skills(format Format, skills fallback.SkillSet) (string, error) {
	if format == FormatJSON {
		return JSON(skills)
	}
	return render(format, skillColumns(
		[]string{"Technical", "Soft", "Industry"},
		skills.TechnicalSkills, skills.SoftSkills, skills.IndustryKnowledge,
	)), nil
}

// Analysis renders a resume analysis: the skills graph as a table and the
// prose sections under headings.
func Analysis(format Format, analysis *compose.ResumeAnalysis) (string, error) {
	if format == FormatJSON {
		return JSON(analysis)
	}

	heading := func(title string) string {
		if format == FormatMarkdown {
			return "## " + title
		}
		return strings.ToUpper(title)
	}

	graph := analysis.SkillsGraph
	var b strings.Builder
	for _, section := range []struct{ title, body string }{
		{"Analysis", analysis.Analysis},
		{"Suggested Jobs", analysis.SuggestedJobs},
		{"Cover Letter Suggestions", analysis.CoverLetterSuggestions},
	} {
		b.WriteString(heading(section.title))
		b.WriteString("\n\n")
		b.WriteString(strings.TrimSpace(section.body))
		b.WriteString("\n\n")
	}
	b.WriteString(heading("Skills"))
	b.WriteString("\n\n")
	b.WriteString(render(format, skillColumns(
		[]string{"Technical", "Soft", "Domain"},
		graph.TechnicalSkills, graph.SoftSkills, graph.DomainKnowledge,
	)))
	return b.String(), nil
}

func skillColumns(headers []string, columns ...[]string) table.Writer {
	header := table.Row{}
	for _, h := range headers {
		header = append(header, h)
	}
	rows := 0
	for _, col := range columns {
		rows = max(rows, len(col))
	}

	t := newTable()
	t.AppendHeader(header)
	for i := 0; i < rows; i++ {
		row := make(table.Row, len(columns))
		for c, col := range columns {
			if i < len(col) {
				row[c] = col[i]
			} else {
				row[c] = ""
			}
		}
		t.AppendRow(row)
	}
	return t
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	return t
}

func render(format Format, t table.Writer) string {
	if format == FormatMarkdown {
		return t.RenderMarkdown()
	}
	return t.Render()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}
