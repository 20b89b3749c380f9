// Package fallback produces offline, template-based writing output used when
// the AI provider cannot be reached. Nothing here performs I/O and no
// operation returns an error.
package fallback

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

const (
	defaultHiringManager = "Hiring Manager"
	defaultExperience    = "relevant"
	defaultSkill         = "my core skills"
)

var (
	achievementPool = []string{
		"delivering successful projects using %s",
		"improving team efficiency through %s implementation",
		"solving complex problems using %s",
		"leading initiatives in %s",
	}
	skillDescriptionPool = []string{
		"demonstrated expertise in various projects",
		"proven track record of successful implementation",
		"strong foundation with practical application",
		"extensive experience in real-world scenarios",
	}
	experienceHighlightPool = []string{
		"demonstrated strong problem-solving abilities",
		"contributed to team success through innovative solutions",
		"exceeded performance expectations",
		"delivered high-quality results under tight deadlines",
	}
	companyHighlightPool = []string{
		"your commitment to innovation and excellence",
		"your industry-leading position and forward-thinking approach",
		"your reputation for fostering a collaborative and dynamic work environment",
		"your impressive track record of growth and success",
	}
)

// CoverLetterParams carries the inputs for an offline cover letter.
type CoverLetterParams struct {
	JobDescription string
	Skills         []string
	TemplateID     string
	CompanyName    string
	Position       string
	Experience     string
	HiringManager  string
}

// Option configures a Generator.
type Option func(*Generator)

// WithPicker injects the selection source used for paragraph fragments.
func WithPicker(p Picker) Option {
	return func(g *Generator) {
		if p != nil {
			g.picker = p
		}
	}
}

// WithSeed makes fragment selection reproducible.
func WithSeed(seed uint64) Option {
	return func(g *Generator) {
		g.picker = NewSeededPicker(seed)
	}
}

// Generator renders cover letters and related content from fixed pools.
type Generator struct {
	picker Picker

	mu        sync.RWMutex
	templates map[string]Template
}

// New returns a Generator with the built-in templates registered.
func New(opts ...Option) *Generator {
	g := &Generator{
		picker:    globalPicker{},
		templates: make(map[string]Template, len(builtinTemplates)),
	}
	for _, tpl := range builtinTemplates {
		g.templates[tpl.ID] = tpl
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RegisterTemplate adds or replaces a template. Built-in templates cannot be replaced.
func (g *Generator) RegisterTemplate(tpl Template) error {
	id := strings.TrimSpace(tpl.ID)
	if id == "" {
		return fmt.Errorf("template id is required")
	}
	if strings.TrimSpace(tpl.Body) == "" {
		return fmt.Errorf("template %q has an empty body", id)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if existing, ok := g.templates[id]; ok && existing.Builtin {
		return fmt.Errorf("template %q is built in", id)
	}
	tpl.ID = id
	tpl.Builtin = false
	g.templates[id] = tpl
	return nil
}

// Template returns the template for id, or the default template when id is unknown.
func (g *Generator) Template(id string) Template {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if tpl, ok := g.templates[strings.TrimSpace(id)]; ok {
		return tpl
	}
	return g.templates[DefaultTemplateID]
}

// Templates lists registered templates, built-ins first, then by id.
func (g *Generator) Templates() []Template {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Template, 0, len(g.templates))
	for _, tpl := range g.templates {
		out = append(out, tpl)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Builtin != out[j].Builtin {
			return out[i].Builtin
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// CoverLetter renders a complete letter. The result always contains the
// company name and position verbatim.
func (g *Generator) CoverLetter(p CoverLetterParams) string {
	tpl := g.Template(p.TemplateID)

	skills := cleanSkills(p.Skills)
	if len(skills) == 0 {
		skills = []string{defaultSkill}
	}
	hiringManager := strings.TrimSpace(p.HiringManager)
	if hiringManager == "" {
		hiringManager = defaultHiringManager
	}

	// Fragment order is fixed so a seeded picker yields stable output.
	jobMatch := g.jobMatch(skills)
	skillsHighlight := g.skillsHighlight(skills)
	experienceHighlight := g.experienceHighlight(p.Experience)
	companyHighlight := pick(g.picker, companyHighlightPool)

	r := strings.NewReplacer(
		"{hiring_manager}", hiringManager,
		"{position}", p.Position,
		"{company}", p.CompanyName,
		"{skills}", strings.Join(firstN(skills, 3), ", "),
		"{job_match}", jobMatch,
		"{skills_highlight}", skillsHighlight,
		"{experience_highlight}", experienceHighlight,
		"{company_highlight}", companyHighlight,
	)
	letter := strings.TrimSpace(r.Replace(tpl.Body))
	if !strings.Contains(letter, p.CompanyName) || !strings.Contains(letter, p.Position) {
		letter = fmt.Sprintf("Re: %s position at %s\n\n%s", p.Position, p.CompanyName, letter)
	}
	return letter
}

func (g *Generator) jobMatch(skills []string) string {
	achievement := fmt.Sprintf(pick(g.picker, achievementPool), skills[0])
	return fmt.Sprintf("The position requirements align perfectly with my experience in %s. I have a proven track record of %s.",
		strings.Join(skills, ", "), achievement)
}

func (g *Generator) skillsHighlight(skills []string) string {
	var b strings.Builder
	b.WriteString("My key strengths include:")
	for _, skill := range skills {
		b.WriteString("\n• ")
		b.WriteString(skill)
		b.WriteString(": ")
		b.WriteString(pick(g.picker, skillDescriptionPool))
	}
	return b.String()
}

func (g *Generator) experienceHighlight(experience string) string {
	experience = strings.TrimSpace(experience)
	if experience == "" {
		experience = defaultExperience
	}
	return fmt.Sprintf("With %s experience, I have consistently %s.", experience, pick(g.picker, experienceHighlightPool))
}

func cleanSkills(skills []string) []string {
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func firstN(values []string, n int) []string {
	if len(values) <= n {
		return values
	}
	return values[:n]
}
