package fallback

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SkillSet groups suggested skills by category.
type SkillSet struct {
	TechnicalSkills   []string `json:"technicalSkills"`
	SoftSkills        []string `json:"softSkills"`
	IndustryKnowledge []string `json:"industryKnowledge"`
}

// EmptySkillSet returns a SkillSet whose categories are non-nil and empty.
func EmptySkillSet() SkillSet {
	return SkillSet{TechnicalSkills: []string{}, SoftSkills: []string{}, IndustryKnowledge: []string{}}
}

var (
	technicalVocabulary = []string{
		"Go", "Python", "Java", "JavaScript", "TypeScript", "C#", "C++", "Rust", "Ruby", "PHP", "Kotlin", "Swift",
		"SQL", "PostgreSQL", "MySQL", "MongoDB", "Redis", "Kafka", "GraphQL", "REST API",
		"React", "Angular", "Vue", "Node.js", "Django", "Spring",
		"AWS", "Azure", "GCP", "Docker", "Kubernetes", "Terraform", "Linux", "CI/CD", "Git",
		"Machine Learning", "Data Analysis", "Excel", "Tableau", "Figma", "Salesforce",
	}
	softVocabulary = []string{
		"Communication", "Leadership", "Teamwork", "Collaboration", "Problem Solving", "Mentoring",
		"Time Management", "Adaptability", "Attention to Detail", "Critical Thinking",
		"Stakeholder Management", "Negotiation", "Presentation", "Ownership",
	}
	industryVocabulary = map[string]string{
		"fintech":       "Financial Services",
		"banking":       "Financial Services",
		"payments":      "Payments",
		"healthcare":    "Healthcare",
		"clinical":      "Healthcare",
		"e-commerce":    "E-commerce",
		"ecommerce":     "E-commerce",
		"retail":        "Retail",
		"saas":          "SaaS",
		"security":      "Information Security",
		"compliance":    "Regulatory Compliance",
		"marketing":     "Digital Marketing",
		"logistics":     "Logistics",
		"education":     "Education",
		"gaming":        "Gaming",
		"insurance":     "Insurance",
		"agile":         "Agile Methodologies",
		"scrum":         "Agile Methodologies",
		"cloud":         "Cloud Infrastructure",
		"startup":       "Startup Environments",
		"analytics":     "Business Analytics",
		"manufacturing": "Manufacturing",
	}

	defaultTechnical = []string{"Version Control", "Technical Documentation", "Data Literacy"}
	defaultSoft      = []string{"Communication", "Problem Solving", "Teamwork"}
	defaultIndustry  = []string{"Industry Best Practices"}

	responsibilityPool = []string{
		"Own deliverables end to end, from planning through release",
		"Collaborate closely with cross-functional partners to ship high-quality work",
		"Identify opportunities to improve processes and drive them to completion",
		"Communicate progress, risks, and results clearly to stakeholders",
	}
	culturePool = []string{
		"A collaborative team that values learning and knowledge sharing",
		"Flexible working arrangements and a focus on sustainable pace",
		"Clear growth paths with regular feedback and mentorship",
		"An inclusive culture built on ownership and trust",
	}
	actionVerbPool = []string{"Led", "Delivered", "Streamlined", "Spearheaded", "Drove", "Improved"}
	impactPool     = []string{
		"reducing turnaround time by an estimated 20%",
		"improving stakeholder satisfaction and repeat engagement",
		"increasing team throughput without additional headcount",
		"cutting recurring errors and rework significantly",
	}
)

// SuggestSkills derives a SkillSet from keywords present in the job description.
func (g *Generator) SuggestSkills(jobDescription string) SkillSet {
	lower := strings.ToLower(jobDescription)
	set := EmptySkillSet()

	for _, term := range technicalVocabulary {
		if containsTerm(lower, strings.ToLower(term)) {
			set.TechnicalSkills = appendUnique(set.TechnicalSkills, term)
		}
	}
	for _, term := range softVocabulary {
		if containsTerm(lower, strings.ToLower(term)) {
			set.SoftSkills = appendUnique(set.SoftSkills, term)
		}
	}
	for keyword, label := range industryVocabulary {
		if containsTerm(lower, keyword) {
			set.IndustryKnowledge = appendUnique(set.IndustryKnowledge, label)
		}
	}
	sort.Strings(set.IndustryKnowledge)

	if len(set.TechnicalSkills) == 0 {
		set.TechnicalSkills = append(set.TechnicalSkills, defaultTechnical...)
	}
	if len(set.SoftSkills) == 0 {
		set.SoftSkills = append(set.SoftSkills, defaultSoft...)
	}
	if len(set.IndustryKnowledge) == 0 {
		set.IndustryKnowledge = append(set.IndustryKnowledge, defaultIndustry...)
	}
	return set
}

// EnhanceJobDescription restructures a description into the standard sections.
func (g *Generator) EnhanceJobDescription(description string) string {
	description = strings.TrimSpace(description)
	skills := g.SuggestSkills(description)

	var b strings.Builder
	b.WriteString("Overview\n")
	b.WriteString(description)
	b.WriteString("\n\nRole Responsibilities\n")
	for _, line := range g.pickDistinct(responsibilityPool, 3) {
		b.WriteString("• " + line + "\n")
	}
	b.WriteString("\nRequired Skills and Qualifications\n")
	for _, s := range append(append([]string{}, skills.TechnicalSkills...), skills.SoftSkills...) {
		b.WriteString("• " + s + "\n")
	}
	b.WriteString("\nPreferred Experience\n")
	for _, s := range skills.IndustryKnowledge {
		b.WriteString("• Experience with " + s + "\n")
	}
	b.WriteString("\nCompany Culture and Benefits\n")
	for _, line := range g.pickDistinct(culturePool, 2) {
		b.WriteString("• " + line + "\n")
	}
	return strings.TrimSpace(b.String())
}

// Achievements turns each responsibility line into an achievement statement.
func (g *Generator) Achievements(experience string) string {
	lines := splitStatements(experience)
	if len(lines) == 0 {
		return ""
	}
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		verb := pick(g.picker, actionVerbPool)
		impact := pick(g.picker, impactPool)
		out = append(out, fmt.Sprintf("• %s %s, %s", verb, lowerFirst(stripLeadingVerb(line)), impact))
	}
	return strings.Join(out, "\n")
}

// Respond is the generic offline answer for a raw prompt.
func (g *Generator) Respond(prompt string) string {
	subject := firstLine(prompt)
	if subject == "" {
		subject = "your request"
	}
	return fmt.Sprintf("The writing assistant is temporarily unavailable, so this is an offline draft.\n\nRequest: %s\n\n%s",
		subject, pick(g.picker, []string{
			"Focus on concrete outcomes, quantify results where possible, and keep each point concise.",
			"Lead with your strongest achievement, tie it to the role, and close with a clear call to action.",
			"Use active verbs, mirror the language of the posting, and remove any filler.",
		}))
}

func (g *Generator) pickDistinct(pool []string, n int) []string {
	remaining := append([]string{}, pool...)
	out := make([]string, 0, n)
	for len(out) < n && len(remaining) > 0 {
		idx := g.picker.IntN(len(remaining))
		if idx < 0 || idx >= len(remaining) {
			idx = 0
		}
		out = append(out, remaining[idx])
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}
	return out
}

func containsTerm(haystack, term string) bool {
	if term == "" {
		return false
	}
	start := 0
	for {
		idx := strings.Index(haystack[start:], term)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(term)
		if boundary(haystack, idx-1) && boundary(haystack, end) {
			return true
		}
		start = idx + 1
	}
}

func boundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	r := rune(s[i])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func appendUnique(values []string, v string) []string {
	for _, existing := range values {
		if existing == v {
			return values
		}
	}
	return append(values, v)
}

func splitStatements(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == ';' || r == '.'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(f), "-•*"))
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

var weakLeads = []string{"responsible for ", "worked on ", "helped with ", "helped ", "tasked with ", "in charge of "}

func stripLeadingVerb(s string) string {
	lower := strings.ToLower(s)
	for _, lead := range weakLeads {
		if strings.HasPrefix(lower, lead) {
			return strings.TrimSpace(s[len(lead):])
		}
	}
	return s
}

// lowerFirst lowercases the leading rune unless the word looks like an acronym.
func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	if next, _ := utf8.DecodeRuneInString(s[size:]); unicode.IsUpper(next) {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			if len(line) > 120 {
				line = line[:120] + "..."
			}
			return line
		}
	}
	return ""
}
