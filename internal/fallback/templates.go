package fallback

// Template is a cover letter body with {placeholder} slots.
//
// Recognised placeholders: {hiring_manager}, {position}, {company}, {skills},
// {job_match}, {skills_highlight}, {experience_highlight}, {company_highlight}.
type Template struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Body        string `json:"body"`
	Builtin     bool   `json:"builtin"`
}

// DefaultTemplateID is used whenever a requested template is unknown.
const DefaultTemplateID = "modern"

var builtinTemplates = []Template{
	{
		ID:          "modern",
		Name:        "Modern Professional",
		Description: "A contemporary and direct approach that emphasizes achievements",
		Builtin:     true,
		Body: `
Dear {hiring_manager},

I am writing to express my strong interest in the {position} position at {company}. With my background in {skills}, I am confident in my ability to contribute effectively to your team.

{job_match}

{skills_highlight}

{experience_highlight}

I am particularly drawn to {company} because {company_highlight}. I am excited about the possibility of bringing my skills and experience to your team.

Thank you for considering my application. I look forward to discussing how I can contribute to {company}'s continued success.

Best regards,
[Your Name]`,
	},
	{
		ID:          "creative",
		Name:        "Creative",
		Description: "A bold and innovative style for creative industries",
		Builtin:     true,
		Body: `
Dear {hiring_manager},

I was thrilled to discover the {position} opportunity at {company}. As a professional with expertise in {skills}, I see a perfect alignment between my capabilities and your needs.

{job_match}

{skills_highlight}

{experience_highlight}

What excites me most about {company} is {company_highlight}. I am eager to bring my creative approach and proven skills to your innovative team.

I would welcome the opportunity to discuss how my background and skills would benefit {company}.

Best regards,
[Your Name]`,
	},
	{
		ID:          "technical",
		Name:        "Technical Professional",
		Description: "Focused on technical expertise and problem-solving abilities",
		Builtin:     true,
		Body: `
Dear {hiring_manager},

I am writing to apply for the {position} position at {company}. As a professional experienced in {skills}, I bring a robust combination of technical expertise and practical implementation experience.

{job_match}

{skills_highlight}

{experience_highlight}

Technically, {company} stands out to me for {company_highlight}. I would value the chance to apply my problem-solving background to the challenges your team is working on.

Thank you for considering my application.

Best regards,
[Your Name]`,
	},
}
