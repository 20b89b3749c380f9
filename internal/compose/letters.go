package compose

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/writify/writify/internal/core"
	"github.com/writify/writify/internal/fallback"
)

const (
	defaultCreativity = 5
	maxCreativity     = 10
)

// CoverLetterRequest carries the inputs for a cover letter.
type CoverLetterRequest struct {
	JobDescription string   `json:"jobDescription"`
	Skills         []string `json:"skills"`
	TemplateID     string   `json:"templateId,omitempty"`
	CompanyName    string   `json:"companyName"`
	Position       string   `json:"position"`
	Experience     string   `json:"experience,omitempty"`
	HiringManager  string   `json:"hiringManager,omitempty"`
	// Creativity ranges 1-10; zero means the default of 5.
	Creativity int `json:"creativity,omitempty"`
}

// Validate checks the required fields.
func (r CoverLetterRequest) Validate() error {
	if err := required("jobDescription", r.JobDescription); err != nil {
		return err
	}
	if err := required("companyName", r.CompanyName); err != nil {
		return err
	}
	if err := required("position", r.Position); err != nil {
		return err
	}
	if len(cleanList(r.Skills)) == 0 {
		return &ValidationError{Field: "skills", Message: "at least one skill is required"}
	}
	if r.Creativity < 0 || r.Creativity > maxCreativity {
		return &ValidationError{Field: "creativity", Message: "creativity must be between 1 and 10"}
	}
	return nil
}

// ApplyPreferences fills the template and creativity from saved preferences
// when the request leaves them unset.
func (r *CoverLetterRequest) ApplyPreferences(prefs *core.Preferences) {
	if prefs == nil {
		return
	}
	if r.TemplateID == "" {
		r.TemplateID = prefs.DefaultTemplate
	}
	if r.Creativity == 0 {
		r.Creativity = prefs.PreferredCreativity
	}
}

// CoverLetter writes a cover letter.
func (s *Service) CoverLetter(ctx context.Context, req CoverLetterRequest) (string, error) {
	const op = "cover_letter"
	if err := req.Validate(); err != nil {
		return "", s.invalid(op, err)
	}

	skills := cleanList(req.Skills)
	creativity := req.Creativity
	if creativity == 0 {
		creativity = defaultCreativity
	}
	tpl := s.offline.Template(req.TemplateID)

	vars := map[string]string{
		"job_description": strings.TrimSpace(req.JobDescription),
		"company":         strings.TrimSpace(req.CompanyName),
		"position":        strings.TrimSpace(req.Position),
		"skills":          strings.Join(skills, ", "),
		"experience":      strings.TrimSpace(req.Experience),
		"hiring_manager":  strings.TrimSpace(req.HiringManager),
		"creativity":      strconv.Itoa(creativity),
		"template_style":  strings.ToLower(tpl.Name),
	}
	return withFallback(ctx, s, op, direct, "cover-letter", vars, strings.TrimSpace, func() string {
		return s.offline.CoverLetter(fallback.CoverLetterParams{
			JobDescription: req.JobDescription,
			Skills:         skills,
			TemplateID:     tpl.ID,
			CompanyName:    strings.TrimSpace(req.CompanyName),
			Position:       strings.TrimSpace(req.Position),
			Experience:     req.Experience,
			HiringManager:  req.HiringManager,
		})
	})
}

// EnhanceJobDescription expands a job description into a structured posting.
func (s *Service) EnhanceJobDescription(ctx context.Context, description string) (string, error) {
	const op = "enhance_description"
	if err := required("description", description); err != nil {
		return "", s.invalid(op, err)
	}
	vars := map[string]string{"description": strings.TrimSpace(description)}
	return withFallback(ctx, s, op, direct, "enhance-job-description", vars, strings.TrimSpace, func() string {
		return s.offline.EnhanceJobDescription(description)
	})
}

// SuggestSkills proposes skills for a job description. A reply that is not a
// skills object yields an empty set rather than an error.
func (s *Service) SuggestSkills(ctx context.Context, jobDescription string) (fallback.SkillSet, error) {
	const op = "suggest_skills"
	if err := required("jobDescription", jobDescription); err != nil {
		return fallback.EmptySkillSet(), s.invalid(op, err)
	}

	vars := map[string]string{"job_description": strings.TrimSpace(jobDescription)}
	return withFallback(ctx, s, op, direct, "suggest-skills", vars, s.parseSkillSet, func() fallback.SkillSet {
		return s.offline.SuggestSkills(jobDescription)
	})
}

func (s *Service) parseSkillSet(raw string) fallback.SkillSet {
	set := fallback.EmptySkillSet()
	if err := json.Unmarshal([]byte(extractJSON(raw)), &set); err != nil {
		s.warn("skills reply is not valid JSON", zap.Error(err), zap.Int("length", len(raw)))
		return fallback.EmptySkillSet()
	}
	set.TechnicalSkills = cleanList(set.TechnicalSkills)
	set.SoftSkills = cleanList(set.SoftSkills)
	set.IndustryKnowledge = cleanList(set.IndustryKnowledge)
	return set
}

// AchievementsRequest carries the inputs for achievement statements.
type AchievementsRequest struct {
	Experience string `json:"experience"`
	// STAR asks for Situation, Task, Action, Result statements.
	STAR bool `json:"star,omitempty"`
}

// GenerateAchievements rewrites responsibilities as achievement statements.
// It goes through the gateway queue, so concurrent calls run in arrival order.
func (s *Service) GenerateAchievements(ctx context.Context, req AchievementsRequest) (string, error) {
	const op = "achievements"
	if err := required("experience", req.Experience); err != nil {
		return "", s.invalid(op, err)
	}
	vars := map[string]string{"experience": strings.TrimSpace(req.Experience)}
	if req.STAR {
		vars["star"] = "true"
	}
	return withFallback(ctx, s, op, queued, "generate-achievements", vars, strings.TrimSpace, func() string {
		return s.offline.Achievements(req.Experience)
	})
}
