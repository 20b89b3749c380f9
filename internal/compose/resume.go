package compose

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SkillsGraph is the categorized skill inventory of a resume.
type SkillsGraph struct {
	TechnicalSkills []string `json:"technicalSkills"`
	SoftSkills      []string `json:"softSkills"`
	DomainKnowledge []string `json:"domainKnowledge"`
}

func emptySkillsGraph() SkillsGraph {
	return SkillsGraph{TechnicalSkills: []string{}, SoftSkills: []string{}, DomainKnowledge: []string{}}
}

// ResumeAnalysis is the combined result of AnalyzeResume.
type ResumeAnalysis struct {
	Analysis               string      `json:"analysis"`
	SkillsGraph            SkillsGraph `json:"skillsGraph"`
	SuggestedJobs          string      `json:"suggestedJobs"`
	CoverLetterSuggestions string      `json:"coverLetterSuggestions"`
}

// AnalyzeResume compares a resume with a job description. The four parts run
// concurrently; the first gateway error cancels the rest and is returned.
// There is no offline equivalent.
func (s *Service) AnalyzeResume(ctx context.Context, resumeText, jobDescription string) (*ResumeAnalysis, error) {
	const op = "analyze_resume"
	if err := required("resume", resumeText); err != nil {
		return nil, s.invalid(op, err)
	}
	if err := required("jobDescription", jobDescription); err != nil {
		return nil, s.invalid(op, err)
	}

	start := time.Now()
	resume := strings.TrimSpace(resumeText)
	job := strings.TrimSpace(jobDescription)
	result := &ResumeAnalysis{SkillsGraph: emptySkillsGraph()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		text, err := s.ask(gctx, "analyze-resume", map[string]string{"resume_text": resume, "job_description": job})
		result.Analysis = text
		return err
	})
	g.Go(func() error {
		text, err := s.ask(gctx, "skills-graph", map[string]string{"resume_text": resume})
		if err == nil {
			result.SkillsGraph = s.parseSkillsGraph(text)
		}
		return err
	})
	g.Go(func() error {
		text, err := s.ask(gctx, "job-titles", map[string]string{"resume_text": resume})
		result.SuggestedJobs = text
		return err
	})
	g.Go(func() error {
		text, err := s.ask(gctx, "cover-letter-suggestions", map[string]string{"resume_text": resume, "job_description": job})
		result.CoverLetterSuggestions = text
		return err
	})
	if err := g.Wait(); err != nil {
		s.record(op, "error", start)
		return nil, err
	}
	s.record(op, "ai", start)
	return result, nil
}

func (s *Service) parseSkillsGraph(raw string) SkillsGraph {
	graph := emptySkillsGraph()
	if err := json.Unmarshal([]byte(extractJSON(raw)), &graph); err != nil {
		s.warn("skills graph reply is not valid JSON", zap.Error(err), zap.Int("length", len(raw)))
		return emptySkillsGraph()
	}
	graph.TechnicalSkills = cleanList(graph.TechnicalSkills)
	graph.SoftSkills = cleanList(graph.SoftSkills)
	graph.DomainKnowledge = cleanList(graph.DomainKnowledge)
	return graph
}
