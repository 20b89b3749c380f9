package compose

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/writify/writify/internal/gateway"
)

func resumeReplies(prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "expert resume analyzer"):
		return "Match: 80%", nil
	case strings.Contains(prompt, "technicalSkills"):
		return `{"technicalSkills":["Go"],"softSkills":["Leadership"],"domainKnowledge":["Payments"]}`, nil
	case strings.Contains(prompt, "job titles"):
		return "Staff Engineer", nil
	default:
		return "Highlight the billing rewrite", nil
	}
}

func TestAnalyzeResume(t *testing.T) {
	svc, _, provider := newTestService(t, resumeReplies)

	got, err := svc.AnalyzeResume(context.Background(), "Go engineer, 6 years", "Senior Go role")
	require.NoError(t, err)
	require.Equal(t, 4, provider.calls())
	require.Equal(t, "Match: 80%", got.Analysis)
	require.Equal(t, SkillsGraph{TechnicalSkills: []string{"Go"}, SoftSkills: []string{"Leadership"}, DomainKnowledge: []string{"Payments"}}, got.SkillsGraph)
	require.Equal(t, "Staff Engineer", got.SuggestedJobs)
	require.Equal(t, "Highlight the billing rewrite", got.CoverLetterSuggestions)
}

func TestAnalyzeResumeRecordsOneOperation(t *testing.T) {
	log := &operationLog{}
	svc, _, provider := newTestService(t, resumeReplies, WithRecorder(log))

	_, err := svc.AnalyzeResume(context.Background(), "Go engineer", "Go role")
	require.NoError(t, err)
	require.Equal(t, 4, provider.calls())
	require.Equal(t, []string{"analyze_resume:ai"}, log.events)

	failing, _, _ := newTestService(t, alwaysFail, WithRecorder(log))
	log.events = nil
	_, err = failing.AnalyzeResume(context.Background(), "Go engineer", "Go role")
	require.Error(t, err)
	require.Equal(t, []string{"analyze_resume:error"}, log.events)
}

func TestAnalyzeResumeSkillsGraphParseFailure(t *testing.T) {
	svc, _, _ := newTestService(t, func(prompt string) (string, error) {
		if strings.Contains(prompt, "technicalSkills") {
			return "not json", nil
		}
		return resumeReplies(prompt)
	})

	got, err := svc.AnalyzeResume(context.Background(), "resume", "job")
	require.NoError(t, err)
	require.Equal(t, emptySkillsGraph(), got.SkillsGraph)
}

func TestAnalyzeResumeSurfacesGatewayErrors(t *testing.T) {
	svc, gw, _ := newTestService(t, alwaysFail)

	_, err := svc.AnalyzeResume(context.Background(), "resume", "job")
	var perr *gateway.ProviderError
	require.True(t, errors.As(err, &perr))
	require.False(t, gw.FallbackActive())
}

func TestAnalyzeResumeValidation(t *testing.T) {
	svc, _, _ := newTestService(t, resumeReplies)

	_, err := svc.AnalyzeResume(context.Background(), "", "job")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "resume", verr.Field)

	_, err = svc.AnalyzeResume(context.Background(), "resume", " ")
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "jobDescription", verr.Field)
}
