package compose

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/writify/writify/internal/ailink/prompt"
	"github.com/writify/writify/internal/fallback"
	"github.com/writify/writify/internal/gateway"
)

type providerScript struct {
	mu      sync.Mutex
	prompts []string
	reply   func(prompt string) (string, error)
}

func (p *providerScript) GenerateText(_ context.Context, text string, _ gateway.Options) (string, error) {
	p.mu.Lock()
	p.prompts = append(p.prompts, text)
	p.mu.Unlock()
	return p.reply(text)
}

func (p *providerScript) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.prompts)
}

type operationLog struct {
	mu     sync.Mutex
	events []string
}

func (o *operationLog) Operation(name, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, name+":"+outcome)
}

func noSleep(context.Context, time.Duration) error { return nil }

func newTestService(t *testing.T, reply func(string) (string, error), opts ...Option) (*Service, *gateway.Gateway, *providerScript) {
	t.Helper()
	reg, err := prompt.DefaultRegistry()
	require.NoError(t, err)

	provider := &providerScript{reply: reply}
	offline := fallback.New(fallback.WithSeed(7))
	policy := gateway.DefaultPolicy()
	policy.MinRequestInterval = 0
	gw := gateway.New(provider, policy, gateway.WithSleep(noSleep), gateway.WithResponder(offline))
	return New(gw, reg, offline, opts...), gw, provider
}

func alwaysFail(string) (string, error) { return "", errors.New("service unavailable") }

func validLetter() CoverLetterRequest {
	return CoverLetterRequest{
		JobDescription: "Build reliable payment APIs in Go",
		Skills:         []string{"Go", "PostgreSQL", "Kubernetes"},
		TemplateID:     "technical",
		CompanyName:    "Acme Payments",
		Position:       "Backend Engineer",
		Experience:     "6 years",
	}
}

func TestCoverLetterUsesProvider(t *testing.T) {
	svc, gw, provider := newTestService(t, func(string) (string, error) {
		return "  Dear Hiring Manager, hire me.  ", nil
	})

	text, err := svc.CoverLetter(context.Background(), validLetter())
	require.NoError(t, err)
	require.Equal(t, "Dear Hiring Manager, hire me.", text)
	require.False(t, gw.FallbackActive())

	require.Equal(t, 1, provider.calls())
	sent := provider.prompts[0]
	require.Contains(t, sent, "Job Description: Build reliable payment APIs in Go")
	require.Contains(t, sent, "Skills: Go, PostgreSQL, Kubernetes")
	require.Contains(t, sent, "Experience: 6 years")
	require.Contains(t, sent, "technical professional style")
	require.Contains(t, sent, "Creativity level (1-10): 5")
}

func TestCoverLetterFailingProviderEqualsOfflineOutput(t *testing.T) {
	svc, gw, provider := newTestService(t, alwaysFail)

	text, err := svc.CoverLetter(context.Background(), validLetter())
	require.NoError(t, err)
	require.True(t, gw.FallbackActive())
	require.Equal(t, 3, provider.calls())

	req := validLetter()
	want := fallback.New(fallback.WithSeed(7)).CoverLetter(fallback.CoverLetterParams{
		JobDescription: req.JobDescription,
		Skills:         req.Skills,
		TemplateID:     req.TemplateID,
		CompanyName:    req.CompanyName,
		Position:       req.Position,
		Experience:     req.Experience,
	})
	require.Equal(t, want, text)
	require.Contains(t, text, "Acme Payments")
	require.Contains(t, text, "Backend Engineer")
}

func TestLatchedServiceSkipsProvider(t *testing.T) {
	svc, gw, provider := newTestService(t, func(string) (string, error) { return "ai text", nil })
	gw.ActivateFallback()

	text, err := svc.CoverLetter(context.Background(), validLetter())
	require.NoError(t, err)
	require.Contains(t, text, "Acme Payments")
	require.Equal(t, 0, provider.calls())

	enhanced, err := svc.EnhanceJobDescription(context.Background(), "We need a Go engineer")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(enhanced, "Overview\nWe need a Go engineer"))
	require.Equal(t, 0, provider.calls())

	gw.ResetFallback()
	text, err = svc.CoverLetter(context.Background(), validLetter())
	require.NoError(t, err)
	require.Equal(t, "ai text", text)
	require.Equal(t, 1, provider.calls())
}

func TestLatchSetDuringRetryStillServesOperationFallback(t *testing.T) {
	var gw *gateway.Gateway
	log := &operationLog{}
	latchThenFail := func(string) (string, error) {
		gw.ActivateFallback()
		return "", errors.New("service unavailable")
	}
	svc, gw, _ := newTestService(t, latchThenFail, WithRecorder(log))

	text, err := svc.CoverLetter(context.Background(), validLetter())
	require.NoError(t, err)

	req := validLetter()
	want := fallback.New(fallback.WithSeed(7)).CoverLetter(fallback.CoverLetterParams{
		JobDescription: req.JobDescription,
		Skills:         req.Skills,
		TemplateID:     req.TemplateID,
		CompanyName:    req.CompanyName,
		Position:       req.Position,
		Experience:     req.Experience,
	})
	require.Equal(t, want, text)
	require.Contains(t, text, "Acme Payments")
	require.Contains(t, text, "Backend Engineer")
	require.Equal(t, []string{"cover_letter:fallback"}, log.events)
	require.Zero(t, gw.Stats().Totals.FallbackServed)

	gw.ResetFallback()
	set, err := svc.SuggestSkills(context.Background(), "Go and Kubernetes with strong communication in fintech")
	require.NoError(t, err)
	require.Equal(t, []string{"Go", "Kubernetes"}, set.TechnicalSkills)
	require.Equal(t, []string{"Financial Services"}, set.IndustryKnowledge)
}

func TestLatchSetDuringRetrySurfacesErrorWithoutFallback(t *testing.T) {
	var gw *gateway.Gateway
	svc, gw, _ := newTestService(t, func(string) (string, error) {
		gw.ActivateFallback()
		return "", errors.New("service unavailable")
	})

	_, err := svc.ImproveWriting(context.Background(), "I did stuff", "")
	var perr *gateway.ProviderError
	require.ErrorAs(t, err, &perr)

	_, err = svc.AnalyzeResume(context.Background(), "resume", "job")
	require.ErrorAs(t, err, &perr)
}

func TestCoverLetterValidation(t *testing.T) {
	svc, _, provider := newTestService(t, alwaysFail)

	cases := map[string]func(*CoverLetterRequest){
		"jobDescription": func(r *CoverLetterRequest) { r.JobDescription = " " },
		"companyName":    func(r *CoverLetterRequest) { r.CompanyName = "" },
		"position":       func(r *CoverLetterRequest) { r.Position = "" },
		"skills":         func(r *CoverLetterRequest) { r.Skills = []string{"", "  "} },
		"creativity":     func(r *CoverLetterRequest) { r.Creativity = 11 },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			req := validLetter()
			mutate(&req)
			_, err := svc.CoverLetter(context.Background(), req)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			require.Equal(t, field, verr.Field)
		})
	}
	require.Equal(t, 0, provider.calls())
}

func TestCanceledCallerDoesNotLatch(t *testing.T) {
	svc, gw, _ := newTestService(t, alwaysFail)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.CoverLetter(ctx, validLetter())
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, gw.FallbackActive())
}

func TestSuggestSkillsParsesJSON(t *testing.T) {
	svc, _, _ := newTestService(t, func(string) (string, error) {
		return "```json\n{\"technicalSkills\":[\"Go\",\" \"],\"softSkills\":[\"Mentoring\"],\"industryKnowledge\":[\"Payments\"]}\n```", nil
	})

	set, err := svc.SuggestSkills(context.Background(), "Payments platform")
	require.NoError(t, err)
	require.Equal(t, []string{"Go"}, set.TechnicalSkills)
	require.Equal(t, []string{"Mentoring"}, set.SoftSkills)
	require.Equal(t, []string{"Payments"}, set.IndustryKnowledge)
}

func TestSuggestSkillsParseFailureIsEmpty(t *testing.T) {
	svc, gw, _ := newTestService(t, func(string) (string, error) { return "Go, Python and teamwork", nil })

	set, err := svc.SuggestSkills(context.Background(), "Payments platform")
	require.NoError(t, err)
	require.Equal(t, fallback.EmptySkillSet(), set)
	require.False(t, gw.FallbackActive())
}

func TestSuggestSkillsFallback(t *testing.T) {
	svc, gw, _ := newTestService(t, alwaysFail)

	set, err := svc.SuggestSkills(context.Background(), "Go and Kubernetes with strong communication in fintech")
	require.NoError(t, err)
	require.True(t, gw.FallbackActive())
	require.Equal(t, []string{"Go", "Kubernetes"}, set.TechnicalSkills)
	require.Equal(t, []string{"Communication"}, set.SoftSkills)
	require.Equal(t, []string{"Financial Services"}, set.IndustryKnowledge)
}

func TestGenerateAchievementsQueued(t *testing.T) {
	svc, _, provider := newTestService(t, func(string) (string, error) { return "• Led the migration", nil })

	text, err := svc.GenerateAchievements(context.Background(), AchievementsRequest{Experience: "Responsible for the migration", STAR: true})
	require.NoError(t, err)
	require.Equal(t, "• Led the migration", text)
	require.Contains(t, provider.prompts[0], "STAR method")
}

func TestGenerateAchievementsFallback(t *testing.T) {
	svc, gw, _ := newTestService(t, alwaysFail)

	text, err := svc.GenerateAchievements(context.Background(), AchievementsRequest{Experience: "Responsible for billing; worked on reporting"})
	require.NoError(t, err)
	require.True(t, gw.FallbackActive())
	require.Len(t, strings.Split(text, "\n"), 2)
	require.Contains(t, text, "billing")
	require.Contains(t, text, "reporting")
}

func TestOperationRecorder(t *testing.T) {
	log := &operationLog{}
	svc, _, _ := newTestService(t, alwaysFail, WithRecorder(log))

	_, _ = svc.EnhanceJobDescription(context.Background(), "")
	_, _ = svc.EnhanceJobDescription(context.Background(), "Go role")
	_, _ = svc.EnhanceJobDescription(context.Background(), "Go role")

	require.Equal(t, []string{
		"enhance_description:invalid",
		"enhance_description:fallback",
		"enhance_description:fallback",
	}, log.events)
}

func TestServiceWithoutGateway(t *testing.T) {
	reg, err := prompt.DefaultRegistry()
	require.NoError(t, err)
	svc := New(nil, reg, nil)

	text, err := svc.EnhanceJobDescription(context.Background(), "Go role")
	require.NoError(t, err)
	require.Contains(t, text, "Overview")

	_, err = svc.ImproveWriting(context.Background(), "text", "")
	require.Error(t, err)
}
