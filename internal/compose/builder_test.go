package compose

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func echo(prompt string) (string, error) { return prompt, nil }

func TestGenerateSection(t *testing.T) {
	svc, _, _ := newTestService(t, echo)

	got, err := svc.GenerateSection(context.Background(), "Summary", "10 years in payments")
	require.NoError(t, err)
	require.Equal(t, "Professional Summary", got.Title)
	require.Contains(t, got.Content, "Write a compelling professional summary highlighting key achievements and expertise for a resume.")
	require.Contains(t, got.Content, "10 years in payments")
}

func TestSectionTypeValidation(t *testing.T) {
	svc, _, provider := newTestService(t, echo)

	_, err := svc.GenerateSection(context.Background(), "hobbies", "chess")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "sectionType", verr.Field)

	_, err = svc.ImproveSection(context.Background(), "", "content")
	require.True(t, errors.As(err, &verr))

	_, err = svc.ImproveSection(context.Background(), "projects", "")
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "content", verr.Field)
	require.Equal(t, 0, provider.calls())
}

func TestImproveSection(t *testing.T) {
	svc, _, _ := newTestService(t, echo)

	got, err := svc.ImproveSection(context.Background(), "experience", "Did things")
	require.NoError(t, err)
	require.Equal(t, "Work Experience", got.Title)
	require.Contains(t, got.Content, "Improve this Work Experience section of a resume")
}

func TestSuggestKeywords(t *testing.T) {
	svc, _, _ := newTestService(t, func(string) (string, error) {
		return "Technical skills keywords:\n1. Go\n2) Kafka\n- **Distributed systems**\n\n• Mentoring", nil
	})

	got, err := svc.SuggestKeywords(context.Background(), "Built Kafka pipelines", "fintech")
	require.NoError(t, err)
	require.Equal(t, []string{"Go", "Kafka", "Distributed systems", "Mentoring"}, got)

	_, err = svc.SuggestKeywords(context.Background(), "content", "")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "industry", verr.Field)
}

func TestFormatSectionUnknownFormatUsesModern(t *testing.T) {
	svc, _, _ := newTestService(t, echo)

	got, err := svc.FormatSection(context.Background(), "Led teams", "baroque")
	require.NoError(t, err)
	require.Contains(t, got, "in a modern style")
	require.Contains(t, got, "Style notes: Clean, minimalist style with clear hierarchy")

	got, err = svc.FormatSection(context.Background(), "Led teams", "Executive")
	require.NoError(t, err)
	require.Contains(t, got, "Sophisticated style emphasizing leadership")
}

func TestImproveWritingHasNoFallback(t *testing.T) {
	svc, gw, _ := newTestService(t, alwaysFail)

	_, err := svc.ImproveWriting(context.Background(), "i has a idea", "formal")
	require.Error(t, err)
	require.False(t, gw.FallbackActive())
}

func TestImproveWritingStyle(t *testing.T) {
	svc, _, _ := newTestService(t, echo)

	got, err := svc.ImproveWriting(context.Background(), "i has a idea", "formal")
	require.NoError(t, err)
	require.Contains(t, got, "using a formal tone")

	got, err = svc.ImproveWriting(context.Background(), "i has a idea", "")
	require.NoError(t, err)
	require.Contains(t, got, "Improve the following text:")
}

func TestSectionsSorted(t *testing.T) {
	list := Sections()
	require.Len(t, list, 5)
	require.Equal(t, "education", list[0].Type)
	require.Equal(t, "summary", list[4].Type)
}

func TestParseHelpers(t *testing.T) {
	require.Equal(t, `{"a":1}`, extractJSON("Sure! Here it is: {\"a\":1} hope that helps"))
	require.Equal(t, "plain", extractJSON("plain"))
	require.Equal(t, []string{}, parseList("Heading:\n\n"))
	require.Equal(t, "10x growth", trimOrdinal("10x growth"))
}
