package compose

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/writify/writify/internal/core"
)

func TestRegisterCustomTemplate(t *testing.T) {
	svc, gw, _ := newTestService(t, alwaysFail)
	gw.ActivateFallback()

	tpl, err := svc.RegisterCustomTemplate(core.CustomTemplate{
		ID:        4,
		Name:      " Short ",
		Structure: "Hello {hiring_manager}, I want the {position} job at {company}.",
	})
	require.NoError(t, err)
	require.Equal(t, "custom-4", tpl.ID)
	require.Equal(t, "Short", tpl.Name)
	require.False(t, tpl.Builtin)

	req := validLetter()
	req.TemplateID = "custom-4"
	text, err := svc.CoverLetter(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "Hello Hiring Manager, I want the Backend Engineer job at Acme Payments.", text)
}

func TestRegisterCustomTemplateValidation(t *testing.T) {
	svc, _, _ := newTestService(t, alwaysFail)

	_, err := svc.RegisterCustomTemplate(core.CustomTemplate{ID: 1, Structure: "x"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "name", verr.Field)

	_, err = svc.RegisterCustomTemplate(core.CustomTemplate{ID: 1, Name: "x"})
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "structure", verr.Field)
}

func TestValidateCustomTemplateRequiresCompanyAndPosition(t *testing.T) {
	var verr *ValidationError

	err := ValidateCustomTemplate(core.CustomTemplate{Name: "Bare", Structure: "Dear {hiring_manager},\n\n{job_match}\n\nRegards"})
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "structure", verr.Field)
	require.Contains(t, verr.Error(), "{company}")

	err = ValidateCustomTemplate(core.CustomTemplate{Name: "Half", Structure: "I admire {company}."})
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Error(), "{position}")

	require.NoError(t, ValidateCustomTemplate(core.CustomTemplate{Name: "Full", Structure: "{position} at {company}"}))
}

func TestStoredTemplateWithoutPlaceholdersStillNamesCompanyAndPosition(t *testing.T) {
	svc, _, _ := newTestService(t, alwaysFail)

	_, err := svc.RegisterCustomTemplate(core.CustomTemplate{
		ID:        9,
		Name:      "Bare",
		Structure: "Dear {hiring_manager},\n\n{job_match}\n\nRegards",
	})
	require.NoError(t, err)

	req := validLetter()
	req.TemplateID = CustomTemplateID(9)
	text, err := svc.CoverLetter(context.Background(), req)
	require.NoError(t, err)
	require.Contains(t, text, "Acme Payments")
	require.Contains(t, text, "Backend Engineer")
}

func TestApplyPreferences(t *testing.T) {
	prefs := &core.Preferences{DefaultTemplate: "creative", PreferredCreativity: 8}

	req := validLetter()
	req.TemplateID = ""
	req.ApplyPreferences(prefs)
	require.Equal(t, "creative", req.TemplateID)
	require.Equal(t, 8, req.Creativity)

	req = validLetter()
	req.TemplateID = "minimal"
	req.Creativity = 2
	req.ApplyPreferences(prefs)
	require.Equal(t, "minimal", req.TemplateID)
	require.Equal(t, 2, req.Creativity)

	req.ApplyPreferences(nil)
	require.Equal(t, "minimal", req.TemplateID)
}
