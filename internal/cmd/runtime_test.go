package cmd

import (
	"context"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/writify/writify/internal/compose"
	"github.com/writify/writify/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv(config.GeminiAPIKeyEnv, "")
	t.Setenv(config.OpenAIAPIKeyEnv, "")

	v := viper.New()
	config.SetDefaults(v)
	v.Set("export.dir", t.TempDir())
	cfg, err := config.LoadFrom(v)
	require.NoError(t, err)
	return cfg
}

func TestBuildRuntimeWithoutProviderServesOffline(t *testing.T) {
	rt, err := buildRuntime(context.Background(), testConfig(t), runtimeOptions{})
	require.NoError(t, err)
	defer func() { require.NoError(t, rt.Close()) }()

	require.Error(t, rt.providerErr)
	require.True(t, rt.gateway.FallbackActive())
	require.Nil(t, rt.store)

	text, err := rt.service.CoverLetter(context.Background(), compose.CoverLetterRequest{
		JobDescription: "Build payment APIs",
		Skills:         []string{"Go"},
		CompanyName:    "Acme",
		Position:       "Engineer",
	})
	require.NoError(t, err)
	require.Contains(t, text, "Acme")
	require.Contains(t, text, "Engineer")
}
