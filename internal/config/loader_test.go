package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/writify/writify/internal/gateway"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv(GeminiAPIKeyEnv, "")
	t.Setenv(OpenAIAPIKeyEnv, "")
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoadDefaults(t *testing.T) {
	v := newViper(t)

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Server.WriteTimeout)
	assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

	assert.Equal(t, "libsql", cfg.Store.Driver)
	assert.Equal(t, filepath.Join(gfconfig.GetAppDataDir("writify"), "writify.db"), cfg.Store.Path)
	assert.Equal(t, filepath.Join(gfconfig.GetAppDataDir("writify"), "exports"), cfg.Export.Dir)

	assert.Equal(t, 60*time.Second, cfg.AILink.DefaultTimeout)
	assert.Empty(t, cfg.AILink.Providers)

	assert.Equal(t, gateway.DefaultPolicy(), cfg.Gateway.Policy())

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9090, cfg.Metrics.Port)
	assert.True(t, cfg.Health.Enabled)
	assert.False(t, cfg.Debug.PprofEnabled)

	assert.Same(t, cfg, GetConfig())
}

func TestLoadConfigFile(t *testing.T) {
	v := newViper(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 8181
gateway:
  hourly_request_limit: 5
  min_request_interval: 250ms
  fallback_cooldown: 15m
ailink:
  default_provider: gemini
  providers:
    gemini:
      enabled: true
      ai_provider: gemini
      models:
        default: gemini-1.5-pro
      credentials:
        - label: primary
          api_key: file-key
          priority: 2
  routing:
    writing: gemini
`), 0o600))
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Gateway.HourlyRequestLimit)
	assert.Equal(t, 250*time.Millisecond, cfg.Gateway.MinRequestInterval)
	assert.Equal(t, 15*time.Minute, cfg.Gateway.Policy().FallbackCooldown)

	provider, ok := cfg.AILink.Providers["gemini"]
	require.True(t, ok)
	assert.True(t, provider.Enabled)
	assert.Equal(t, "gemini-1.5-pro", provider.Models["default"])
	require.Len(t, provider.Credentials, 1)
	assert.Equal(t, "file-key", provider.Credentials[0].APIKey)
	assert.Equal(t, 2, provider.Credentials[0].Priority)
	assert.Equal(t, "gemini", cfg.AILink.Routing["writing"])
}

func TestLoadEnvOverrides(t *testing.T) {
	v := newViper(t)
	t.Setenv("WRITIFY_PORT", "9001")
	t.Setenv("WRITIFY_LOG_LEVEL", "debug")
	t.Setenv("WRITIFY_GATEWAY_MAX_RETRIES", "4")
	t.Setenv("WRITIFY_GATEWAY_RETRY_DELAY", "2s")
	t.Setenv("WRITIFY_EXPORT_DIR", "/tmp/letters")

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 4, cfg.Gateway.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Gateway.RetryDelay)
	assert.Equal(t, "/tmp/letters", cfg.Export.Dir)
}

func TestLoadRuntimeOverridesWin(t *testing.T) {
	v := newViper(t)
	t.Setenv("WRITIFY_PORT", "9001")

	cfg, err := LoadFrom(v, map[string]any{"server": map[string]any{"port": 7070}})
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoadAILinkDynamicEnv(t *testing.T) {
	v := newViper(t)
	t.Setenv("WRITIFY_AILINK_PROVIDERS_OPENAI_LOCAL_ENABLED", "true")
	t.Setenv("WRITIFY_AILINK_PROVIDERS_OPENAI_LOCAL_AI_PROVIDER", "OpenAI")
	t.Setenv("WRITIFY_AILINK_PROVIDERS_OPENAI_LOCAL_BASE_URL", "http://localhost:11434/v1")
	t.Setenv("WRITIFY_AILINK_PROVIDERS_OPENAI_LOCAL_MODELS_DEFAULT", "llama3")
	t.Setenv("WRITIFY_AILINK_PROVIDERS_OPENAI_LOCAL_SELECTION_POLICY", "round_robin")
	t.Setenv("WRITIFY_AILINK_PROVIDERS_OPENAI_LOCAL_ROLES", "writing, analysis")
	t.Setenv("WRITIFY_AILINK_PROVIDERS_OPENAI_LOCAL_CREDENTIALS_0_API_KEY", "k0")
	t.Setenv("WRITIFY_AILINK_PROVIDERS_OPENAI_LOCAL_CREDENTIALS_0_PRIORITY", "3")
	t.Setenv("WRITIFY_AILINK_PROVIDERS_OPENAI_LOCAL_CREDENTIALS_1_API_KEY", "k1")
	t.Setenv("WRITIFY_AILINK_PROVIDERS_OPENAI_LOCAL_CREDENTIALS_1_ENABLED", "false")
	t.Setenv("WRITIFY_AILINK_ROUTING_RESUME_ANALYSIS", "openai-local")

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	provider, ok := cfg.AILink.Providers["openai-local"]
	require.True(t, ok)
	assert.True(t, provider.Enabled)
	assert.Equal(t, "openai", provider.AIProvider)
	assert.Equal(t, "http://localhost:11434/v1", provider.BaseURL)
	assert.Equal(t, "llama3", provider.Models["default"])
	assert.Equal(t, "round_robin", provider.SelectionPolicy)
	assert.Equal(t, []string{"writing", "analysis"}, provider.Roles)
	require.Len(t, provider.Credentials, 2)
	assert.Equal(t, "k0", provider.Credentials[0].APIKey)
	assert.Equal(t, 3, provider.Credentials[0].Priority)
	assert.False(t, provider.Credentials[1].Enabled)
	assert.Equal(t, "openai-local", cfg.AILink.Routing["resume-analysis"])
}

func TestLoadProviderKeyConvenience(t *testing.T) {
	t.Run("GeminiBecomesDefault", func(t *testing.T) {
		v := newViper(t)
		t.Setenv(GeminiAPIKeyEnv, "gem-key")

		cfg, err := LoadFrom(v)
		require.NoError(t, err)

		assert.Equal(t, "gemini", cfg.AILink.DefaultProvider)
		provider := cfg.AILink.Providers["gemini"]
		assert.True(t, provider.Enabled)
		assert.Equal(t, "gemini", provider.AIProvider)
		assert.Equal(t, "gemini-1.5-flash", provider.Models["default"])
		require.Len(t, provider.Credentials, 1)
		assert.Equal(t, "gem-key", provider.Credentials[0].APIKey)
	})

	t.Run("ExplicitDefaultKept", func(t *testing.T) {
		v := newViper(t)
		t.Setenv(OpenAIAPIKeyEnv, "oa-key")
		t.Setenv("WRITIFY_AILINK_DEFAULT_PROVIDER", "custom")

		cfg, err := LoadFrom(v)
		require.NoError(t, err)

		assert.Equal(t, "custom", cfg.AILink.DefaultProvider)
		assert.Equal(t, "gpt-4o-mini", cfg.AILink.Providers["openai"].Models["default"])
	})

	t.Run("ConfiguredProviderUntouched", func(t *testing.T) {
		v := newViper(t)
		v.Set("ailink.providers.gemini.credentials", []any{map[string]any{"api_key": "from-file"}})
		t.Setenv(GeminiAPIKeyEnv, "gem-key")

		cfg, err := LoadFrom(v)
		require.NoError(t, err)
		require.Len(t, cfg.AILink.Providers["gemini"].Credentials, 1)
		assert.Equal(t, "from-file", cfg.AILink.Providers["gemini"].Credentials[0].APIKey)
	})
}

func TestDefaultPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	require.Equal(t, filepath.Join(gfconfig.GetAppConfigDir("writify"), "config.yaml"), DefaultConfigPath())
	require.Equal(t, "writify.db", filepath.Base(DefaultStorePath()))
}

func TestToSlug(t *testing.T) {
	require.Equal(t, "resume-analysis", toSlug("RESUME_ANALYSIS"))
	require.Equal(t, "writing", toSlug(" WRITING "))
	require.Equal(t, "", toSlug("__"))
}
