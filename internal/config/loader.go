// Package config provides centralized configuration management for Writify.
// Layers, lowest first: SetDefaults, the optional YAML config file read by
// viper, WRITIFY_* environment variables, then command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/writify/writify/internal/appid"
	"github.com/writify/writify/internal/gateway"
)

var (
	appConfig *Config
	configMu  sync.RWMutex
)

// EnvVarSpec defines environment variable mappings for config fields
// following the pattern: {PREFIX}{NAME} maps to config path
type EnvVarSpec = gfconfig.EnvVarSpec

// Environment variable types
const (
	EnvString = gfconfig.EnvString
	EnvInt    = gfconfig.EnvInt
	EnvBool   = gfconfig.EnvBool
)

// Convenience keys that enable a provider without any config file.
const (
	GeminiAPIKeyEnv = "GEMINI_API_KEY"
	OpenAIAPIKeyEnv = "OPENAI_API_KEY"
)

// SetDefaults seeds v with the built-in defaults.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", DefaultStorePath())
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	v.SetDefault("ailink.default_timeout", "60s")
	v.SetDefault("ailink.prompts_dir", "")

	policy := defaultGateway()
	v.SetDefault("gateway.hourly_request_limit", policy.HourlyRequestLimit)
	v.SetDefault("gateway.quota_window", policy.QuotaWindow.String())
	v.SetDefault("gateway.min_request_interval", policy.MinRequestInterval.String())
	v.SetDefault("gateway.max_retries", policy.MaxRetries)
	v.SetDefault("gateway.retry_delay", policy.RetryDelay.String())
	v.SetDefault("gateway.provider_timeout", policy.ProviderTimeout.String())
	v.SetDefault("gateway.safety_threshold", policy.SafetyThreshold)
	v.SetDefault("gateway.fallback_cooldown", "0s")
	v.SetDefault("gateway.clear_fallback_after_successes", 0)

	v.SetDefault("export.dir", DefaultExportDir())

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("health.enabled", true)

	v.SetDefault("debug.enabled", false)
	v.SetDefault("debug.pprof_enabled", false)
}

// LoadFrom decodes the effective configuration held by v after folding in
// environment overrides and any runtime overrides. It is safe to call more
// than once.
func LoadFrom(v *viper.Viper, runtimeOverrides ...map[string]any) (*Config, error) {
	if v == nil {
		v = viper.New()
		SetDefaults(v)
	}

	envOverrides, err := gfconfig.LoadEnvOverrides(getEnvSpecs())
	if err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}
	applyAILinkDynamicEnvOverrides(appid.EnvPrefix, envOverrides)
	applyProviderKeyOverrides(v, envOverrides)

	if len(envOverrides) > 0 {
		if err := v.MergeConfigMap(envOverrides); err != nil {
			return nil, fmt.Errorf("failed to merge environment overrides: %w", err)
		}
	}
	for _, overrides := range runtimeOverrides {
		if len(overrides) == 0 {
			continue
		}
		if err := v.MergeConfigMap(overrides); err != nil {
			return nil, fmt.Errorf("failed to merge runtime overrides: %w", err)
		}
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}
	if strings.TrimSpace(cfg.Export.Dir) == "" {
		cfg.Export.Dir = DefaultExportDir()
	}

	setConfig(cfg)
	return cfg, nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

func defaultGateway() GatewayConfig {
	p := gateway.DefaultPolicy()
	return GatewayConfig{
		HourlyRequestLimit: p.HourlyRequestLimit,
		QuotaWindow:        p.QuotaWindow,
		MinRequestInterval: p.MinRequestInterval,
		MaxRetries:         p.MaxRetries,
		RetryDelay:         p.RetryDelay,
		ProviderTimeout:    p.ProviderTimeout,
		SafetyThreshold:    p.SafetyThreshold,
	}
}

// getEnvSpecs maps WRITIFY_* environment variables to config paths.
func getEnvSpecs() []EnvVarSpec {
	prefix := appid.EnvPrefix

	return []EnvVarSpec{
		{Name: prefix + "HOST", Path: []string{"server", "host"}, Type: EnvString},
		{Name: prefix + "PORT", Path: []string{"server", "port"}, Type: EnvInt},
		// Duration fields are parsed as strings and converted by mapstructure decode hook
		{Name: prefix + "READ_TIMEOUT", Path: []string{"server", "read_timeout"}, Type: EnvString},
		{Name: prefix + "WRITE_TIMEOUT", Path: []string{"server", "write_timeout"}, Type: EnvString},
		{Name: prefix + "IDLE_TIMEOUT", Path: []string{"server", "idle_timeout"}, Type: EnvString},
		{Name: prefix + "SHUTDOWN_TIMEOUT", Path: []string{"server", "shutdown_timeout"}, Type: EnvString},

		{Name: prefix + "LOG_LEVEL", Path: []string{"logging", "level"}, Type: EnvString},
		{Name: prefix + "LOG_PROFILE", Path: []string{"logging", "profile"}, Type: EnvString},

		{Name: prefix + "DB_DRIVER", Path: []string{"store", "driver"}, Type: EnvString},
		{Name: prefix + "DB_PATH", Path: []string{"store", "path"}, Type: EnvString},
		{Name: prefix + "DB_URL", Path: []string{"store", "url"}, Type: EnvString},
		{Name: prefix + "DB_AUTH_TOKEN", Path: []string{"store", "auth_token"}, Type: EnvString},

		{Name: prefix + "AILINK_DEFAULT_PROVIDER", Path: []string{"ailink", "default_provider"}, Type: EnvString},
		{Name: prefix + "AILINK_DEFAULT_TIMEOUT", Path: []string{"ailink", "default_timeout"}, Type: EnvString},
		{Name: prefix + "AILINK_PROMPTS_DIR", Path: []string{"ailink", "prompts_dir"}, Type: EnvString},

		{Name: prefix + "GATEWAY_HOURLY_REQUEST_LIMIT", Path: []string{"gateway", "hourly_request_limit"}, Type: EnvInt},
		{Name: prefix + "GATEWAY_QUOTA_WINDOW", Path: []string{"gateway", "quota_window"}, Type: EnvString},
		{Name: prefix + "GATEWAY_MIN_REQUEST_INTERVAL", Path: []string{"gateway", "min_request_interval"}, Type: EnvString},
		{Name: prefix + "GATEWAY_MAX_RETRIES", Path: []string{"gateway", "max_retries"}, Type: EnvInt},
		{Name: prefix + "GATEWAY_RETRY_DELAY", Path: []string{"gateway", "retry_delay"}, Type: EnvString},
		{Name: prefix + "GATEWAY_PROVIDER_TIMEOUT", Path: []string{"gateway", "provider_timeout"}, Type: EnvString},
		{Name: prefix + "GATEWAY_SAFETY_THRESHOLD", Path: []string{"gateway", "safety_threshold"}, Type: EnvString},
		{Name: prefix + "GATEWAY_FALLBACK_COOLDOWN", Path: []string{"gateway", "fallback_cooldown"}, Type: EnvString},
		{Name: prefix + "GATEWAY_CLEAR_FALLBACK_AFTER_SUCCESSES", Path: []string{"gateway", "clear_fallback_after_successes"}, Type: EnvInt},

		{Name: prefix + "EXPORT_DIR", Path: []string{"export", "dir"}, Type: EnvString},

		{Name: prefix + "METRICS_ENABLED", Path: []string{"metrics", "enabled"}, Type: EnvBool},
		{Name: prefix + "METRICS_PORT", Path: []string{"metrics", "port"}, Type: EnvInt},

		{Name: prefix + "HEALTH_ENABLED", Path: []string{"health", "enabled"}, Type: EnvBool},

		{Name: prefix + "DEBUG_ENABLED", Path: []string{"debug", "enabled"}, Type: EnvBool},
		{Name: prefix + "DEBUG_PPROF_ENABLED", Path: []string{"debug", "pprof_enabled"}, Type: EnvBool},
	}
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(appid.ConfigName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultDataDir returns the XDG-compliant data directory for the app.
func DefaultDataDir() string {
	return gfconfig.GetAppDataDir(appid.ConfigName)
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	dataDir := DefaultDataDir()
	if strings.TrimSpace(dataDir) == "" {
		return "./" + appid.BinaryName + ".db"
	}
	return filepath.Join(dataDir, appid.BinaryName+".db")
}

// DefaultExportDir returns the directory exported letters are written to.
func DefaultExportDir() string {
	dataDir := DefaultDataDir()
	if strings.TrimSpace(dataDir) == "" {
		return "./exports"
	}
	return filepath.Join(dataDir, "exports")
}

// applyProviderKeyOverrides registers a gemini or openai provider from the
// plain vendor API key variables when no provider with that id is configured.
func applyProviderKeyOverrides(v *viper.Viper, envOverrides map[string]any) {
	providers := []struct {
		id    string
		env   string
		model string
	}{
		{id: "gemini", env: GeminiAPIKeyEnv, model: "gemini-1.5-flash"},
		{id: "openai", env: OpenAIAPIKeyEnv, model: "gpt-4o-mini"},
	}

	defaultProvider := strings.TrimSpace(v.GetString("ailink.default_provider"))
	ailink := ensureMap(envOverrides, "ailink")
	if value, ok := ailink["default_provider"].(string); ok && strings.TrimSpace(value) != "" {
		defaultProvider = value
	}

	for _, p := range providers {
		key := strings.TrimSpace(os.Getenv(p.env))
		if key == "" || v.IsSet("ailink.providers."+p.id) {
			continue
		}
		configured := ensureMap(ensureMap(ailink, "providers"), p.id)
		if _, exists := configured["credentials"]; exists {
			continue
		}
		if _, set := configured["enabled"]; !set {
			configured["enabled"] = true
		}
		if _, set := configured["ai_provider"]; !set {
			configured["ai_provider"] = p.id
		}
		if models := ensureMap(configured, "models"); models["default"] == nil {
			models["default"] = p.model
		}
		configured["credentials"] = []any{map[string]any{
			"label":   "env",
			"api_key": key,
			"enabled": true,
		}}
		if defaultProvider == "" {
			defaultProvider = p.id
			ailink["default_provider"] = p.id
		}
	}

	if len(ailink) == 0 {
		delete(envOverrides, "ailink")
	}
}

func applyAILinkDynamicEnvOverrides(prefix string, envOverrides map[string]any) {
	providerPrefix := prefix + "AILINK_PROVIDERS_"
	routingPrefix := prefix + "AILINK_ROUTING_"

	for _, item := range os.Environ() {
		key, value, ok := strings.Cut(item, "=")
		if !ok {
			continue
		}
		if strings.TrimSpace(value) == "" {
			continue
		}

		switch {
		case strings.HasPrefix(key, providerPrefix):
			applyAILinkProviderOverride(envOverrides, key[len(providerPrefix):], value)
		case strings.HasPrefix(key, routingPrefix):
			applyAILinkRoutingOverride(envOverrides, key[len(routingPrefix):], value)
		}
	}
}

func applyAILinkRoutingOverride(envOverrides map[string]any, rawRole string, providerID string) {
	role := toSlug(rawRole)
	providerID = strings.TrimSpace(providerID)
	if role == "" || providerID == "" {
		return
	}

	ailink := ensureMap(envOverrides, "ailink")
	routing := ensureMap(ailink, "routing")
	routing[role] = providerID
}

func applyAILinkProviderOverride(envOverrides map[string]any, raw string, value string) {
	parts := strings.Split(strings.TrimSpace(raw), "_")
	if len(parts) < 2 {
		return
	}

	section := -1
	for i, part := range parts {
		switch part {
		case "ENABLED", "AI", "BASE", "MODELS", "ROLES", "CREDENTIALS", "DEFAULT", "SELECTION":
			section = i
		}
		if section != -1 {
			break
		}
	}
	if section <= 0 {
		return
	}

	providerID := strings.ToLower(strings.Join(parts[:section], "-"))
	if providerID == "" {
		return
	}

	ailink := ensureMap(envOverrides, "ailink")
	providers := ensureMap(ailink, "providers")
	provider := ensureMap(providers, providerID)
	value = strings.TrimSpace(value)

	rest := parts[section:]
	switch {
	case len(rest) == 1 && rest[0] == "ENABLED":
		provider["enabled"] = strings.EqualFold(value, "true")
	case len(rest) == 2 && rest[0] == "AI" && rest[1] == "PROVIDER":
		provider["ai_provider"] = strings.ToLower(value)
	case len(rest) == 2 && rest[0] == "DEFAULT" && rest[1] == "CREDENTIAL":
		provider["default_credential"] = value
	case len(rest) == 2 && rest[0] == "SELECTION" && rest[1] == "POLICY":
		provider["selection_policy"] = strings.ToLower(value)
	case len(rest) == 2 && rest[0] == "BASE" && rest[1] == "URL":
		provider["base_url"] = value
	case len(rest) >= 2 && rest[0] == "MODELS":
		models := ensureMap(provider, "models")
		models[strings.ToLower(strings.Join(rest[1:], "_"))] = value
	case len(rest) == 1 && rest[0] == "ROLES":
		roles := make([]any, 0)
		for _, role := range strings.Split(value, ",") {
			if role = strings.TrimSpace(role); role != "" {
				roles = append(roles, strings.ToLower(role))
			}
		}
		provider["roles"] = roles
	case len(rest) >= 3 && rest[0] == "CREDENTIALS":
		idx, err := strconv.Atoi(rest[1])
		if err != nil || idx < 0 {
			return
		}
		field := strings.ToLower(strings.Join(rest[2:], "_"))
		if field == "" {
			return
		}

		creds := ensureSlice(provider, "credentials", idx+1)
		cred := ensureSliceMap(creds, idx)
		switch field {
		case "priority":
			if parsed, err := strconv.Atoi(value); err == nil {
				cred[field] = parsed
			} else {
				cred[field] = value
			}
		case "enabled":
			cred[field] = strings.EqualFold(value, "true")
		default:
			cred[field] = value
		}
	}
}

func ensureMap(parent map[string]any, key string) map[string]any {
	if parent == nil {
		return map[string]any{}
	}
	if existing, ok := parent[key]; ok {
		if typed, ok := existing.(map[string]any); ok {
			return typed
		}
	}
	next := map[string]any{}
	parent[key] = next
	return next
}

func ensureSlice(parent map[string]any, key string, length int) []any {
	var existing []any
	if raw, ok := parent[key]; ok {
		existing, _ = raw.([]any)
	}
	for len(existing) < length {
		existing = append(existing, map[string]any{})
	}
	parent[key] = existing
	return existing
}

func ensureSliceMap(slice []any, idx int) map[string]any {
	if idx < 0 || idx >= len(slice) {
		return map[string]any{}
	}
	if typed, ok := slice[idx].(map[string]any); ok {
		return typed
	}
	m := map[string]any{}
	slice[idx] = m
	return m
}

func toSlug(raw string) string {
	parts := strings.Split(strings.TrimSpace(raw), "_")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		p := strings.ToLower(strings.TrimSpace(part))
		if p == "" {
			continue
		}
		clean = append(clean, p)
	}
	return strings.Join(clean, "-")
}
