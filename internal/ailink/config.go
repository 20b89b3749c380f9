package ailink

import "time"

// Config defines provider configuration for AILink.
//
// This is intentionally self-contained so it can later be extracted as a
// standalone library configuration subtree.
type Config struct {
	DefaultProvider string        `mapstructure:"default_provider"`
	DefaultTimeout  time.Duration `mapstructure:"default_timeout"`

	// PromptsDir overrides individual prompts of the embedded set by slug.
	PromptsDir string `mapstructure:"prompts_dir"`

	// Providers is a set of provider instances keyed by a user-defined id (slug).
	// Each instance declares its underlying provider type via AIProvider.
	Providers map[string]ProviderInstanceConfig `mapstructure:"providers"`

	Routing map[string]string `mapstructure:"routing"`
}

// ProviderInstanceConfig defines a configured provider instance (e.g. "writify-gemini").
type ProviderInstanceConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// AIProvider is the driver identifier: "gemini" or "openai".
	AIProvider string `mapstructure:"ai_provider"`

	// SelectionPolicy controls which credential is chosen.
	// Supported values: "priority" (default), "round_robin".
	SelectionPolicy string `mapstructure:"selection_policy"`

	// DefaultCredential, if set, forces selecting the matching credential label.
	// If missing/invalid, selection falls back to SelectionPolicy.
	DefaultCredential string `mapstructure:"default_credential"`

	BaseURL string            `mapstructure:"base_url"`
	Models  map[string]string `mapstructure:"models"`
	Roles   []string          `mapstructure:"roles"`

	Credentials []CredentialConfig `mapstructure:"credentials"`
}

// CredentialConfig is a single credential for a provider instance.
//
// Multiple credentials enable key rotation and per-key quota handling.
type CredentialConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Label    string `mapstructure:"label"`
	APIKey   string `mapstructure:"api_key"`
	Priority int    `mapstructure:"priority"`
}
