// Package appid holds the application identity used for config paths, env
// prefixes and user-facing names.
package appid

import "strings"

const (
	// BinaryName is the CLI executable name.
	BinaryName = "writify"
	// ConfigName is the directory name used under the XDG config and data roots.
	ConfigName = "writify"
	// EnvPrefix prefixes every environment variable the app reads.
	EnvPrefix = "WRITIFY_"
	// Vendor is the owning organisation.
	Vendor = "writify"
	// Description is the one-line summary shown in CLI help.
	Description = "AI cover letter and resume writing assistant with offline fallback"
)

// Identity describes the running application.
type Identity struct {
	BinaryName  string
	ConfigName  string
	EnvPrefix   string
	Vendor      string
	Description string
}

// Get returns the application identity.
func Get() Identity {
	return Identity{
		BinaryName:  BinaryName,
		ConfigName:  ConfigName,
		EnvPrefix:   EnvPrefix,
		Vendor:      Vendor,
		Description: Description,
	}
}

// Env returns the prefixed environment variable name for key.
func (i Identity) Env(key string) string {
	prefix := i.EnvPrefix
	if prefix != "" && !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}
	return prefix + strings.ToUpper(strings.TrimSpace(key))
}
