package ailink

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/writify/writify/internal/ailink/driver"
	"github.com/writify/writify/internal/ailink/driver/gemini"
	"github.com/writify/writify/internal/ailink/driver/openai"
)

const defaultModelKey = "default"

var errNoProviders = errors.New("no enabled providers configured")

// Registry resolves a role to a provider instance, credential, driver and model.
// Drivers are built once per provider and credential.
type Registry struct {
	cfg Config

	mu      sync.Mutex
	drivers map[string]driver.Driver
	turns   map[string]int
}

// ResolvedProvider is the outcome of Resolve.
type ResolvedProvider struct {
	ProviderID string
	Provider   ProviderInstanceConfig
	Credential CredentialConfig
	Driver     driver.Driver
	Model      string
	BaseURL    string
}

// NewRegistry builds a registry over cfg.
func NewRegistry(cfg Config) *Registry {
	return &Registry{cfg: cfg}
}

// Resolve picks the provider, credential and model for role. A non-empty
// model wins over the provider's models table, which is looked up by role
// and then by "default".
func (r *Registry) Resolve(role, model string) (*ResolvedProvider, error) {
	if r == nil {
		return nil, errors.New("ailink registry not configured")
	}
	role = strings.TrimSpace(role)

	id, pcfg, err := r.pickProvider(role)
	if err != nil {
		return nil, err
	}
	cred, credKey, err := r.pickCredential(id, pcfg)
	if err != nil {
		return nil, err
	}
	drv, err := r.driver(id, credKey, pcfg, cred)
	if err != nil {
		return nil, err
	}
	if model = strings.TrimSpace(model); model == "" {
		if model = modelFor(pcfg, role); model == "" {
			return nil, fmt.Errorf("model not configured for provider %q", id)
		}
	}

	baseURL := strings.TrimSpace(pcfg.BaseURL)
	if client, ok := drv.(*openai.Client); ok {
		baseURL = client.BaseURL
	}
	return &ResolvedProvider{
		ProviderID: id,
		Provider:   pcfg,
		Credential: cred,
		Driver:     drv,
		Model:      model,
		BaseURL:    baseURL,
	}, nil
}

// pickProvider applies, in order: explicit routing for role, the first
// enabled provider (by id) declaring role, the default provider, and the
// only enabled provider.
func (r *Registry) pickProvider(role string) (string, ProviderInstanceConfig, error) {
	if role != "" {
		if id := strings.TrimSpace(r.cfg.Routing[role]); id != "" {
			return r.enabledProvider(id, fmt.Sprintf("role %q", role))
		}
		for _, id := range r.enabledIDs() {
			if hasRole(r.cfg.Providers[id].Roles, role) {
				return id, r.cfg.Providers[id], nil
			}
		}
	}

	if id := strings.TrimSpace(r.cfg.DefaultProvider); id != "" {
		return r.enabledProvider(id, "default provider")
	}

	switch ids := r.enabledIDs(); len(ids) {
	case 0:
		return "", ProviderInstanceConfig{}, errNoProviders
	case 1:
		return ids[0], r.cfg.Providers[ids[0]], nil
	default:
		return "", ProviderInstanceConfig{}, fmt.Errorf("%d providers enabled and no routing or default provider set", len(ids))
	}
}

func (r *Registry) enabledProvider(id, source string) (string, ProviderInstanceConfig, error) {
	pcfg, ok := r.cfg.Providers[id]
	if !ok {
		return "", ProviderInstanceConfig{}, fmt.Errorf("%s names unknown provider %q", source, id)
	}
	if !pcfg.Enabled {
		return "", ProviderInstanceConfig{}, fmt.Errorf("%s names provider %q, which is disabled", source, id)
	}
	return id, pcfg, nil
}

func (r *Registry) enabledIDs() []string {
	ids := make([]string, 0, len(r.cfg.Providers))
	for id, pcfg := range r.cfg.Providers {
		if pcfg.Enabled {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// pickCredential returns a credential and the key its driver is cached
// under. Credentials without an API key are skipped; when none has one, the
// first is returned so the driver reports the missing key.
func (r *Registry) pickCredential(providerID string, pcfg ProviderInstanceConfig) (CredentialConfig, string, error) {
	if len(pcfg.Credentials) == 0 {
		return CredentialConfig{}, "", fmt.Errorf("provider %q has no credentials configured", providerID)
	}

	usable := usableCredentials(pcfg.Credentials)
	if len(usable) == 0 {
		return pcfg.Credentials[0], credentialKey(pcfg.Credentials[0], "0"), nil
	}

	if want := strings.TrimSpace(pcfg.DefaultCredential); want != "" {
		for _, cred := range usable {
			if strings.EqualFold(strings.TrimSpace(cred.Label), want) {
				return cred, credentialKey(cred, want), nil
			}
		}
	}

	top, priority := highestPriority(usable)
	idx := 0
	if strings.EqualFold(strings.TrimSpace(pcfg.SelectionPolicy), "round_robin") {
		idx = r.nextTurn(providerID+":"+strconv.Itoa(priority), len(top))
	}
	return top[idx], credentialKey(top[idx], "p"+strconv.Itoa(priority)), nil
}

func usableCredentials(creds []CredentialConfig) []CredentialConfig {
	out := make([]CredentialConfig, 0, len(creds))
	for _, cred := range creds {
		// An unlabeled credential is on unless it lacks a key.
		if !cred.Enabled && strings.TrimSpace(cred.Label) != "" {
			continue
		}
		if strings.TrimSpace(cred.APIKey) == "" {
			continue
		}
		out = append(out, cred)
	}
	return out
}

func highestPriority(creds []CredentialConfig) ([]CredentialConfig, int) {
	best := creds[0].Priority
	for _, cred := range creds[1:] {
		best = max(best, cred.Priority)
	}
	top := make([]CredentialConfig, 0, len(creds))
	for _, cred := range creds {
		if cred.Priority == best {
			top = append(top, cred)
		}
	}
	return top, best
}

func credentialKey(cred CredentialConfig, fallback string) string {
	if label := strings.TrimSpace(cred.Label); label != "" {
		return label
	}
	return fallback
}

func (r *Registry) nextTurn(key string, n int) int {
	if n <= 1 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.turns == nil {
		r.turns = map[string]int{}
	}
	idx := r.turns[key] % n
	r.turns[key]++
	return idx
}

func (r *Registry) driver(providerID, credKey string, pcfg ProviderInstanceConfig, cred CredentialConfig) (driver.Driver, error) {
	key := providerID + ":" + credKey

	r.mu.Lock()
	defer r.mu.Unlock()
	if drv, ok := r.drivers[key]; ok {
		return drv, nil
	}

	var drv driver.Driver
	switch kind := strings.ToLower(strings.TrimSpace(pcfg.AIProvider)); kind {
	case "openai":
		client := openai.NewClient(pcfg.BaseURL, cred.APIKey)
		client.Timeout = r.cfg.DefaultTimeout
		drv = client
	case "gemini":
		client := gemini.NewClient(cred.APIKey, modelFor(pcfg, ""))
		client.Timeout = r.cfg.DefaultTimeout
		drv = client
	default:
		if kind == "" {
			kind = "(unset)"
		}
		return nil, fmt.Errorf("unsupported ai_provider %q for provider %q (want openai or gemini)", kind, providerID)
	}

	if r.drivers == nil {
		r.drivers = map[string]driver.Driver{}
	}
	r.drivers[key] = drv
	return drv, nil
}

// modelFor returns the model configured for role, or the provider default.
func modelFor(pcfg ProviderInstanceConfig, role string) string {
	if role != "" {
		if model := strings.TrimSpace(pcfg.Models[role]); model != "" {
			return model
		}
	}
	return strings.TrimSpace(pcfg.Models[defaultModelKey])
}

func hasRole(roles []string, role string) bool {
	for _, r := range roles {
		if strings.EqualFold(strings.TrimSpace(r), role) {
			return true
		}
	}
	return false
}
