package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/writify/writify/internal/ailink"
	"github.com/writify/writify/internal/ailink/prompt"
	"github.com/writify/writify/internal/appid"
	"github.com/writify/writify/internal/config"
	"github.com/writify/writify/internal/observability"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long:  "Run diagnostic checks on the system and suggest fixes for common issues.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		log := observability.CLILogger
		log.Info("=== " + appid.BinaryName + " doctor ===")
		log.Info("")
		log.Info("Running diagnostic checks...")
		log.Info("")

		allChecks := true
		totalChecks := 7

		// Check 1: Go version
		goVersion := runtime.Version()
		if goVersion >= "go1.23" {
			log.Info(fmt.Sprintf("[1/%d] Checking Go version... ✅ %s", totalChecks, goVersion), zap.String("go_version", goVersion))
		} else {
			log.Warn(fmt.Sprintf("[1/%d] Checking Go version... ⚠️  %s (recommended: go1.23+)", totalChecks, goVersion), zap.String("go_version", goVersion))
			allChecks = false
		}

		// Check 2: Gofulmen and Crucible
		version := crucible.GetVersion()
		if version.Gofulmen != "" && version.Crucible != "" {
			log.Info(fmt.Sprintf("[2/%d] Checking Gofulmen... ✅ v%s (crucible v%s)", totalChecks, version.Gofulmen, version.Crucible),
				zap.String("gofulmen_version", version.Gofulmen),
				zap.String("crucible_version", version.Crucible))
		} else {
			log.Error(fmt.Sprintf("[2/%d] Checking Gofulmen... ❌ version information unavailable", totalChecks))
			allChecks = false
		}

		// Check 3: Config
		cfg, cfgErr := loadConfig()
		configPath := config.DefaultConfigPath()
		switch {
		case cfgErr != nil:
			log.Error(fmt.Sprintf("[3/%d] Checking config... ❌ %v", totalChecks, cfgErr))
			allChecks = false
		case fileExists(configPath):
			log.Info(fmt.Sprintf("[3/%d] Checking config... ✅ %s", totalChecks, configPath), zap.String("config_file", configPath))
		default:
			log.Info(fmt.Sprintf("[3/%d] Checking config... ✅ defaults (no file at %s)", totalChecks, configPath))
		}
		if cfgErr != nil {
			log.Warn("Remaining checks skipped (config not loaded)")
			return
		}

		// Check 4: Database
		if db, err := openStore(ctx, cfg.Store); err != nil {
			log.Warn(fmt.Sprintf("[4/%d] Checking database... ⚠️  cannot open: %v", totalChecks, err))
			allChecks = false
		} else {
			letters, listErr := db.ListCoverLetters(ctx, 1)
			switch {
			case listErr != nil:
				log.Warn(fmt.Sprintf("[4/%d] Checking database... ⚠️  query failed: %v", totalChecks, listErr))
				allChecks = false
			case cfg.Store.URL != "":
				log.Info(fmt.Sprintf("[4/%d] Checking database... ✅ %s (remote)", totalChecks, cfg.Store.URL))
			default:
				log.Info(fmt.Sprintf("[4/%d] Checking database... ✅ %s (%s)", totalChecks, cfg.Store.Path, describeStore(cfg.Store.Path, len(letters) > 0)),
					zap.String("db_path", cfg.Store.Path))
			}
			_ = db.Close()
		}

		// Check 5: Prompts
		if registry, err := prompt.RegistryWithOverrides(cfg.AILink.PromptsDir); err != nil {
			log.Error(fmt.Sprintf("[5/%d] Checking prompts... ❌ %v", totalChecks, err))
			allChecks = false
		} else {
			source := "built-in"
			if strings.TrimSpace(cfg.AILink.PromptsDir) != "" {
				source = "built-in + " + cfg.AILink.PromptsDir
			}
			log.Info(fmt.Sprintf("[5/%d] Checking prompts... ✅ %d (%s)", totalChecks, len(registry.List()), source))
		}

		// Check 6: AI provider
		if resolved, err := ailink.NewRegistry(cfg.AILink).Resolve(ailink.DefaultRole, ""); err != nil {
			log.Warn(fmt.Sprintf("[6/%d] Checking AI provider... ⚠️  not configured (set %s or %s)", totalChecks, config.GeminiAPIKeyEnv, config.OpenAIAPIKeyEnv), zap.Error(err))
			log.Info("       Without a provider every request is served by the offline generator.")
		} else {
			log.Info(fmt.Sprintf("[6/%d] Checking AI provider... ✅ %s (%s)", totalChecks, resolved.ProviderID, resolved.Model),
				zap.String("provider", resolved.ProviderID),
				zap.String("model", resolved.Model))
		}

		// Check 7: Export directory
		if err := checkWritableDir(cfg.Export.Dir); err != nil {
			log.Warn(fmt.Sprintf("[7/%d] Checking export directory... ⚠️  %s: %v", totalChecks, cfg.Export.Dir, err))
			allChecks = false
		} else {
			log.Info(fmt.Sprintf("[7/%d] Checking export directory... ✅ %s", totalChecks, cfg.Export.Dir))
		}

		log.Info("")
		if allChecks {
			log.Info(fmt.Sprintf("✅ All checks passed! Your %s installation is healthy.", appid.BinaryName))
		} else {
			log.Warn("⚠️  Some checks failed. Review the output above for details.")
		}
		log.Info("")
		log.Info("=== End Diagnostics ===")
	},
}

var (
	doctorInitForce    bool
	doctorInitProvider string
	doctorInitAPIKey   string
	doctorResetConfig  bool
	doctorResetData    bool
	doctorResetAll     bool
)

var doctorInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.DefaultConfigPath()
		if configPath == "" {
			return fmt.Errorf("config path not resolved")
		}

		if _, err := os.Stat(configPath); err == nil && !doctorInitForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", configPath)
		}

		provider := strings.ToLower(strings.TrimSpace(doctorInitProvider))
		if _, ok := providerDefaults[provider]; !ok {
			return fmt.Errorf("unsupported provider %q (expected gemini or openai)", doctorInitProvider)
		}

		apiKey := strings.TrimSpace(doctorInitAPIKey)
		if strings.EqualFold(apiKey, "prompt") {
			key, err := promptForValue("Enter " + provider + " API key (leave blank to skip): ")
			if err != nil {
				return err
			}
			apiKey = key
		}

		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}

		mode := os.FileMode(0644)
		if apiKey != "" {
			mode = 0600
		}

		if err := os.WriteFile(configPath, []byte(buildInitConfig(provider, apiKey)), mode); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}

		observability.CLILogger.Info("Config initialized", zap.String("path", configPath))
		return nil
	},
}

var doctorConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration status and paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := observability.CLILogger
		configPath := config.DefaultConfigPath()
		dataDir := config.DefaultDataDir()

		log.Info("Configuration:")
		log.Info(fmt.Sprintf("  Config file:    %s (%s)", configPath, existenceStatus(fileExists(configPath))))
		if dataDir != "" {
			log.Info(fmt.Sprintf("  Data directory: %s (%s)", dataDir, existenceStatus(fileExists(dataDir))))
		} else {
			log.Info("  Data directory: (not resolved)")
		}

		cfg, err := loadConfig()
		if err != nil {
			log.Warn("Config load failed", zap.Error(err))
			return nil
		}

		if cfg.Store.URL != "" {
			log.Info(fmt.Sprintf("  Database:       %s (remote)", cfg.Store.URL))
		} else {
			absPath, _ := filepath.Abs(cfg.Store.Path)
			if info, statErr := os.Stat(absPath); statErr == nil {
				log.Info(fmt.Sprintf("  Database:       %s (%s)", absPath, formatFileSize(info.Size())))
			} else if os.IsNotExist(statErr) {
				log.Info(fmt.Sprintf("  Database:       %s (not created yet)", absPath))
			} else {
				log.Warn("Database status error", zap.String("db_path", absPath), zap.Error(statErr))
			}
		}
		log.Info(fmt.Sprintf("  Export dir:     %s (%s)", cfg.Export.Dir, existenceStatus(fileExists(cfg.Export.Dir))))

		log.Info("")
		log.Info("Environment:")
		for _, name := range []string{config.GeminiAPIKeyEnv, config.OpenAIAPIKeyEnv, appid.Get().Env("AILINK_DEFAULT_PROVIDER")} {
			log.Info(fmt.Sprintf("  %s: %s", name, envStatus(name)))
		}

		policy := cfg.Gateway
		log.Info("")
		log.Info("Effective Settings:")
		log.Info(fmt.Sprintf("  gateway.hourly_request_limit: %d", policy.HourlyRequestLimit))
		log.Info(fmt.Sprintf("  gateway.min_request_interval: %s", policy.MinRequestInterval))
		log.Info(fmt.Sprintf("  gateway.max_retries: %d", policy.MaxRetries))
		log.Info(fmt.Sprintf("  gateway.fallback_cooldown: %s", policy.FallbackCooldown))
		log.Info(fmt.Sprintf("  ailink.default_provider: %s", orUnset(cfg.AILink.DefaultProvider)))
		return nil
	},
}

var doctorResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset user configuration and/or data",
	RunE: func(cmd *cobra.Command, args []string) error {
		if doctorResetAll {
			doctorResetConfig = true
			doctorResetData = true
		}

		if !doctorResetConfig && !doctorResetData {
			return fmt.Errorf("specify --config, --data, or --all")
		}

		if doctorResetConfig {
			configPath := config.DefaultConfigPath()
			if configPath == "" {
				observability.CLILogger.Warn("Config path not resolved; skipping config reset")
			} else if err := os.Remove(configPath); err == nil {
				observability.CLILogger.Info("Config removed", zap.String("path", configPath))
			} else if os.IsNotExist(err) {
				observability.CLILogger.Info("Config already removed", zap.String("path", configPath))
			} else {
				return fmt.Errorf("remove config file: %w", err)
			}
		}

		if doctorResetData {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Store.URL != "" {
				return fmt.Errorf("remote store configured; database reset is not supported")
			}

			absPath, _ := filepath.Abs(cfg.Store.Path)
			if err := os.Remove(absPath); err == nil {
				observability.CLILogger.Info("Database removed", zap.String("path", absPath))
			} else if os.IsNotExist(err) {
				observability.CLILogger.Info("Database already removed", zap.String("path", absPath))
			} else {
				return fmt.Errorf("remove database: %w", err)
			}
		}

		return nil
	},
}

var doctorValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the current config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.DefaultConfigPath()
		if cfgFile != "" {
			configPath = cfgFile
		}
		if configPath == "" {
			return fmt.Errorf("config path not resolved")
		}
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return fmt.Errorf("config file not found: %s", configPath)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Gateway.HourlyRequestLimit <= 0 {
			return fmt.Errorf("gateway.hourly_request_limit must be positive")
		}
		if _, err := prompt.RegistryWithOverrides(cfg.AILink.PromptsDir); err != nil {
			return err
		}

		observability.CLILogger.Info("Config is valid", zap.String("path", configPath))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.AddCommand(doctorInitCmd)
	doctorCmd.AddCommand(doctorConfigCmd)
	doctorCmd.AddCommand(doctorResetCmd)
	doctorCmd.AddCommand(doctorValidateCmd)

	doctorInitCmd.Flags().BoolVar(&doctorInitForce, "force", false, "overwrite existing config file")
	doctorInitCmd.Flags().StringVar(&doctorInitProvider, "provider", "gemini", "AI provider: gemini, openai")
	doctorInitCmd.Flags().StringVar(&doctorInitAPIKey, "api-key", "", "set the provider API key or use 'prompt' to enter")

	doctorResetCmd.Flags().BoolVar(&doctorResetConfig, "config", false, "remove user config file")
	doctorResetCmd.Flags().BoolVar(&doctorResetData, "data", false, "remove local database")
	doctorResetCmd.Flags().BoolVar(&doctorResetAll, "all", false, "remove config and data")
}

var providerDefaults = map[string]struct {
	model  string
	keyEnv string
}{
	"gemini": {model: "gemini-1.5-flash", keyEnv: config.GeminiAPIKeyEnv},
	"openai": {model: "gpt-4o-mini", keyEnv: config.OpenAIAPIKeyEnv},
}

func buildInitConfig(provider, apiKey string) string {
	defaults := providerDefaults[provider]
	id := appid.BinaryName + "-" + provider
	lines := []string{
		fmt.Sprintf("# %s config - created by '%s doctor init'", appid.BinaryName, appid.BinaryName),
		"server:",
		"  port: 3000",
		"gateway:",
		"  hourly_request_limit: 50",
		"  min_request_interval: 2s",
		"ailink:",
		"  default_provider: " + id,
		"  providers:",
		"    " + id + ":",
		"      enabled: true",
		"      ai_provider: " + provider,
		"      models:",
		"        default: " + defaults.model,
		"      credentials:",
		"        - label: default",
		"          enabled: true",
		"          priority: 0",
	}

	if apiKey != "" {
		lines = append(lines, fmt.Sprintf("          api_key: %q", apiKey))
	} else {
		lines = append(lines, fmt.Sprintf("          # api_key: \"\"  # or set %s", defaults.keyEnv))
	}

	return strings.Join(lines, "\n") + "\n"
}

// describeStore summarizes a local database file.
func describeStore(path string, hasLetters bool) string {
	info, err := os.Stat(path)
	if err != nil {
		return "not created yet"
	}
	if !hasLetters {
		return formatFileSize(info.Size()) + ", no letters yet"
	}
	return formatFileSize(info.Size())
}

// checkWritableDir creates dir if needed and verifies a file can be written.
func checkWritableDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("not configured")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	_ = tmp.Close()
	return os.Remove(name)
}

// formatFileSize returns a human-readable file size
func formatFileSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)
	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}

func promptForValue(label string) (string, error) {
	if _, err := fmt.Fprint(os.Stdout, label); err != nil {
		return "", err
	}
	reader := bufio.NewReader(os.Stdin)
	value, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func existenceStatus(exists bool) string {
	if exists {
		return "exists"
	}
	return "missing"
}

func envStatus(name string) string {
	if strings.TrimSpace(os.Getenv(name)) != "" {
		return "(set)"
	}
	return "(not set)"
}

func orUnset(value string) string {
	if strings.TrimSpace(value) == "" {
		return "(unset)"
	}
	return value
}
