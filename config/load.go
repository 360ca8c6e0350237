package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when no config file was given and none exists in
// the default locations. Callers usually fall back to Defaults().
var ErrNotFound = errors.New("no config file found (tried STXC_CONFIG, stxc.yaml, ~/.config/stxc/stxc.yaml)")

// Load reads configuration from a file with ENV interpolation.
// If configPath is empty, it searches default locations.
func Load(configPath string, getenv func(string) string) (*Config, error) {
	cfg, _, err := LoadWithPath(configPath, getenv)
	return cfg, err
}

// LoadOrDefaults behaves like Load but returns Defaults() when no config
// file exists in the default locations. An explicit path must exist.
func LoadOrDefaults(configPath string, getenv func(string) string) (*Config, error) {
	cfg, err := Load(configPath, getenv)
	if errors.Is(err, ErrNotFound) {
		return Defaults(), nil
	}
	return cfg, err
}

// LoadWithPath reads configuration and returns both the config and the resolved path.
func LoadWithPath(configPath string, getenv func(string) string) (*Config, string, error) {
	path, err := resolveConfigPath(configPath, getenv)
	if err != nil {
		return nil, "", err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve config path: %w", err)
	}
	baseDir := filepath.Dir(absPath)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read config: %w", err)
	}

	data = interpolateEnv(data, getenv)

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.BaseDir = baseDir

	if cfg.Build.OutDir != "" {
		cfg.Build.OutDir = resolve(baseDir, cfg.Build.OutDir)
	}
	if cfg.Cache.Path != "" {
		cfg.Cache.Path = resolve(baseDir, cfg.Cache.Path)
	}
	for i := range cfg.Watch.Dirs {
		cfg.Watch.Dirs[i] = resolve(baseDir, cfg.Watch.Dirs[i])
	}

	if err := Validate(cfg); err != nil {
		return nil, "", err
	}

	return cfg, absPath, nil
}

func resolve(baseDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// resolveConfigPath finds the config file to use.
// Search order: explicit path > STXC_CONFIG env > ./stxc.yaml > ~/.config/stxc/stxc.yaml
func resolveConfigPath(explicit string, getenv func(string) string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	if envPath := getenv("STXC_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", fmt.Errorf("STXC_CONFIG file not found: %s", envPath)
		}
		return envPath, nil
	}

	if _, err := os.Stat("stxc.yaml"); err == nil {
		return "stxc.yaml", nil
	}

	home, err := os.UserHomeDir()
	if err == nil {
		xdgPath := filepath.Join(home, ".config", "stxc", "stxc.yaml")
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath, nil
		}
	}

	return "", ErrNotFound
}

// envPattern matches ${VAR} or ${VAR:-default}
var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// interpolateEnv replaces ${VAR} and ${VAR:-default} patterns with environment values.
func interpolateEnv(data []byte, getenv func(string) string) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		parts := envPattern.FindSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := string(parts[1])
		value := getenv(varName)

		if value == "" && len(parts) >= 3 && len(parts[2]) > 0 {
			value = string(parts[2])
		}

		return []byte(value)
	})
}

// Validate checks the configuration and reports every problem at once.
// Call it again after applying CLI overrides.
func Validate(cfg *Config) error {
	var errs []string

	if _, err := semver.NewVersion(cfg.Target.Clarity); err != nil {
		errs = append(errs, fmt.Sprintf("invalid target.clarity: %q (must be a version like 2.0.0)", cfg.Target.Clarity))
	}

	if cfg.Build.Extension != "" && !strings.HasPrefix(cfg.Build.Extension, ".") {
		errs = append(errs, fmt.Sprintf("invalid build.extension: %q (must start with '.')", cfg.Build.Extension))
	}

	if cfg.Cache.Enabled && cfg.Cache.Path == "" {
		errs = append(errs, "cache.path is required when the cache is enabled")
	}
	if _, err := ParseSize(cfg.Cache.MaxSize); err != nil {
		errs = append(errs, fmt.Sprintf("invalid cache.max_size: %v", err))
	}

	if cfg.Watch.Debounce < 0 {
		errs = append(errs, fmt.Sprintf("invalid watch.debounce: %s (must not be negative)", cfg.Watch.Debounce))
	}

	validLevels := map[string]bool{"info": true, "trace": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be info or trace)", cfg.Logging.Level))
	}

	for name, p := range cfg.Profiles {
		if p.Target == "" {
			continue
		}
		if _, err := semver.NewVersion(p.Target); err != nil {
			errs = append(errs, fmt.Sprintf("profiles.%s: invalid target %q", name, p.Target))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// ParseSize parses a size string like "10MB", "1GB", "500KB" to bytes.
// Supports: B, KB, MB, GB (case insensitive).
// Returns 0 for empty string.
func ParseSize(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}

	s = strings.TrimSpace(strings.ToUpper(s))

	// Longest suffix first so "B" does not match before "MB"
	suffixes := []struct {
		suffix string
		mult   int64
	}{
		{"GB", 1024 * 1024 * 1024},
		{"MB", 1024 * 1024},
		{"KB", 1024},
		{"B", 1},
	}

	for _, sf := range suffixes {
		if strings.HasSuffix(s, sf.suffix) {
			numStr := strings.TrimSpace(strings.TrimSuffix(s, sf.suffix))
			var num int64
			if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
				return 0, fmt.Errorf("invalid size number: %s", numStr)
			}
			return num * sf.mult, nil
		}
	}

	var num int64
	if _, err := fmt.Sscanf(s, "%d", &num); err != nil {
		return 0, fmt.Errorf("invalid size format: %s (use B, KB, MB, or GB suffix)", s)
	}
	return num, nil
}

// ApplyProfile applies a named profile to the configuration.
// Only non-zero values in the profile override the base config.
// Returns an error if the profile name doesn't exist.
func ApplyProfile(cfg *Config, name string) error {
	if cfg.Profiles == nil {
		return fmt.Errorf("no profiles defined in config")
	}

	p, ok := cfg.Profiles[name]
	if !ok {
		var names []string
		for n := range cfg.Profiles {
			names = append(names, n)
		}
		return fmt.Errorf("unknown profile %q (available: %s)", name, strings.Join(names, ", "))
	}

	if p.Target != "" {
		cfg.Target.Clarity = p.Target
	}
	if p.OutDir != "" {
		cfg.Build.OutDir = resolve(cfg.BaseDir, p.OutDir)
	}
	for _, a := range p.Assets {
		if !cfg.Assets.Contains(a) {
			cfg.Assets = append(cfg.Assets, a)
		}
	}

	return nil
}
