package config

import "time"

// Config represents the complete stxc configuration
type Config struct {
	BaseDir  string                   `yaml:"-"` // Directory containing config file, for resolving relative paths
	Target   TargetConfig             `yaml:"target"`
	Assets   StringOrSlice            `yaml:"assets"` // Extra asset names for call disambiguation
	Build    BuildConfig              `yaml:"build"`
	Cache    CacheConfig              `yaml:"cache"`
	Watch    WatchConfig              `yaml:"watch"`
	Logging  LoggingConfig            `yaml:"logging"`
	Profiles map[string]ProfileConfig `yaml:"profiles"` // Named overrides selected with --profile
}

// TargetConfig selects the Clarity version to generate for
type TargetConfig struct {
	Clarity string `yaml:"clarity"` // Semantic version, e.g. "2.0.0"
}

// BuildConfig holds output settings
type BuildConfig struct {
	OutDir    string `yaml:"out_dir"`   // Directory for generated files (empty: next to the source)
	Extension string `yaml:"extension"` // Output file extension (default: ".clar")
}

// CacheConfig holds build cache settings
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`  // Reuse outputs for unchanged sources
	Path    string `yaml:"path"`     // SQLite database path (default: ".stxc/cache.db")
	MaxSize string `yaml:"max_size"` // Prune oldest entries above this size, e.g. "64MB"
}

// WatchConfig holds settings for stxc watch
type WatchConfig struct {
	Dirs     StringOrSlice `yaml:"dirs"`     // Directories to watch (default: ".")
	Debounce time.Duration `yaml:"debounce"` // Quiet period before rebuilding (default: 100ms)
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // info or trace
	Output string `yaml:"output"` // stderr, stdout, or file path
}

// ProfileConfig holds per-profile overrides.
// All fields are optional - only non-zero values override the base config
type ProfileConfig struct {
	Target string        `yaml:"target"`  // Override target.clarity
	OutDir string        `yaml:"out_dir"` // Override build.out_dir
	Assets StringOrSlice `yaml:"assets"`  // Appended to assets
}

// StringOrSlice supports YAML fields that can be either a string or a slice of strings
type StringOrSlice []string

// UnmarshalYAML implements yaml.Unmarshaler to handle both string and []string
func (s *StringOrSlice) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var single string
	if err := unmarshal(&single); err == nil {
		*s = []string{single}
		return nil
	}

	var slice []string
	if err := unmarshal(&slice); err != nil {
		return err
	}
	*s = slice
	return nil
}

// Contains checks if the slice contains the given string
func (s StringOrSlice) Contains(str string) bool {
	for _, v := range s {
		if v == str {
			return true
		}
	}
	return false
}

// Defaults returns a Config with sensible defaults
func Defaults() *Config {
	return &Config{
		Target: TargetConfig{
			Clarity: "2.0.0",
		},
		Build: BuildConfig{
			Extension: ".clar",
		},
		Cache: CacheConfig{
			Enabled: true,
			Path:    ".stxc/cache.db",
			MaxSize: "64MB",
		},
		Watch: WatchConfig{
			Dirs:     StringOrSlice{"."},
			Debounce: 100 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stderr",
		},
	}
}
