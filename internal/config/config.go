// Package config loads gitstage settings from YAML.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendCLI    = "cli"
	BackendNative = "native"
)

// Config holds the settings used to open a repository and drive the CLI.
type Config struct {
	GitBinary       string
	Backend         string // "cli" or "native"
	CommandTimeout  time.Duration
	ContextLines    uint
	AutoRefresh     bool
	RefreshDebounce time.Duration
	Theme           string // "auto", "light" or "dark"
	Syntax          bool
	Verbose         bool
}

func DefaultConfig() *Config {
	return &Config{
		GitBinary:       "git",
		Backend:         BackendCLI,
		CommandTimeout:  30 * time.Second,
		ContextLines:    3,
		AutoRefresh:     true,
		RefreshDebounce: 350 * time.Millisecond,
		Theme:           "auto",
		Syntax:          true,
	}
}

func getConfigDir() string {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return xdgConfigHome
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config")
}

// DefaultPaths lists the files Load tries when no path is given.
func DefaultPaths() []string {
	base := filepath.Join(getConfigDir(), "gitstage")
	return []string{
		filepath.Join(base, "config.yaml"),
		filepath.Join(base, "config.yml"),
	}
}

// Load reads the configuration at configPath, or the first existing default
// path when configPath is empty. Missing default files yield the defaults;
// an explicit path must exist. The path actually read is returned.
func Load(configPath string) (*Config, string, error) {
	paths := DefaultPaths()
	if configPath != "" {
		expanded, err := expandPath(configPath)
		if err != nil {
			return DefaultConfig(), "", err
		}
		paths = []string{expanded}
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) && configPath == "" {
			continue
		}
		if err != nil {
			return DefaultConfig(), path, fmt.Errorf("read config: %w", err)
		}
		cfg, err := Parse(data)
		if err != nil {
			return DefaultConfig(), path, fmt.Errorf("%s: %w", path, err)
		}
		return cfg, path, nil
	}
	return DefaultConfig(), "", nil
}

// Parse decodes YAML on top of the defaults.
func Parse(data []byte) (*Config, error) {
	var yamlData map[string]any
	if err := yaml.Unmarshal(data, &yamlData); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg := DefaultConfig()
	if yamlData == nil {
		return cfg, nil
	}

	if v := coerceString(yamlData["git_binary"]); v != "" {
		cfg.GitBinary = v
	}
	if v := coerceString(yamlData["backend"]); v != "" {
		cfg.Backend = strings.ToLower(v)
	}
	if v := coerceString(yamlData["theme"]); v != "" {
		cfg.Theme = strings.ToLower(v)
	}
	cfg.AutoRefresh = coerceBool(yamlData["auto_refresh"], cfg.AutoRefresh)
	cfg.Syntax = coerceBool(yamlData["syntax"], cfg.Syntax)
	cfg.Verbose = coerceBool(yamlData["verbose"], cfg.Verbose)

	var err error
	if cfg.CommandTimeout, err = coerceDuration(yamlData["command_timeout"], cfg.CommandTimeout); err != nil {
		return nil, fmt.Errorf("command_timeout: %w", err)
	}
	if cfg.RefreshDebounce, err = coerceDuration(yamlData["refresh_debounce"], cfg.RefreshDebounce); err != nil {
		return nil, fmt.Errorf("refresh_debounce: %w", err)
	}
	lines := coerceInt(yamlData["context_lines"], int(cfg.ContextLines))
	if lines < 0 {
		return nil, fmt.Errorf("context_lines must not be negative, got %d", lines)
	}
	cfg.ContextLines = uint(lines)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Backend {
	case BackendCLI, BackendNative:
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendCLI, BackendNative)
	}
	switch c.Theme {
	case "auto", "light", "dark":
	default:
		return fmt.Errorf("unknown theme %q (want auto, light or dark)", c.Theme)
	}
	if c.CommandTimeout <= 0 {
		return fmt.Errorf("command_timeout must be positive, got %s", c.CommandTimeout)
	}
	if c.RefreshDebounce < 0 {
		return fmt.Errorf("refresh_debounce must not be negative, got %s", c.RefreshDebounce)
	}
	return nil
}

func coerceString(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func coerceBool(value any, defaultVal bool) bool {
	if value == nil {
		return defaultVal
	}

	switch v := value.(type) {
	case bool:
		return v
	case int:
		return v != 0
	case string:
		text := strings.ToLower(strings.TrimSpace(v))
		switch text {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return defaultVal
}

func coerceInt(value any, defaultVal int) int {
	if value == nil {
		return defaultVal
	}

	switch v := value.(type) {
	case int:
		return v
	case string:
		text := strings.TrimSpace(v)
		if text == "" {
			return defaultVal
		}
		if i, err := strconv.Atoi(text); err == nil {
			return i
		}
	}
	return defaultVal
}

// coerceDuration accepts Go duration strings ("1m30s") or a plain number
// of seconds.
func coerceDuration(value any, defaultVal time.Duration) (time.Duration, error) {
	switch v := value.(type) {
	case nil:
		return defaultVal, nil
	case int:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	case string:
		text := strings.TrimSpace(v)
		if text == "" {
			return defaultVal, nil
		}
		if secs, err := strconv.ParseFloat(text, 64); err == nil {
			return time.Duration(secs * float64(time.Second)), nil
		}
		d, err := time.ParseDuration(text)
		if err != nil {
			return defaultVal, fmt.Errorf("invalid duration %q", text)
		}
		return d, nil
	default:
		return defaultVal, fmt.Errorf("invalid duration %v", value)
	}
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return os.ExpandEnv(path), nil
}
