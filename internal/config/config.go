// Package config loads bib settings from TOML.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Bibliography contains document defaults.
type Bibliography struct {
	Path         string `toml:"path"`
	Title        string `toml:"title"`
	DefaultTopic string `toml:"default_topic"`
	PreviewChars int    `toml:"preview_chars"`
}

// Fetch contains settings for the content fetch adapter.
type Fetch struct {
	TimeoutSeconds int    `toml:"timeout_seconds"`
	UserAgent      string `toml:"user_agent"`
	MaxBodyBytes   int64  `toml:"max_body_bytes"`
}

// API contains settings for the HTTP surface.
type API struct {
	Bind string `toml:"bind"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config encapsulates all configuration values for bib.
type Config struct {
	Bibliography Bibliography `toml:"bibliography"`
	Fetch        Fetch        `toml:"fetch"`
	API          API          `toml:"api"`
	Logging      Logging      `toml:"logging"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Bibliography: Bibliography{
			Path:         "bibliography.md",
			Title:        "Annotated Bibliography",
			DefaultTopic: "General",
			PreviewChars: 2000,
		},
		Fetch: Fetch{
			TimeoutSeconds: 30,
			UserAgent:      "bib/1.0 (annotated-bibliography)",
			MaxBodyBytes:   5 * 1024 * 1024,
		},
		API: API{
			Bind: "127.0.0.1:8080",
		},
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
	}
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/bib/config.toml")
}

// Load locates, parses, and validates a configuration file. It returns the
// config, the path it resolved and whether a file existed there.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// Validate rejects settings no command can work with.
func (c *Config) Validate() error {
	var problems []string
	if c.Bibliography.PreviewChars <= 0 {
		problems = append(problems, "bibliography.preview_chars must be positive")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		problems = append(problems, "fetch.timeout_seconds must be positive")
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		problems = append(problems, "fetch.max_body_bytes must be positive")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format: unsupported value %q", c.Logging.Format))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level: unsupported value %q", c.Logging.Level))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) normalize() error {
	c.Bibliography.Title = strings.TrimSpace(c.Bibliography.Title)
	c.Bibliography.DefaultTopic = strings.TrimSpace(c.Bibliography.DefaultTopic)
	if c.Bibliography.DefaultTopic == "" {
		c.Bibliography.DefaultTopic = "General"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	c.Fetch.UserAgent = strings.TrimSpace(c.Fetch.UserAgent)
	c.API.Bind = strings.TrimSpace(c.API.Bind)

	if strings.TrimSpace(c.Bibliography.Path) != "" {
		expanded, err := expandPath(strings.TrimSpace(c.Bibliography.Path))
		if err != nil {
			return err
		}
		c.Bibliography.Path = expanded
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("bib.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
