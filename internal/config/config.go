package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Special-file policies for entries that are neither regular files nor
// directories.
const (
	SpecialSkip   = "skip"
	SpecialUnlink = "unlink"
)

type PrometheusCfg struct {
	Port int `yaml:"port" json:"port"` // 0 disables the /metrics endpoint
}

type LoggingCfg struct {
	Dir          string `yaml:"dir" json:"dir"`                     // Directory for tidyfs.log; empty logs to stdout only
	RotationDays int    `yaml:"rotation_days" json:"rotation_days"` // Days to keep logs before rotation
}

type SafetyCfg struct {
	AllowedRoots   []string `yaml:"allowed_roots" json:"allowed_roots"`     // Empty allows any unprotected location
	ProtectedPaths []string `yaml:"protected_paths" json:"protected_paths"` // Added to the built-in protected set
}

type Config struct {
	WorkDir      string        `yaml:"work_dir" json:"work_dir"`           // Working area prepared and cleaned by the driver
	Patterns     []string      `yaml:"patterns" json:"patterns"`           // Globs under work_dir to process
	SpecialFiles string        `yaml:"special_files" json:"special_files"` // skip | unlink
	DryRun       bool          `yaml:"dry_run" json:"dry_run"`
	DatabasePath string        `yaml:"database_path" json:"database_path"` // SQLite history; empty disables it
	Safety       SafetyCfg     `yaml:"safety" json:"safety"`
	Prometheus   PrometheusCfg `yaml:"prometheus" json:"prometheus"`
	Logging      LoggingCfg    `yaml:"logging" json:"logging"`
}

var (
	errNoWorkDir      = errors.New("configuration must specify work_dir")
	errInvalidPath    = errors.New("path must be absolute")
	errBadPolicy      = errors.New("special_files must be \"skip\" or \"unlink\"")
	errBadPattern     = errors.New("pattern must stay inside work_dir")
	errDatabaseInside = errors.New("database_path must not be inside work_dir")
	errNegativePort   = errors.New("prometheus port cannot be negative")
)

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := decode(f)
	if err != nil {
		return nil, err
	}
	if err := cfg.validateAndDefault(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a validated configuration for workDir with every other
// setting at its default, for runs driven by flags alone.
func Default(workDir string) (*Config, error) {
	cfg := &Config{WorkDir: workDir}
	if err := cfg.validateAndDefault(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate re-checks cfg after fields were changed in code, for example by
// command-line overrides, and fills in defaults.
func (c *Config) Validate() error {
	return c.validateAndDefault()
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

func (c *Config) validateAndDefault() error {
	if strings.TrimSpace(c.WorkDir) == "" {
		return errNoWorkDir
	}
	wd, err := cleanAbsolute(c.WorkDir)
	if err != nil {
		return fmt.Errorf("work_dir: %w", err)
	}
	c.WorkDir = wd

	if len(c.Patterns) == 0 {
		c.Patterns = []string{"*"}
	}
	for _, p := range c.Patterns {
		if filepath.IsAbs(p) || hasDotDot(p) {
			return fmt.Errorf("%w: %s", errBadPattern, p)
		}
	}

	switch c.SpecialFiles {
	case "":
		c.SpecialFiles = SpecialSkip
	case SpecialSkip, SpecialUnlink:
	default:
		return fmt.Errorf("%w: got %q", errBadPolicy, c.SpecialFiles)
	}

	if c.DatabasePath != "" {
		dp, err := cleanAbsolute(c.DatabasePath)
		if err != nil {
			return fmt.Errorf("database_path: %w", err)
		}
		if dp == c.WorkDir || strings.HasPrefix(dp, c.WorkDir+string(os.PathSeparator)) {
			return errDatabaseInside
		}
		c.DatabasePath = dp
	}

	if c.Prometheus.Port < 0 {
		return errNegativePort
	}

	// Set defaults for logging
	if c.Logging.RotationDays <= 0 {
		c.Logging.RotationDays = 30 // Default: keep logs for 30 days
	}
	if c.Logging.Dir != "" {
		ld, err := cleanAbsolute(c.Logging.Dir)
		if err != nil {
			return fmt.Errorf("logging.dir: %w", err)
		}
		c.Logging.Dir = ld
	}

	for i, r := range c.Safety.AllowedRoots {
		cp, err := cleanAbsolute(r)
		if err != nil {
			return fmt.Errorf("safety.allowed_roots: %w", err)
		}
		c.Safety.AllowedRoots[i] = cp
	}
	for i, r := range c.Safety.ProtectedPaths {
		cp, err := cleanAbsolute(r)
		if err != nil {
			return fmt.Errorf("safety.protected_paths: %w", err)
		}
		c.Safety.ProtectedPaths[i] = cp
	}

	return nil
}

func cleanAbsolute(p string) (string, error) {
	if p == "" {
		return "", errInvalidPath
	}
	cp := filepath.Clean(p)
	if !filepath.IsAbs(cp) {
		return "", fmt.Errorf("%w: %s", errInvalidPath, p)
	}
	return cp, nil
}

func hasDotDot(p string) bool {
	for _, part := range strings.Split(filepath.ToSlash(p), "/") {
		if part == ".." {
			return true
		}
	}
	return false
}

func (c *Config) PrometheusAddress() string {
	return fmt.Sprintf(":%d", c.Prometheus.Port)
}
