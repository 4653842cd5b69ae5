// Package config reads the project-local .crashaudit/config.yaml file.
//
// The file is optional: every field has a default aimed at the rust-lang/rust
// layout, so a bare checkout works with no configuration at all. Parsing reads
// the file directly rather than through the viper singleton so callers can
// resolve settings for a repository other than the one the process started in.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/steveyegge/crashaudit/internal/cache"
	"github.com/steveyegge/crashaudit/internal/crashfile"
)

const (
	// Dir is the per-repository configuration directory.
	Dir = ".crashaudit"
	// FileName is the config file inside Dir.
	FileName = "config.yaml"
)

// Default tracker coordinates. The tool was built for the rust-lang/rust
// crash corpus, so that is what an empty config resolves to.
const (
	DefaultOwner = "rust-lang"
	DefaultRepo  = "rust"
)

// Config holds the per-repository settings from .crashaudit/config.yaml.
// Zero-value fields fall back to defaults when loaded through Load.
type Config struct {
	Owner     string `yaml:"owner"`
	Repo      string `yaml:"repo"`
	CrashDir  string `yaml:"crash-dir"`
	CachePath string `yaml:"cache-path"`
	Format    string `yaml:"format"`
}

// Default returns a Config with every field set to its built-in default.
func Default() *Config {
	return &Config{
		Owner:     DefaultOwner,
		Repo:      DefaultRepo,
		CrashDir:  crashfile.DefaultDir,
		CachePath: cache.DefaultPath(),
		Format:    "text",
	}
}

// Path returns the config file location for the given repository root.
func Path(repoRoot string) string {
	return filepath.Join(repoRoot, Dir, FileName)
}

// Load reads and parses the config file under repoRoot, filling unset fields
// with defaults. A missing or unparsable file yields the defaults rather than
// an error: configuration is advisory and the tool must run without it.
func Load(repoRoot string) *Config {
	cfg := Default()

	data, err := os.ReadFile(Path(repoRoot)) // #nosec G304 - path derived from repoRoot
	if err != nil {
		return cfg
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cfg
	}

	if file.Owner != "" {
		cfg.Owner = file.Owner
	}
	if file.Repo != "" {
		cfg.Repo = file.Repo
	}
	if file.CrashDir != "" {
		cfg.CrashDir = file.CrashDir
	}
	if file.CachePath != "" {
		cfg.CachePath = file.CachePath
	}
	if file.Format != "" {
		cfg.Format = file.Format
	}
	return cfg
}

// LoadWithEnv reads the config file and applies environment variable
// overrides. Environment variables take precedence over file values.
//
// Supported environment variables:
//   - CRASHAUDIT_OWNER: overrides owner
//   - CRASHAUDIT_REPO: overrides repo
//   - CRASHAUDIT_CRASH_DIR: overrides crash-dir
func LoadWithEnv(repoRoot string) *Config {
	cfg := Load(repoRoot)

	if v := os.Getenv("CRASHAUDIT_OWNER"); v != "" {
		cfg.Owner = v
	}
	if v := os.Getenv("CRASHAUDIT_REPO"); v != "" {
		cfg.Repo = v
	}
	if v := os.Getenv("CRASHAUDIT_CRASH_DIR"); v != "" {
		cfg.CrashDir = v
	}
	return cfg
}

// Slug returns the "owner/repo" form used in report headers and issue URLs.
func (c *Config) Slug() string {
	return c.Owner + "/" + c.Repo
}
