package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up at the install root.
const FileName = "pocketup.yaml"

// Config captures the run configuration of the updater.
type Config struct {
	Version   int             `yaml:"version"`
	Inventory InventoryConfig `yaml:"inventory"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Assets    AssetsConfig    `yaml:"assets"`
	Update    UpdateConfig    `yaml:"update"`
	License   LicenseConfig   `yaml:"license"`
	Rename    RenameConfig    `yaml:"rename"`
	Network   NetworkConfig   `yaml:"network"`
	Log       LogConfig       `yaml:"log"`
}

// InventoryConfig locates the remote core list and filename blacklist.
type InventoryConfig struct {
	URL          string `yaml:"url"`
	BlacklistURL string `yaml:"blacklist_url"`
}

// ArchiveConfig selects the asset archive.
type ArchiveConfig struct {
	Name             string              `yaml:"name"`
	URLTemplate      string              `yaml:"url_template"`
	MetadataTemplate string              `yaml:"metadata_template"`
	Custom           CustomArchiveConfig `yaml:"custom"`
}

// CustomArchiveConfig points asset downloads at a self-hosted archive.
type CustomArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Index   string `yaml:"index"`
}

// AssetsConfig controls asset resolution.
type AssetsConfig struct {
	Download        *bool `yaml:"download,omitempty"`
	VerifyChecksums *bool `yaml:"verify_checksums,omitempty"`
	BuildInstances  *bool `yaml:"build_instances,omitempty"`
	SkipAlternates  bool  `yaml:"skip_alternates"`
}

// UpdateConfig controls core installation.
type UpdateConfig struct {
	DeleteSkipped     bool `yaml:"delete_skipped"`
	PreservePlatforms bool `yaml:"preserve_platforms"`
	QueryReleases     bool `yaml:"query_releases"`
	Workers           int  `yaml:"workers"`
}

// LicenseConfig locates the license key file, relative to the install root.
type LicenseConfig struct {
	KeyFile string `yaml:"key_file"`
}

// RenameConfig drives the platform display-name fix-up for matching cores.
type RenameConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Prefix  string `yaml:"prefix"`
	Owner   string `yaml:"owner"`
	Repo    string `yaml:"repo"`
	Path    string `yaml:"path"`
}

// NetworkConfig configures remote access.
type NetworkConfig struct {
	TimeoutSec  int    `yaml:"timeout_s"`
	GitHubToken string `yaml:"github_token"`
	GitHubAPI   string `yaml:"github_api"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Version: 1,
		Inventory: InventoryConfig{
			URL:          "https://openfpga-cores-inventory.github.io/analogue-pocket/api/v2/cores.json",
			BlacklistURL: "https://raw.githubusercontent.com/mattpannella/pupdate/main/blacklist.json",
		},
		Archive: ArchiveConfig{
			Name:             "openFPGA-Files",
			URLTemplate:      "https://archive.org/download/{archive}/{filename}",
			MetadataTemplate: "https://archive.org/metadata/{archive}",
		},
		Assets: AssetsConfig{
			Download:        boolPtr(true),
			VerifyChecksums: boolPtr(true),
			BuildInstances:  boolPtr(true),
		},
		Update: UpdateConfig{
			Workers: 1,
		},
		License: LicenseConfig{
			KeyFile: "beta.bin",
		},
		Rename: RenameConfig{
			Enabled: boolPtr(true),
			Prefix:  "jotego.",
			Owner:   "dyreschlock",
			Repo:    "pocket-platform-images",
			Path:    "arcade/Platforms",
		},
		Network: NetworkConfig{
			TimeoutSec: 60,
			GitHubAPI:  "https://api.github.com",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML configuration from disk if it exists, otherwise returns
// the default configuration.
func Load(path string) (Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			cfg.ApplyDefaults()
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults ensures nested fields fall back to sensible defaults when the
// YAML omits them.
func (c *Config) ApplyDefaults() {
	defaults := Default()

	if c.Version == 0 {
		c.Version = defaults.Version
	}
	if c.Inventory.URL == "" {
		c.Inventory.URL = defaults.Inventory.URL
	}
	if c.Archive.Name == "" {
		c.Archive.Name = defaults.Archive.Name
	}
	if c.Archive.URLTemplate == "" {
		c.Archive.URLTemplate = defaults.Archive.URLTemplate
	}
	if c.Archive.MetadataTemplate == "" {
		c.Archive.MetadataTemplate = defaults.Archive.MetadataTemplate
	}
	if c.Assets.Download == nil {
		c.Assets.Download = boolPtr(true)
	}
	if c.Assets.VerifyChecksums == nil {
		c.Assets.VerifyChecksums = boolPtr(true)
	}
	if c.Assets.BuildInstances == nil {
		c.Assets.BuildInstances = boolPtr(true)
	}
	if c.Update.Workers <= 0 {
		c.Update.Workers = defaults.Update.Workers
	}
	if c.License.KeyFile == "" {
		c.License.KeyFile = defaults.License.KeyFile
	}
	if c.Rename.Enabled == nil {
		c.Rename.Enabled = boolPtr(true)
	}
	if c.Rename.Prefix == "" {
		c.Rename.Prefix = defaults.Rename.Prefix
	}
	if c.Rename.Owner == "" {
		c.Rename.Owner = defaults.Rename.Owner
	}
	if c.Rename.Repo == "" {
		c.Rename.Repo = defaults.Rename.Repo
	}
	if c.Rename.Path == "" {
		c.Rename.Path = defaults.Rename.Path
	}
	if c.Network.TimeoutSec <= 0 {
		c.Network.TimeoutSec = defaults.Network.TimeoutSec
	}
	if c.Network.GitHubAPI == "" {
		c.Network.GitHubAPI = defaults.Network.GitHubAPI
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
}

// DownloadAssets reports whether asset resolution runs at all.
func (c Config) DownloadAssets() bool {
	return c.Assets.Download == nil || *c.Assets.Download
}

// VerifyChecksums reports whether downloaded assets are checked against the archive index.
func (c Config) VerifyChecksums() bool {
	return c.Assets.VerifyChecksums == nil || *c.Assets.VerifyChecksums
}

// BuildInstances reports whether instance files are synthesized for packager cores.
func (c Config) BuildInstances() bool {
	return c.Assets.BuildInstances == nil || *c.Assets.BuildInstances
}

// RenameEnabled reports whether platform display names are fixed up.
func (c Config) RenameEnabled() bool {
	return c.Rename.Enabled == nil || *c.Rename.Enabled
}

// Timeout returns the per-transfer network timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.Network.TimeoutSec) * time.Second
}

// MetadataURL returns the location of the active archive's index.
func (c Config) MetadataURL() string {
	if c.Archive.Custom.Enabled && c.Archive.Custom.Index != "" {
		return c.Archive.Custom.Index
	}
	return expandArchive(c.Archive.MetadataTemplate, c.Archive.Name)
}

// ArchiveBaseURL returns the custom download base, or "" to use the template.
func (c Config) ArchiveBaseURL() string {
	if c.Archive.Custom.Enabled {
		return c.Archive.Custom.URL
	}
	return ""
}

// Marshal returns the YAML encoding of the configuration.
func (c Config) Marshal() ([]byte, error) {
	buf, err := yaml.Marshal(&c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return buf, nil
}

func boolPtr(v bool) *bool {
	return &v
}
