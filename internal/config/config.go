package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	GitHub    GitHubConfig    `toml:"github"`
	Remote    RemoteConfig    `toml:"remote"`
	Export    ExportConfig    `toml:"export"`
	Deploy    DeployConfig    `toml:"deploy"`
	Changelog ChangelogConfig `toml:"changelog"`
	Update    UpdateConfig    `toml:"update"`
	Log       LogConfig       `toml:"log"`
}

type GitHubConfig struct {
	Owner      string `toml:"owner"`
	Repository string `toml:"repository"`
	// Token is usually left empty and taken from GITHUB_TOKEN or `gh auth token`
	Token             string  `toml:"token,omitempty"`
	APIURL            string  `toml:"api_url,omitempty"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

type RemoteConfig struct {
	Host           string `toml:"host"`
	Src            string `toml:"src"`
	SudoUser       string `toml:"sudo_user"`
	UseSudo        bool   `toml:"use_sudo"`
	RollingBranch  string `toml:"rolling_branch"`
	SSHUser        string `toml:"ssh_user,omitempty"`
	SSHPort        int    `toml:"ssh_port,omitempty"`
	KnownHosts     string `toml:"known_hosts,omitempty"`
	ConnectTimeout string `toml:"connect_timeout"`
}

type ExportConfig struct {
	PatchesDir string `toml:"patches_dir"`
	// LocalRepo enables exporting from a local clone when the PR branch lives in the same origin
	LocalRepo string `toml:"local_repo,omitempty"`
}

type DeployConfig struct {
	// Hostname overrides the `uname -n` lookup on the remote
	Hostname string `toml:"hostname,omitempty"`
	// Environments maps a deploy host name to an environment ("production", "preproduction")
	Environments map[string]string `toml:"environments"`
	// Labels maps an environment to the label added to the PR after a successful deploy
	Labels map[string]string `toml:"labels"`
}

type ChangelogConfig struct {
	OutputDir  string   `toml:"output_dir"`
	BaseBranch string   `toml:"base_branch"`
	Categories []string `toml:"categories"`
	SkipLabels []string `toml:"skip_labels"`
}

type UpdateConfig struct {
	Enabled   bool      `toml:"enabled"`
	LastCheck time.Time `toml:"last_check"`
	Repo      string    `toml:"repo"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

func DefaultConfig() *Config {
	return &Config{
		GitHub: GitHubConfig{
			Owner:             "gisce",
			Repository:        "erp",
			RequestsPerSecond: 10,
		},
		Remote: RemoteConfig{
			Src:            "/home/erp/src",
			SudoUser:       "erp",
			UseSudo:        true,
			RollingBranch:  "rolling",
			ConnectTimeout: "15s",
		},
		Export: ExportConfig{
			PatchesDir: "deploy/patches",
		},
		Deploy: DeployConfig{
			Environments: map[string]string{},
			Labels: map[string]string{
				"production":    "deployed",
				"preproduction": "deployed PRE",
			},
		},
		Changelog: ChangelogConfig{
			OutputDir:  "/tmp",
			BaseBranch: "developer",
			Categories: []string{
				"custom", "internal", "bug", "core", "atr", "telegestio",
				"gis", "facturacio", "medidas", "others", "traduccions",
			},
			SkipLabels: []string{"internal", "custom", "to be merged", "deployed", "traduccions"},
		},
		Update: UpdateConfig{
			Enabled: true,
			Repo:    "wahlandcase/applypr",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Path returns the location of the config file
func Path() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "applypr.toml"), nil
}

// Load reads the config file (writing defaults if absent), then applies
// .env and environment overrides
func Load() (*Config, error) {
	// A missing .env is the normal case
	_ = godotenv.Load()

	path, err := Path()
	if err != nil {
		cfg := DefaultConfig()
		return cfg, cfg.applyEnv()
	}
	return LoadFile(path)
}

// LoadFile reads the config from path, falling back to defaults when it does not exist
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		_ = cfg.SaveTo(path) // Best effort save
	} else if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		c.GitHub.Token = v
	}
	if v := os.Getenv("GITHUB_REPOSITORY"); v != "" {
		owner, repo, ok := strings.Cut(v, "/")
		if !ok || owner == "" || repo == "" {
			return fmt.Errorf("invalid GITHUB_REPOSITORY %q, expected owner/repo", v)
		}
		c.GitHub.Owner, c.GitHub.Repository = owner, repo
	}
	if v := os.Getenv("GITHUB_API_URL"); v != "" {
		c.GitHub.APIURL = v
	}
	if v := os.Getenv("APPLY_PR_HOST"); v != "" {
		c.Remote.Host = v
	}
	if v := os.Getenv("APPLY_PR_SRC"); v != "" {
		c.Remote.Src = v
	}
	if v := os.Getenv("APPLY_PR_SUDO_USER"); v != "" {
		c.Remote.SudoUser = v
	}
	if v := os.Getenv("APPLY_PR_USE_SUDO"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid APPLY_PR_USE_SUDO %q: %w", v, err)
		}
		c.Remote.UseSudo = b
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	return nil
}

func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the config to path; the token is never persisted
func (c *Config) SaveTo(path string) error {
	// Ensure config directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	clean := *c
	clean.GitHub.Token = ""
	data, err := toml.Marshal(&clean)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// RepoPath is the checkout on the remote host
func (c *Config) RepoPath() string {
	return c.Remote.Src + "/" + c.GitHub.Repository
}

// RemotePatchDir is where patches for a PR live on the remote host
func (c *Config) RemotePatchDir(pr int) string {
	return fmt.Sprintf("%s/patches/%d", c.RepoPath(), pr)
}

// PatchesDir is the expanded local export root
func (c *Config) PatchesDir() string {
	return expandTilde(c.Export.PatchesDir)
}

// LocalRepoPath returns the expanded local clone path, empty if disabled
func (c *Config) LocalRepoPath() string {
	if c.Export.LocalRepo == "" {
		return ""
	}
	return expandTilde(c.Export.LocalRepo)
}

// ConnectTimeout parses Remote.ConnectTimeout, defaulting to 15s
func (c *Config) ConnectTimeout() time.Duration {
	d, err := time.ParseDuration(c.Remote.ConnectTimeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

// EnvironmentLabel returns the label to add after a successful deploy on host,
// or "" when the host is not a tracked environment
func (c *Config) EnvironmentLabel(host string) string {
	env, ok := c.Deploy.Environments[host]
	if !ok {
		return ""
	}
	return c.Deploy.Labels[env]
}

// ShouldCheckForUpdate returns true if update check is enabled and 24h since last check
func (c *Config) ShouldCheckForUpdate() bool {
	if !c.Update.Enabled {
		return false
	}
	return time.Since(c.Update.LastCheck) > 24*time.Hour
}

// RecordUpdateCheck updates the last check time
func (c *Config) RecordUpdateCheck() {
	c.Update.LastCheck = time.Now()
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
