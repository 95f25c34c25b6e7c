// Package config provides configuration management for the Filmroom Agent.
// Settings come from an optional YAML file with environment variable
// overrides on top, so a coach's machine works with zero configuration
// and support can still tweak a single value without editing files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	// Default values
	DefaultPort     = 8971
	DefaultLogLevel = "info"
	DefaultDataDir  = ".filmroom"

	// Environment variable names
	EnvPort       = "FILMROOM_PORT"
	EnvLogLevel   = "FILMROOM_LOG_LEVEL"
	EnvDataDir    = "FILMROOM_DATA_DIR"
	EnvConfigFile = "FILMROOM_CONFIG_FILE"
	EnvWatchDir   = "FILMROOM_WATCH_DIR"
	EnvFFProbe    = "FILMROOM_FFPROBE_PATH"
	EnvHeadless   = "FILMROOM_HEADLESS"

	// Remote persistence environment variable names
	EnvRemoteBaseURL = "FILMROOM_REMOTE_BASE_URL"
	EnvRemoteToken   = "FILMROOM_REMOTE_TOKEN"
	EnvRemoteOrg     = "FILMROOM_REMOTE_ORG"

	// Database filename
	DBFilename = "filmroom.db"

	// Config filename relative to the data dir
	ConfigFilename = "config.yaml"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	WatchDir() string
	FFProbePath() string
	Headless() bool
	RemoteEnabled() bool
	RemoteBaseURL() string
	RemoteToken() string
	RemoteOrgSlug() string
}

// fileConfig is the YAML shape of the optional config file.
type fileConfig struct {
	Port        int    `yaml:"port"`
	LogLevel    string `yaml:"log_level"`
	DataDir     string `yaml:"data_dir"`
	WatchDir    string `yaml:"watch_dir"`
	FFProbePath string `yaml:"ffprobe_path"`
	Headless    *bool  `yaml:"headless"`
	Remote      struct {
		BaseURL string `yaml:"base_url"`
		Token   string `yaml:"token"`
		OrgSlug string `yaml:"org_slug"`
	} `yaml:"remote"`
}

// AppConfig merges defaults, the YAML file, and environment overrides,
// in that order of increasing precedence.
type AppConfig struct {
	port        int
	logLevel    string
	dataDir     string
	watchDir    string
	ffprobePath string
	headless    bool

	remoteBaseURL string
	remoteToken   string
	remoteOrgSlug string
}

// New loads the configuration. A missing config file is not an error;
// a file that exists but fails to parse is.
func New() (*AppConfig, error) {
	cfg := &AppConfig{
		port:     DefaultPort,
		logLevel: DefaultLogLevel,
		dataDir:  defaultDataDir(),
	}

	if err := cfg.applyFile(configFilePath(cfg.dataDir)); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.port < 1 || cfg.port > 65535 {
		return nil, fmt.Errorf("invalid port %d: must be between 1 and 65535", cfg.port)
	}
	return cfg, nil
}

func configFilePath(dataDir string) string {
	if p := os.Getenv(EnvConfigFile); p != "" {
		return p
	}
	return filepath.Join(dataDir, ConfigFilename)
}

func (c *AppConfig) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.Port != 0 {
		c.port = fc.Port
	}
	if fc.LogLevel != "" {
		c.logLevel = fc.LogLevel
	}
	if fc.DataDir != "" {
		c.dataDir = fc.DataDir
	}
	if fc.WatchDir != "" {
		c.watchDir = fc.WatchDir
	}
	if fc.FFProbePath != "" {
		c.ffprobePath = fc.FFProbePath
	}
	if fc.Headless != nil {
		c.headless = *fc.Headless
	}
	if fc.Remote.BaseURL != "" {
		c.remoteBaseURL = fc.Remote.BaseURL
	}
	if fc.Remote.Token != "" {
		c.remoteToken = fc.Remote.Token
	}
	if fc.Remote.OrgSlug != "" {
		c.remoteOrgSlug = fc.Remote.OrgSlug
	}
	return nil
}

func (c *AppConfig) applyEnv() error {
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		c.port = port
	}
	if ll := os.Getenv(EnvLogLevel); ll != "" {
		c.logLevel = ll
	}
	if dd := os.Getenv(EnvDataDir); dd != "" {
		c.dataDir = dd
	}
	if wd := os.Getenv(EnvWatchDir); wd != "" {
		c.watchDir = wd
	}
	if fp := os.Getenv(EnvFFProbe); fp != "" {
		c.ffprobePath = fp
	}
	if h := os.Getenv(EnvHeadless); h != "" {
		headless, err := strconv.ParseBool(h)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		c.headless = headless
	}
	if u := os.Getenv(EnvRemoteBaseURL); u != "" {
		c.remoteBaseURL = u
	}
	if tok := os.Getenv(EnvRemoteToken); tok != "" {
		c.remoteToken = tok
	}
	if org := os.Getenv(EnvRemoteOrg); org != "" {
		c.remoteOrgSlug = org
	}
	return nil
}

// Port returns the HTTP server port
func (c *AppConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *AppConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *AppConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *AppConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// WatchDir returns the uploads folder to watch for new recordings.
// Empty disables the folder watcher.
func (c *AppConfig) WatchDir() string {
	return c.watchDir
}

func (c *AppConfig) FFProbePath() string {
	return c.ffprobePath
}

func (c *AppConfig) Headless() bool {
	return c.headless
}

// RemoteEnabled reports whether clip saves should go to the team app's
// data layer. Without a base URL and token the agent persists locally
// only.
func (c *AppConfig) RemoteEnabled() bool {
	return c.remoteBaseURL != "" && c.remoteToken != ""
}

func (c *AppConfig) RemoteBaseURL() string {
	return c.remoteBaseURL
}

func (c *AppConfig) RemoteToken() string {
	return c.remoteToken
}

func (c *AppConfig) RemoteOrgSlug() string {
	return c.remoteOrgSlug
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
