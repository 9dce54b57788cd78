// Package config provides configuration management for the slicer agent.
// Defaults are overlaid by an optional YAML file and then by environment
// variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/heimdex/heimdex-slicer/internal/slicing"
)

const (
	// Default values
	DefaultPort           = 8788
	DefaultLogLevel       = "info"
	DefaultDataDir        = ".heimdex-slicer"
	DefaultEngineWorkers  = 1
	DefaultExtractTimeout = 10 * time.Minute

	// Environment variable names
	EnvConfigFile     = "HEIMDEX_SLICER_CONFIG"
	EnvPort           = "HEIMDEX_SLICER_PORT"
	EnvLogLevel       = "HEIMDEX_SLICER_LOG_LEVEL"
	EnvDataDir        = "HEIMDEX_SLICER_DATA_DIR"
	EnvOutputDir      = "HEIMDEX_SLICER_OUTPUT_DIR"
	EnvFFmpegPath     = "HEIMDEX_SLICER_FFMPEG"
	EnvFFprobePath    = "HEIMDEX_SLICER_FFPROBE"
	EnvEngineWorkers  = "HEIMDEX_SLICER_ENGINE_WORKERS"
	EnvSeekPrecision  = "HEIMDEX_SLICER_SEEK_PRECISION"
	EnvExtractTimeout = "HEIMDEX_SLICER_EXTRACT_TIMEOUT"
	EnvHeadless       = "HEIMDEX_SLICER_HEADLESS"
	EnvCloudURL       = "HEIMDEX_SLICER_CLOUD_URL"
	EnvCloudToken     = "HEIMDEX_SLICER_CLOUD_TOKEN"
	EnvCloudOrg       = "HEIMDEX_SLICER_CLOUD_ORG"

	// Database filename
	DBFilename = "slicer.db"

	// ConfigFilename is looked up inside the data directory.
	ConfigFilename = "config.yaml"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	WorkDir() string
	OutputDir() string
	FFmpegPath() string
	FFprobePath() string
	EngineWorkers() int
	SeekPrecision() slicing.Precision
	ExtractTimeout() time.Duration
	Headless() bool
	CloudURL() string
	CloudToken() string
	CloudOrg() string
	CloudEnabled() bool
}

// fileConfig mirrors config.yaml. Zero values mean "not set".
type fileConfig struct {
	Port           int    `yaml:"port"`
	LogLevel       string `yaml:"log_level"`
	DataDir        string `yaml:"data_dir"`
	OutputDir      string `yaml:"output_dir"`
	FFmpegPath     string `yaml:"ffmpeg_path"`
	FFprobePath    string `yaml:"ffprobe_path"`
	EngineWorkers  int    `yaml:"engine_workers"`
	SeekPrecision  string `yaml:"seek_precision"`
	ExtractTimeout string `yaml:"extract_timeout"`
	Headless       *bool  `yaml:"headless"`
	CloudURL       string `yaml:"cloud_url"`
	CloudToken     string `yaml:"cloud_token"`
	CloudOrg       string `yaml:"cloud_org"`
}

// EnvConfig holds the merged configuration
type EnvConfig struct {
	port           int
	logLevel       string
	dataDir        string
	outputDir      string
	ffmpegPath     string
	ffprobePath    string
	engineWorkers  int
	seekPrecision  slicing.Precision
	extractTimeout time.Duration
	headless       bool
	cloudURL       string
	cloudToken     string
	cloudOrg       string
	source         string
}

// New creates a new EnvConfig with defaults, the YAML file if one exists,
// and environment variable overrides, in that order.
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:           DefaultPort,
		logLevel:       DefaultLogLevel,
		dataDir:        defaultDataDir(),
		engineWorkers:  DefaultEngineWorkers,
		seekPrecision:  slicing.PrecisionMillisecond,
		extractTimeout: DefaultExtractTimeout,
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	path := os.Getenv(EnvConfigFile)
	explicit := path != ""
	if !explicit {
		path = filepath.Join(cfg.dataDir, ConfigFilename)
	}
	if err := cfg.loadFile(path, explicit); err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.outputDir == "" {
		cfg.outputDir = defaultOutputDir(cfg.dataDir)
	}
	return cfg, nil
}

func (c *EnvConfig) loadFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("invalid config file %s: %w", path, err)
	}
	c.source = path

	if fc.Port != 0 {
		if err := validPort(fc.Port); err != nil {
			return fmt.Errorf("invalid port in %s: %w", path, err)
		}
		c.port = fc.Port
	}
	if fc.LogLevel != "" {
		c.logLevel = fc.LogLevel
	}
	if fc.DataDir != "" && os.Getenv(EnvDataDir) == "" {
		c.dataDir = fc.DataDir
	}
	if fc.OutputDir != "" {
		c.outputDir = fc.OutputDir
	}
	if fc.FFmpegPath != "" {
		c.ffmpegPath = fc.FFmpegPath
	}
	if fc.FFprobePath != "" {
		c.ffprobePath = fc.FFprobePath
	}
	if fc.EngineWorkers != 0 {
		if fc.EngineWorkers < 1 {
			return fmt.Errorf("invalid engine_workers in %s: must be at least 1", path)
		}
		c.engineWorkers = fc.EngineWorkers
	}
	if fc.SeekPrecision != "" {
		p, err := slicing.ParsePrecision(fc.SeekPrecision)
		if err != nil {
			return fmt.Errorf("invalid seek_precision in %s: %w", path, err)
		}
		c.seekPrecision = p
	}
	if fc.ExtractTimeout != "" {
		d, err := time.ParseDuration(fc.ExtractTimeout)
		if err != nil {
			return fmt.Errorf("invalid extract_timeout in %s: %w", path, err)
		}
		c.extractTimeout = d
	}
	if fc.Headless != nil {
		c.headless = *fc.Headless
	}
	if fc.CloudURL != "" {
		c.cloudURL = strings.TrimRight(fc.CloudURL, "/")
	}
	if fc.CloudToken != "" {
		c.cloudToken = fc.CloudToken
	}
	if fc.CloudOrg != "" {
		c.cloudOrg = fc.CloudOrg
	}
	return nil
}

func (c *EnvConfig) applyEnv() error {
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if err := validPort(port); err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		c.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		c.logLevel = ll
	}
	if od := os.Getenv(EnvOutputDir); od != "" {
		c.outputDir = od
	}
	if fp := os.Getenv(EnvFFmpegPath); fp != "" {
		c.ffmpegPath = fp
	}
	if fp := os.Getenv(EnvFFprobePath); fp != "" {
		c.ffprobePath = fp
	}

	if w := os.Getenv(EnvEngineWorkers); w != "" {
		n, err := strconv.Atoi(w)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvEngineWorkers, err)
		}
		if n < 1 {
			return fmt.Errorf("invalid %s: must be at least 1", EnvEngineWorkers)
		}
		c.engineWorkers = n
	}

	if sp := os.Getenv(EnvSeekPrecision); sp != "" {
		p, err := slicing.ParsePrecision(sp)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvSeekPrecision, err)
		}
		c.seekPrecision = p
	}

	if et := os.Getenv(EnvExtractTimeout); et != "" {
		d, err := time.ParseDuration(et)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvExtractTimeout, err)
		}
		c.extractTimeout = d
	}

	if h := os.Getenv(EnvHeadless); h != "" {
		v, err := strconv.ParseBool(strings.TrimSpace(h))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		c.headless = v
	}

	if u := os.Getenv(EnvCloudURL); u != "" {
		c.cloudURL = strings.TrimRight(u, "/")
	}
	if tok := os.Getenv(EnvCloudToken); tok != "" {
		c.cloudToken = tok
	}
	if org := os.Getenv(EnvCloudOrg); org != "" {
		c.cloudOrg = org
	}
	return nil
}

func validPort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// WorkDir is where staged inputs and extracted slices live during an export.
func (c *EnvConfig) WorkDir() string {
	return filepath.Join(c.dataDir, "work")
}

// OutputDir is where saved archives are written.
func (c *EnvConfig) OutputDir() string {
	return c.outputDir
}

func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpegPath
}

func (c *EnvConfig) FFprobePath() string {
	return c.ffprobePath
}

func (c *EnvConfig) EngineWorkers() int {
	return c.engineWorkers
}

func (c *EnvConfig) SeekPrecision() slicing.Precision {
	return c.seekPrecision
}

func (c *EnvConfig) ExtractTimeout() time.Duration {
	return c.extractTimeout
}

// Headless disables the tray icon.
func (c *EnvConfig) Headless() bool {
	return c.headless
}

func (c *EnvConfig) CloudURL() string {
	return c.cloudURL
}

func (c *EnvConfig) CloudToken() string {
	return c.cloudToken
}

func (c *EnvConfig) CloudOrg() string {
	return c.cloudOrg
}

// CloudEnabled reports whether archives can be uploaded to a workspace.
func (c *EnvConfig) CloudEnabled() bool {
	return c.cloudURL != "" && c.cloudToken != ""
}

// Source returns the config file that was loaded, or "" when none was.
func (c *EnvConfig) Source() string {
	return c.source
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

func defaultOutputDir(dataDir string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(dataDir, "exports")
	}
	downloads := filepath.Join(home, "Downloads")
	if info, err := os.Stat(downloads); err == nil && info.IsDir() {
		return downloads
	}
	return filepath.Join(dataDir, "exports")
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
