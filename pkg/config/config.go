// Package config provides hierarchical configuration management.
// Priority: defaults < system < user < project < env < flags
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	gserrors "github.com/geosync/geosync/pkg/errors"
)

// Config holds all geosync configuration.
type Config struct {
	Version int `yaml:"version"`

	Source  SourceConfig  `yaml:"source"`
	Storage StorageConfig `yaml:"storage"`
	Watch   WatchConfig   `yaml:"watch"`
}

// SourceConfig controls where dump files come from and how they are
// staged locally.
type SourceConfig struct {
	// BaseURL is the upstream dump endpoint.
	BaseURL string `yaml:"base_url"`
	// DataDir is the working directory for dumps, chunks and deltas.
	DataDir string `yaml:"data_dir"`
	// HTTPTimeout bounds a single download request.
	HTTPTimeout time.Duration `yaml:"http_timeout"`

	Chunks ChunksConfig `yaml:"chunks"`
}

// ChunksConfig sets the per-file chunk line counts for the multi-chunk
// stages.
type ChunksConfig struct {
	AllCountries   int `yaml:"all_countries"`
	AlternateNames int `yaml:"alternate_names"`
	Hierarchy      int `yaml:"hierarchy"`
}

// StorageConfig for persistence.
type StorageConfig struct {
	Database string `yaml:"database"`
}

// WatchConfig controls the watch subcommand.
type WatchConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// Default returns the default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	geosyncDir := filepath.Join(homeDir, ".geosync")

	return &Config{
		Version: 1,
		Source: SourceConfig{
			BaseURL:     "https://download.geonames.org/export/dump",
			DataDir:     filepath.Join(geosyncDir, "data"),
			HTTPTimeout: 10 * time.Minute,
			Chunks: ChunksConfig{
				AllCountries:   25000,
				AlternateNames: 50000,
				Hierarchy:      250000,
			},
		},
		Storage: StorageConfig{
			Database: filepath.Join(geosyncDir, "geosync.db"),
		},
		Watch: WatchConfig{
			Interval: time.Hour,
		},
	}
}

// Validate rejects configuration misuse before any I/O is attempted.
func (c *Config) Validate() error {
	if c.Source.DataDir == "" {
		return gserrors.New(gserrors.CodeConfigInvalid, "source.data_dir must not be empty")
	}
	if c.Source.BaseURL == "" {
		return gserrors.New(gserrors.CodeConfigInvalid, "source.base_url must not be empty")
	}
	if c.Storage.Database == "" {
		return gserrors.New(gserrors.CodeConfigInvalid, "storage.database must not be empty")
	}
	return nil
}

// Manager handles configuration loading and merging.
type Manager struct {
	mu     sync.RWMutex
	config *Config
	paths  []string // Paths that were loaded
}

// NewManager creates a new configuration manager.
func NewManager() *Manager {
	return &Manager{
		config: Default(),
	}
}

// Load loads configuration from all sources in priority order.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.config = Default()

	paths := m.getConfigPaths()
	for _, path := range paths {
		if err := m.loadFile(path); err != nil {
			if !os.IsNotExist(err) {
				return err
			}
		} else {
			m.paths = append(m.paths, path)
		}
	}

	m.loadEnv()

	return m.config.Validate()
}

// getConfigPaths returns config file paths in priority order.
func (m *Manager) getConfigPaths() []string {
	var paths []string

	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/geosync/config.yaml")
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".geosync", "config.yaml"))
	}

	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".geosync.yaml"))
	}

	return paths
}

// loadFile loads a single config file and merges it.
func (m *Manager) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var partial Config
	if err := yaml.Unmarshal(data, &partial); err != nil {
		return gserrors.Wrap(err, gserrors.CodeConfigInvalid, "parsing "+path)
	}

	m.merge(&partial)
	return nil
}

// merge merges non-zero values from src into config.
func (m *Manager) merge(src *Config) {
	if src.Source.BaseURL != "" {
		m.config.Source.BaseURL = src.Source.BaseURL
	}
	if src.Source.DataDir != "" {
		m.config.Source.DataDir = src.Source.DataDir
	}
	if src.Source.HTTPTimeout != 0 {
		m.config.Source.HTTPTimeout = src.Source.HTTPTimeout
	}
	if src.Source.Chunks.AllCountries != 0 {
		m.config.Source.Chunks.AllCountries = src.Source.Chunks.AllCountries
	}
	if src.Source.Chunks.AlternateNames != 0 {
		m.config.Source.Chunks.AlternateNames = src.Source.Chunks.AlternateNames
	}
	if src.Source.Chunks.Hierarchy != 0 {
		m.config.Source.Chunks.Hierarchy = src.Source.Chunks.Hierarchy
	}
	if src.Storage.Database != "" {
		m.config.Storage.Database = src.Storage.Database
	}
	if src.Watch.Interval != 0 {
		m.config.Watch.Interval = src.Watch.Interval
	}
}

// loadEnv loads configuration from environment variables.
func (m *Manager) loadEnv() {
	if v := os.Getenv("GEOSYNC_BASE_URL"); v != "" {
		m.config.Source.BaseURL = v
	}
	if v := os.Getenv("GEOSYNC_DATA_DIR"); v != "" {
		m.config.Source.DataDir = v
	}
	if v := os.Getenv("GEOSYNC_DATABASE"); v != "" {
		m.config.Storage.Database = v
	}
	if v := os.Getenv("GEOSYNC_WATCH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			m.config.Watch.Interval = d
		}
	}
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetPaths returns the paths that were loaded.
func (m *Manager) GetPaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paths
}
