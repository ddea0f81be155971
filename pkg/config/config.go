// Package config loads and validates the librarian's server configuration.
// YAML via gopkg.in/yaml.v3 is the primary format, with TOML via
// BurntSushi/toml accepted as an alternate selected by file extension.
// A Watcher can hot-reload a subset of fields (standing_order_mode,
// log_level) via fsnotify without a server restart.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/cuemby/librarian/pkg/catalog"
	"github.com/cuemby/librarian/pkg/log"
	"github.com/cuemby/librarian/pkg/replication"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// SourceConfig maps one authenticated caller name to the opaque
// authenticator token it must present.
type SourceConfig struct {
	Authenticator string `toml:"authenticator" yaml:"authenticator"`
}

// StoreConfig describes one store to create (if missing) at boot.
type StoreConfig struct {
	PathPrefix string `toml:"path_prefix" yaml:"path_prefix"`
	SSHHost    string `toml:"ssh_host" yaml:"ssh_host"`
	HTTPPrefix string `toml:"http_prefix" yaml:"http_prefix,omitempty"`
	Available  *bool  `toml:"available" yaml:"available,omitempty"`
}

// LocalDiskStagingConfig configures StagerTask's destination and chown
// collaborator.
type LocalDiskStagingConfig struct {
	DestPrefix   string   `toml:"dest_prefix" yaml:"dest_prefix"`
	SSHHost      string   `toml:"ssh_host" yaml:"ssh_host"`
	ChownCommand []string `toml:"chown_command" yaml:"chown_command"`
}

// ServerKind selects the HTTP server implementation the RPC surface rides
// on top of. The core only records which one was asked for; the transport
// itself lives outside this module.
type ServerKind string

const (
	ServerNone    ServerKind = ""
	ServerHTTPStd ServerKind = "std" // net/http, this module's only real implementation
)

// PermissionsMode controls whether mutating RPC operations are accepted.
type PermissionsMode string

const (
	PermissionsReadOnly  PermissionsMode = "readonly"
	PermissionsReadWrite PermissionsMode = "readwrite"
)

// Config is the full set of recognized server configuration options.
type Config struct {
	SecretKey string                  `toml:"SECRET_KEY" yaml:"SECRET_KEY"`
	Sources   map[string]SourceConfig `toml:"sources" yaml:"sources"`
	AddStores map[string]StoreConfig  `toml:"add-stores" yaml:"add-stores"`

	ObsidInferenceMode catalog.ObsidInferenceMode `toml:"obsid_inference_mode" yaml:"obsid_inference_mode"`

	Server           ServerKind `toml:"server" yaml:"server"`
	Host             string     `toml:"host" yaml:"host"`
	Port             int        `toml:"port" yaml:"port"`
	NServerProcesses int        `toml:"n_server_processes" yaml:"n_server_processes"`
	NWorkerThreads   int        `toml:"n_worker_threads" yaml:"n_worker_threads"`

	LocalDiskStaging LocalDiskStagingConfig `toml:"local_disk_staging" yaml:"local_disk_staging"`

	StandingOrderMode replication.Mode `toml:"standing_order_mode" yaml:"standing_order_mode"`

	ReportToMandc bool `toml:"report_to_mandc" yaml:"report_to_mandc"`

	UseGlobus           bool   `toml:"use_globus" yaml:"use_globus"`
	GlobusClientID      string `toml:"globus_client_id" yaml:"globus_client_id"`
	GlobusTransferToken string `toml:"globus_transfer_token" yaml:"globus_transfer_token"`
	GlobusEndpointID    string `toml:"globus_endpoint_id" yaml:"globus_endpoint_id"`

	PermissionsMode PermissionsMode `toml:"permissions_mode" yaml:"permissions_mode"`

	LogLevel log.Level `toml:"log_level" yaml:"log_level"`

	// IdentityCheckURL, if set, is the third-party identity endpoint used
	// to verify a username+token credential pair, in addition to the
	// static `sources` table.
	IdentityCheckURL string `toml:"identity_check_url" yaml:"identity_check_url"`

	// DataDir is where the catalog's bbolt database and any local
	// staging scratch space lives.
	DataDir string `toml:"data_dir" yaml:"data_dir"`
}

// Load reads and validates a config file at path. YAML is the primary,
// recommended format; a path ending in ".toml" is decoded with
// BurntSushi/toml instead.
func Load(path string) (*Config, error) {
	var cfg Config

	if strings.HasSuffix(path, ".toml") {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.NWorkerThreads <= 0 {
		c.NWorkerThreads = 8
	}
	if c.NServerProcesses <= 0 {
		c.NServerProcesses = 1
	}
	if c.ObsidInferenceMode == "" {
		c.ObsidInferenceMode = catalog.ObsidNone
	}
	if c.StandingOrderMode == "" {
		c.StandingOrderMode = replication.ModeNormal
	}
	if c.PermissionsMode == "" {
		c.PermissionsMode = PermissionsReadWrite
	}
	if c.LogLevel == "" {
		c.LogLevel = log.InfoLevel
	}
	if c.DataDir == "" {
		c.DataDir = "."
	}
}

// Validate checks required fields and cross-field invariants.
func (c *Config) Validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("config: SECRET_KEY is required")
	}
	switch c.ObsidInferenceMode {
	case catalog.ObsidNone, catalog.ObsidHERA, catalog.ObsidSO, catalog.ObsidTesting:
	default:
		return fmt.Errorf("config: unrecognized obsid_inference_mode %q", c.ObsidInferenceMode)
	}
	switch c.StandingOrderMode {
	case replication.ModeNormal, replication.ModeDisabled, replication.ModeNighttime:
	default:
		return fmt.Errorf("config: unrecognized standing_order_mode %q", c.StandingOrderMode)
	}
	switch c.PermissionsMode {
	case PermissionsReadOnly, PermissionsReadWrite:
	default:
		return fmt.Errorf("config: unrecognized permissions_mode %q", c.PermissionsMode)
	}
	for name, s := range c.AddStores {
		if !filepath.IsAbs(s.PathPrefix) {
			return fmt.Errorf("config: store %q: path_prefix must be absolute, got %q", name, s.PathPrefix)
		}
	}
	return nil
}

// StoreAvailable reports whether a StoreConfig's Available field defaults
// to true (absent) or honors an explicit false.
func (s StoreConfig) StoreAvailable() bool {
	if s.Available == nil {
		return true
	}
	return *s.Available
}

// Watcher watches a config file for changes and re-loads it, invoking
// onReload with the new Config on every successful reload. Only a narrow
// set of fields are meant to be hot-reloaded in practice (standing order
// mode, log level); callers decide which fields to actually act on.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onReload func(*Config)

	mu      sync.Mutex
	current *Config
}

// NewWatcher starts watching path's directory (so editors that replace
// the file via rename-into-place still trigger a reload) and calls
// onReload whenever the file changes and still validates.
func NewWatcher(path string, initial *Config, onReload func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", filepath.Dir(path), err)
	}

	w := &Watcher{path: path, watcher: fw, onReload: onReload, current: initial}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	logger := log.WithComponent("config")
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				logger.Warn().Err(err).Msg("config reload failed, keeping previous configuration")
				continue
			}
			w.mu.Lock()
			w.current = cfg
			w.mu.Unlock()
			w.onReload(cfg)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn().Err(err).Msg("config watcher error")
		}
	}
}

// Current returns the most recently loaded Config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
