package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Backend names accepted by the "backend" setting.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
)

// Config holds application configuration.
type Config struct {
	// WorkMinutes is the work phase length used for a fresh timer (no snapshot yet).
	WorkMinutes int `json:"work_minutes"`

	// BreakMinutes is the break phase length used for a fresh timer.
	BreakMinutes int `json:"break_minutes"`

	// TickIntervalMS is how often the serve loop ticks the timer, in milliseconds.
	// Accuracy does not depend on it; only display freshness does.
	TickIntervalMS int `json:"tick_interval_ms"`

	// Backend selects the snapshot store: "sqlite" (default) or "file".
	Backend string `json:"backend,omitempty"`

	// ListenAddr is the bind address for `tempo serve`.
	ListenAddr string `json:"listen_addr,omitempty"`

	// AllowedPaths is an allowlist of directories for import/export files.
	// Paths outside ~/.tempo/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for import/export.
	// Symlink and extension checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of tool types to disable entirely
	// (task, note, event, timer, state).
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		WorkMinutes:    25,
		BreakMinutes:   5,
		TickIntervalMS: 1000,
		Backend:        BackendSQLite,
		ListenAddr:     "127.0.0.1:7373",
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.tempo) and repo (.tempo) directories.
// Repo config is found by walking upward from startDir to the nearest .tempo/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repoConfigPath := FindRepoConfig(startDir)
	repo, err := loadFileRaw(repoConfigPath)
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .tempo/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	if startDir == "" {
		return ""
	}
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".tempo", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if c.WorkMinutes <= 0 {
		return errors.New("work_minutes must be greater than 0")
	}
	if c.BreakMinutes <= 0 {
		return errors.New("break_minutes must be greater than 0")
	}
	if c.TickIntervalMS <= 0 {
		return errors.New("tick_interval_ms must be greater than 0")
	}
	switch c.Backend {
	case BackendSQLite, BackendFile:
	default:
		return errors.New(`backend must be one of: sqlite, file`)
	}
	return nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.WorkMinutes = firstNonZero(overlay.WorkMinutes, base.WorkMinutes)
	result.BreakMinutes = firstNonZero(overlay.BreakMinutes, base.BreakMinutes)
	result.TickIntervalMS = firstNonZero(overlay.TickIntervalMS, base.TickIntervalMS)
	result.DBMaxOpenConns = firstNonZero(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = firstNonZero(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	result.Backend = strings.TrimSpace(overlay.Backend)
	if result.Backend == "" {
		result.Backend = base.Backend
	}
	result.ListenAddr = strings.TrimSpace(overlay.ListenAddr)
	if result.ListenAddr == "" {
		result.ListenAddr = base.ListenAddr
	}

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

func firstNonZero(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
