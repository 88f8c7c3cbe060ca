// Package config loads the settings shared by every profilesync command:
// data locations, the store backend, the line vocabulary, reconciliation
// options, logging, metrics and the batch job list.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/coolbeans/profilesync/pkg/extract"
	"github.com/coolbeans/profilesync/pkg/store"
)

// Store backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Config is the full profilesync configuration.
type Config struct {
	Paths      PathsConfig        `yaml:"paths"`
	Store      StoreConfig        `yaml:"store"`
	Vocabulary extract.Vocabulary `yaml:"vocabulary"`
	Reconcile  ReconcileConfig    `yaml:"reconcile"`
	Logging    LoggingConfig      `yaml:"logging"`
	Metrics    MetricsConfig      `yaml:"metrics"`
	Jobs       []Job              `yaml:"jobs"`
}

// PathsConfig locates the record store and the source documents. Relative
// paths other than DataDir and DocumentsDir resolve against DataDir.
type PathsConfig struct {
	DataDir      string `yaml:"data_dir"`
	UnitsDir     string `yaml:"units_dir"`
	FactionsFile string `yaml:"factions_file"`
	DocumentsDir string `yaml:"documents_dir"`
	SQLitePath   string `yaml:"sqlite_path"`
}

// StoreConfig selects the record store backend.
type StoreConfig struct {
	Backend string `yaml:"backend"`
}

// ReconcileConfig holds matching options.
type ReconcileConfig struct {
	DefaultProfile    DefaultProfileConfig `yaml:"default_profile"`
	SubstringMatching bool                 `yaml:"substring_matching"`

	// Aliases maps faction slug to stored unit id to extracted unit name.
	Aliases map[string]map[string]string `yaml:"aliases,omitempty"`
}

// DefaultProfileConfig is the battle profile given to a matched unit that
// has none.
type DefaultProfileConfig struct {
	UnitSize string `yaml:"unit_size"`
	Points   int    `yaml:"points"`
	BaseSize string `yaml:"base_size"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// MetricsConfig configures the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// Job is one batch entry: a faction slug, the document holding its data,
// and the faction's title inside that document. A nil FactionTitle means
// the whole document belongs to the faction.
type Job struct {
	FactionSlug  string  `yaml:"faction"`
	Document     string  `yaml:"document"`
	FactionTitle *string `yaml:"title"`
}

// WholeDocument reports whether segmentation is skipped for this job.
func (j Job) WholeDocument() bool {
	return j.FactionTitle == nil
}

// Title returns the faction title, or "" for a whole-document job.
func (j Job) Title() string {
	if j.FactionTitle == nil {
		return ""
	}
	return *j.FactionTitle
}

// titled returns a pointer to title for use in job literals.
func titled(title string) *string {
	return &title
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir:      "data",
			UnitsDir:     "units",
			FactionsFile: "factions.json",
			DocumentsDir: "docs",
			SQLitePath:   "profilesync.db",
		},
		Store:      StoreConfig{Backend: BackendJSON},
		Vocabulary: extract.DefaultVocabulary(),
		Reconcile: ReconcileConfig{
			DefaultProfile: DefaultProfileConfig{
				UnitSize: "1",
				Points:   0,
				BaseSize: "40mm",
			},
			SubstringMatching: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Jobs: DefaultJobs(),
	}
}

// DefaultJobs returns the standard batch: one faction with a document of
// its own and three factions sharing the combined battle profiles file.
func DefaultJobs() []Job {
	return []Job{
		{FactionSlug: "flesh-eater-courts", Document: "Battle Profile - Flesh Eater Courts.txt"},
		{FactionSlug: "ossiarch-bonereapers", Document: "Battle Profiles.txt", FactionTitle: titled("OSSIARCH BONEREAPERS")},
		{FactionSlug: "slaves-to-darkness", Document: "Battle Profiles.txt", FactionTitle: titled("SLAVES TO DARKNESS")},
		{FactionSlug: "stormcast-eternals", Document: "Battle Profiles.txt", FactionTitle: titled("STORMCAST ETERNALS")},
	}
}

// Load reads the configuration from path. A missing file yields the
// defaults. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML, creating the parent directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("PROFILESYNC_DATA_DIR"); dir != "" {
		c.Paths.DataDir = dir
	}
	if dir := os.Getenv("PROFILESYNC_DOCS_DIR"); dir != "" {
		c.Paths.DocumentsDir = dir
	}
	if backend := os.Getenv("PROFILESYNC_STORE"); backend != "" {
		c.Store.Backend = strings.ToLower(backend)
	}
	if level := os.Getenv("PROFILESYNC_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// Validate checks the fields that have a closed set of values.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("unknown store backend %q (want %s or %s)", c.Store.Backend, BackendJSON, BackendSQLite)
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}

	for index, job := range c.Jobs {
		if job.FactionSlug == "" {
			return fmt.Errorf("job %d: faction is required", index+1)
		}
		if job.Document == "" {
			return fmt.Errorf("job %d (%s): document is required", index+1, job.FactionSlug)
		}
		if job.FactionTitle != nil && strings.TrimSpace(*job.FactionTitle) == "" {
			return fmt.Errorf("job %d (%s): title is empty; omit it to use the whole document", index+1, job.FactionSlug)
		}
	}
	return nil
}

// UnitsDir returns the resolved unit record directory.
func (c *Config) UnitsDir() string {
	return c.resolve(c.Paths.UnitsDir)
}

// FactionsPath returns the resolved factions file path.
func (c *Config) FactionsPath() string {
	return c.resolve(c.Paths.FactionsFile)
}

// SQLitePath returns the resolved SQLite database path.
func (c *Config) SQLitePath() string {
	return c.resolve(c.Paths.SQLitePath)
}

// DocumentPath resolves a job document against the documents directory.
func (c *Config) DocumentPath(document string) string {
	if filepath.IsAbs(document) {
		return document
	}
	return filepath.Join(c.Paths.DocumentsDir, document)
}

func (c *Config) resolve(candidate string) string {
	if filepath.IsAbs(candidate) {
		return candidate
	}
	return filepath.Join(c.Paths.DataDir, candidate)
}

// BattleProfile converts the default profile into a store record.
func (d DefaultProfileConfig) BattleProfile() *store.BattleProfile {
	return &store.BattleProfile{
		UnitSize: store.UnitSize(d.UnitSize),
		Points:   d.Points,
		BaseSize: d.BaseSize,
	}
}

// AliasesFor returns the alias table for one faction.
func (r ReconcileConfig) AliasesFor(factionSlug string) map[string]string {
	return r.Aliases[factionSlug]
}
