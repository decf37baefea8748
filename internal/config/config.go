package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all algometa configuration.
type Config struct {
	// Manual sources, highest priority first.
	Manuals []string `yaml:"manuals"`

	// Metadata store
	Store StoreConfig `yaml:"store"`

	// Manual table and bus patterns
	Parser ParserConfig `yaml:"parser"`

	// Audit report
	Audit AuditConfig `yaml:"audit"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// File watching
	Watch WatchConfig `yaml:"watch"`
}

// Store backends.
const (
	BackendDir    = "dir"
	BackendSQLite = "sqlite"
)

// StoreConfig selects where records live.
type StoreConfig struct {
	Backend      string `yaml:"backend"`       // dir, sqlite
	Dir          string `yaml:"dir"`           // one <guid>.json per record
	DatabasePath string `yaml:"database_path"` // sqlite file
}

// ParserConfig configures manual table parsing.
type ParserConfig struct {
	ColumnTitle string           `yaml:"column_title"`
	Units       []string         `yaml:"units"`
	BusRanges   []BusRangeConfig `yaml:"bus_ranges"`
}

// BusRangeConfig is an accepted window for bus selector bounds:
// Min[0] <= min <= Min[1] and Max[0] <= max <= Max[1].
type BusRangeConfig struct {
	Min [2]float64 `yaml:"min,flow"`
	Max [2]float64 `yaml:"max,flow"`
}

// AuditConfig configures the audit report.
type AuditConfig struct {
	Output string `yaml:"output"`
}

// WatchConfig configures the watch command.
type WatchConfig struct {
	Debounce string `yaml:"debounce"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Manuals: []string{"docs/manual-1.10.0.md", "docs/manual-1.9.0.md"},

		Store: StoreConfig{
			Backend:      BackendDir,
			Dir:          "docs/algorithms",
			DatabasePath: "data/algometa.db",
		},

		Parser: ParserConfig{
			ColumnTitle: "Name Min Max Default Unit Description",
			Units:       []string{"V", "dB", "%", "Hz", "ST", "ms", "s", "kΩ", "μF", "MIDI channel"},
			BusRanges: []BusRangeConfig{
				{Min: [2]float64{0, 4}, Max: [2]float64{24, 32}},
				{Min: [2]float64{0, 1}, Max: [2]float64{20, 32}},
			},
		},

		Audit: AuditConfig{
			Output: "docs/audit_report.md",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},

		Watch: WatchConfig{
			Debounce: "500ms",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Defaults if config file doesn't exist
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
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

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if list := os.Getenv("ALGOMETA_MANUALS"); list != "" {
		var manuals []string
		for _, m := range strings.Split(list, ",") {
			if m = strings.TrimSpace(m); m != "" {
				manuals = append(manuals, m)
			}
		}
		c.Manuals = manuals
	}
	if dir := os.Getenv("ALGOMETA_STORE_DIR"); dir != "" {
		c.Store.Dir = dir
	}
	if path := os.Getenv("ALGOMETA_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if backend := os.Getenv("ALGOMETA_STORE_BACKEND"); backend != "" {
		c.Store.Backend = backend
	}
	if level := os.Getenv("ALGOMETA_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// GetDebounce returns the watch debounce as a duration.
func (c *Config) GetDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

// ValidBackends lists all supported store backends.
var ValidBackends = []string{BackendDir, BackendSQLite}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.Manuals) == 0 {
		return fmt.Errorf("no manual sources configured (set manuals or ALGOMETA_MANUALS)")
	}

	if err := c.Store.validate(); err != nil {
		return err
	}

	for i, r := range c.Parser.BusRanges {
		if r.Min[0] > r.Min[1] || r.Max[0] > r.Max[1] {
			return fmt.Errorf("parser.bus_ranges[%d]: bounds out of order", i)
		}
	}
	for _, u := range c.Parser.Units {
		if strings.TrimSpace(u) == "" {
			return fmt.Errorf("parser.units: empty unit")
		}
	}

	if err := c.Logging.validate(); err != nil {
		return err
	}

	if c.Watch.Debounce != "" {
		if d, err := time.ParseDuration(c.Watch.Debounce); err != nil || d <= 0 {
			return fmt.Errorf("invalid watch.debounce: %q", c.Watch.Debounce)
		}
	}

	return nil
}

func (s *StoreConfig) validate() error {
	switch s.Backend {
	case BackendDir:
		if s.Dir == "" {
			return fmt.Errorf("store.dir is required for the %s backend", BackendDir)
		}
	case BackendSQLite:
		if s.DatabasePath == "" {
			return fmt.Errorf("store.database_path is required for the %s backend", BackendSQLite)
		}
	default:
		return fmt.Errorf("invalid store backend: %s (valid: %v)", s.Backend, ValidBackends)
	}
	return nil
}
