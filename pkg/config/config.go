package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harrisonrobin/taskpilot/pkg/analysis"
	"github.com/harrisonrobin/taskpilot/pkg/model"
	"github.com/harrisonrobin/taskpilot/pkg/oracle"
	"github.com/harrisonrobin/taskpilot/pkg/tracker"
)

const (
	xdgAppName = "taskpilot"
	configFile = "config.yaml"

	DefaultCalendar = "Tasks"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendMongo  = "mongo"
)

type Config struct {
	// Calendar is the Google Calendar that receives task events. Empty
	// disables calendar sync.
	Calendar string         `yaml:"calendar"`
	Oracle   oracle.Config  `yaml:"oracle"`
	Store    StoreConfig    `yaml:"store"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Tracker  TrackerConfig  `yaml:"tracker"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type StoreConfig struct {
	Backend string `yaml:"backend"`
	// Path is the badger directory.
	Path     string `yaml:"path"`
	MongoURI string `yaml:"mongo_uri"`
	Database string `yaml:"database"`
}

type AnalysisConfig struct {
	PriorityScheme string  `yaml:"priority_scheme"`
	DefaultHours   float64 `yaml:"default_hours"`
	MinHours       float64 `yaml:"min_hours"`
	MaxHours       float64 `yaml:"max_hours"`
}

type TrackerConfig struct {
	DependencyPolicy string `yaml:"dependency_policy"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// SweepInterval is how often serve re-checks overdue tasks.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// GetXdgHome returns ~/.config/taskpilot, where every state file lives.
func GetXdgHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", xdgAppName), nil
}

func GetConfigPath() (string, error) {
	dir, err := GetXdgHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

func Default() *Config {
	path := ""
	if dir, err := GetXdgHome(); err == nil {
		path = filepath.Join(dir, "db")
	}
	return &Config{
		Calendar: "",
		Oracle: oracle.Config{
			Provider: oracle.ProviderNone,
			Timeout:  analysis.DefaultTimeout,
		},
		Store: StoreConfig{
			Backend:  BackendBadger,
			Path:     path,
			Database: "taskpilot",
		},
		Analysis: AnalysisConfig{
			PriorityScheme: model.ThreeLevel.Name(),
			DefaultHours:   analysis.DefaultEstimatedHours,
			MinHours:       model.DefaultHoursBounds.Min,
			MaxHours:       model.DefaultHoursBounds.Max,
		},
		Tracker: TrackerConfig{DependencyPolicy: string(tracker.DependencyWarn)},
		Server:  ServerConfig{Addr: ":8080", SweepInterval: time.Hour},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path over the defaults. A missing file is not an error.
// Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads from GetConfigPath.
func LoadDefault() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return Load(path)
}

func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.providerIs(oracle.ProviderOpenAI) {
		c.Oracle.Provider = oracle.ProviderOpenAI
		c.Oracle.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && c.providerIs(oracle.ProviderGemini) {
		c.Oracle.Provider = oracle.ProviderGemini
		c.Oracle.APIKey = key
	}
	if host := os.Getenv("OLLAMA_HOST"); host != "" && c.Oracle.Provider == oracle.ProviderOllama && c.Oracle.BaseURL == "" {
		c.Oracle.BaseURL = host
	}
	if uri := os.Getenv("MONGODB_URI"); uri != "" {
		c.Store.MongoURI = uri
	}
	if backend := os.Getenv("TASKPILOT_STORE"); backend != "" {
		c.Store.Backend = backend
	}
	if cal := os.Getenv("TASKPILOT_CALENDAR"); cal != "" {
		c.Calendar = cal
	}
}

// providerIs reports whether the configured provider is p or still unset,
// so an API key in the environment can select its provider.
func (c *Config) providerIs(p string) bool {
	cur := strings.ToLower(c.Oracle.Provider)
	return cur == p || cur == "" || cur == oracle.ProviderNone
}

func (c *Config) Validate() error {
	if _, err := model.PrioritySchemeByName(c.Analysis.PriorityScheme); err != nil {
		return err
	}
	if _, err := tracker.ParseDependencyPolicy(c.Tracker.DependencyPolicy); err != nil {
		return err
	}
	switch c.Store.Backend {
	case BackendMemory, BackendBadger:
	case BackendMongo:
		if c.Store.MongoURI == "" {
			return fmt.Errorf("store backend %q needs mongo_uri or MONGODB_URI", c.Store.Backend)
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	return nil
}

// AnalysisEngineConfig converts the analysis section. Invalid bounds are
// repaired by analysis.NewEngine.
func (c *Config) AnalysisEngineConfig() analysis.Config {
	scheme, err := model.PrioritySchemeByName(c.Analysis.PriorityScheme)
	if err != nil {
		scheme = model.ThreeLevel
	}
	return analysis.Config{
		Priorities:   scheme,
		Hours:        model.HoursBounds{Min: c.Analysis.MinHours, Max: c.Analysis.MaxHours},
		DefaultHours: c.Analysis.DefaultHours,
		Timeout:      c.Oracle.Timeout,
	}
}

func (c *Config) DependencyPolicy() tracker.DependencyPolicy {
	p, err := tracker.ParseDependencyPolicy(c.Tracker.DependencyPolicy)
	if err != nil {
		return tracker.DependencyWarn
	}
	return p
}
