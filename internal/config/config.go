package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/claude/stride/internal/models"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Tracking  TrackingConfig  `yaml:"tracking"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig selects the store backing run history and the
// active-session snapshot. "sqlite" (the default) needs only a file path;
// "postgres" needs full connection details.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"` // sqlite only
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// TrackingConfig carries the runner-facing settings: pace zones, audio cue
// behavior, display units, and workout presets.
type TrackingConfig struct {
	UnitSystem string                  `yaml:"unit_system"`
	PaceZones  []PaceZoneConfig        `yaml:"pace_zones"`
	AudioCues  models.AudioCueSettings `yaml:"audio_cues"`
	Presets    []PresetConfig          `yaml:"presets"`
}

type PaceZoneConfig struct {
	ID      string  `yaml:"id"`
	Name    string  `yaml:"name"`
	MinPace float64 `yaml:"min_pace"`
	MaxPace float64 `yaml:"max_pace"`
	Color   string  `yaml:"color"`
}

type PresetConfig struct {
	Name       string  `yaml:"name"`
	Type       string  `yaml:"type"`
	TargetPace float64 `yaml:"target_pace"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Zones converts the configured zones to model form, preserving order.
// Overlapping ranges are accepted as-is: classification is first-match by
// this order.
func (t TrackingConfig) Zones() []models.PaceZone {
	zones := make([]models.PaceZone, len(t.PaceZones))
	for i, z := range t.PaceZones {
		zones[i] = models.PaceZone{ID: z.ID, Name: z.Name, MinPace: z.MinPace, MaxPace: z.MaxPace, Color: z.Color}
	}
	return zones
}

// Units returns the configured unit system, defaulting to metric.
func (t TrackingConfig) Units() models.UnitSystem {
	if t.UnitSystem == string(models.UnitImperial) {
		return models.UnitImperial
	}
	return models.UnitMetric
}

// FindPreset looks up a workout preset by name.
func (t TrackingConfig) FindPreset(name string) (models.WorkoutPreset, bool) {
	for _, p := range t.Presets {
		if p.Name == name {
			return models.WorkoutPreset{Name: p.Name, Type: p.Type, TargetPace: p.TargetPace}, true
		}
	}
	return models.WorkoutPreset{}, false
}

// Load reads config from a YAML file, then applies environment variable
// overrides. Env vars use the prefix STRIDE_ and underscore-separated paths:
//
//	STRIDE_SERVER_HOST, STRIDE_SERVER_PORT,
//	STRIDE_DB_DRIVER, STRIDE_DB_PATH, STRIDE_DB_HOST, STRIDE_DB_PORT,
//	STRIDE_DB_NAME, STRIDE_DB_USER, STRIDE_DB_PASSWORD, STRIDE_DB_SSLMODE,
//	STRIDE_AUTH_API_KEY
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STRIDE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("STRIDE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("STRIDE_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("STRIDE_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("STRIDE_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("STRIDE_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("STRIDE_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("STRIDE_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("STRIDE_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("STRIDE_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("STRIDE_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.Driver == "sqlite" && cfg.Database.Path == "" {
		cfg.Database.Path = "stride.db"
	}
	if cfg.Tracking.UnitSystem == "" {
		cfg.Tracking.UnitSystem = string(models.UnitMetric)
	}
	if len(cfg.Tracking.PaceZones) == 0 {
		cfg.Tracking.PaceZones = []PaceZoneConfig{
			{ID: "1", Name: "Warmup", MinPace: 400, MaxPace: 500, Color: "#10B981"},
			{ID: "2", Name: "Tempo", MinPace: 300, MaxPace: 360, Color: "#3B82F6"},
			{ID: "3", Name: "Race", MinPace: 240, MaxPace: 280, Color: "#EF4444"},
		}
	}
	if cfg.Tracking.AudioCues == (models.AudioCueSettings{}) {
		cfg.Tracking.AudioCues = models.AudioCueSettings{
			Enabled:               true,
			PaceAlerts:            true,
			DistanceMilestones:    true,
			AlertFrequencySeconds: 60,
		}
	}
	if cfg.Tracking.AudioCues.AlertFrequencySeconds == 0 {
		cfg.Tracking.AudioCues.AlertFrequencySeconds = 60
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required for postgres")
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required for postgres")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required for postgres")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required for postgres")
		}
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	for _, z := range c.Tracking.PaceZones {
		if z.ID == "" {
			return fmt.Errorf("pace zone %q missing id", z.Name)
		}
		if z.MinPace > z.MaxPace {
			return fmt.Errorf("pace zone %q has min_pace > max_pace", z.Name)
		}
	}
	return nil
}
