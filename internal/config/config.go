package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for stockscope.
type Config struct {
	Storage  Storage  `yaml:"storage"`
	Server   Server   `yaml:"server"`
	Analysis Analysis `yaml:"analysis"`
	Alpaca   Alpaca   `yaml:"alpaca"`
	Logging  Logging  `yaml:"logging"`
	Client   Client   `yaml:"client"`
	Table    Table    `yaml:"table"`
}

// Storage holds paths for data persistence.
type Storage struct {
	SQLitePath string `yaml:"sqlite_path"`
	ExportDir  string `yaml:"export_dir"`
}

// Server holds network listener configuration.
type Server struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Analysis configures the remote analysis API used for company info.
type Analysis struct {
	BaseURL         string        `yaml:"base_url"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxAttempts     int           `yaml:"max_attempts"`
	RateLimitPerMin int           `yaml:"rate_limit_per_min"`
	Workers         int           `yaml:"workers"`
}

// Alpaca holds credentials and endpoints for the Alpaca APIs. When a key is
// set, company info is looked up through Alpaca instead of the analysis API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File receives log output from terminal UIs.
	File string `yaml:"file"`
}

// Client configures the terminal tools talking to a stockscope server.
type Client struct {
	ServerURL string `yaml:"server_url"`
	Token     string `yaml:"token"`
}

// Table configures the watchlist table.
type Table struct {
	PageSizes []int `yaml:"page_sizes"`
}

// Enabled reports whether Alpaca credentials are configured.
func (a Alpaca) Enabled() bool { return a.APIKey != "" && a.APISecret != "" }

// Addr returns the host:port the server listens on.
func (s Server) Addr() string { return s.Host + ":" + strconv.Itoa(s.Port) }

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Defaults returns the configuration used for every field a file leaves
// unset.
func Defaults() *Config {
	return &Config{
		Storage: Storage{
			SQLitePath: "stockscope.db",
			ExportDir:  "exports",
		},
		Server: Server{
			Host:            "127.0.0.1",
			Port:            10000,
			ShutdownTimeout: 10 * time.Second,
		},
		Analysis: Analysis{
			BaseURL:         "https://api.aranish.uk",
			Timeout:         10 * time.Second,
			MaxAttempts:     3,
			RateLimitPerMin: 120,
			Workers:         4,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
			File:   "stockscope-tui.log",
		},
		Client: Client{
			ServerURL: "http://127.0.0.1:10000",
		},
		Table: Table{
			PageSizes: []int{10, 20, 30, 40, 50},
		},
	}
}

// Load reads the YAML configuration file at the given path on top of
// Defaults, and then applies environment variable overrides. An empty path
// skips the file.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// LoadOptional is Load, except that a missing file is not an error.
func LoadOptional(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			path = ""
		}
	}
	return Load(path)
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STOCKSCOPE_SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("STOCKSCOPE_EXPORT_DIR"); v != "" {
		cfg.Storage.ExportDir = v
	}

	if v := os.Getenv("STOCKSCOPE_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("STOCKSCOPE_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}

	if v := os.Getenv("STOCKSCOPE_API_URL"); v != "" {
		cfg.Analysis.BaseURL = v
	}

	if v := os.Getenv("STOCKSCOPE_SERVER_URL"); v != "" {
		cfg.Client.ServerURL = v
	}
	if v := os.Getenv("STOCKSCOPE_TOKEN"); v != "" {
		cfg.Client.Token = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (canonical names used by the SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("APCA_API_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}
}
