package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can be written as strings
// like "200ms" or "2s". Plain integers are taken as nanoseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("config: invalid duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("config: invalid duration value %q", value.Value)
	}
	*d = Duration(n)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the solrouter service.
type Config struct {
	Server  Server        `yaml:"server"`
	Storage Storage       `yaml:"storage"`
	Logging Logging       `yaml:"logging"`
	Queue   QueueConfig   `yaml:"queue"`
	Router  RouterConfig  `yaml:"router"`
	Venues  []VenueConfig `yaml:"venues"`
}

// Server holds network listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the host:port listen address.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Storage holds paths for data persistence.
type Storage struct {
	SQLitePath string `yaml:"sqlite_path"`
	QueuePath  string `yaml:"queue_path"`
	ArchiveDir string `yaml:"archive_dir"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// QueueConfig tunes the durable job queue and its worker pool.
type QueueConfig struct {
	Concurrency  int      `yaml:"concurrency"`
	MaxAttempts  int      `yaml:"max_attempts"`
	BackoffBase  Duration `yaml:"backoff_base"`
	PollInterval Duration `yaml:"poll_interval"`
}

// RouterConfig tunes the simulated swap execution.
type RouterConfig struct {
	ExecDelay     Duration `yaml:"exec_delay"`
	ExecJitterMax Duration `yaml:"exec_jitter_max"`
	SlippageMax   float64  `yaml:"slippage_max"`
}

// VenueConfig describes one simulated venue: a base-price band, a
// perturbation band around the drawn base price, a fixed fee fraction, and
// an artificial quote latency.
type VenueConfig struct {
	Name         string   `yaml:"name"`
	Fee          float64  `yaml:"fee"`
	PriceMin     float64  `yaml:"price_min"`
	PriceMax     float64  `yaml:"price_max"`
	Perturbation float64  `yaml:"perturbation"`
	QuoteDelay   Duration `yaml:"quote_delay"`
}

// ---------------------------------------------------------------------------
// Defaults
// ---------------------------------------------------------------------------

// Default returns the built-in configuration: two venues with divergent
// price/fee characteristics, a 10-worker queue with 3 attempts and a 2s
// doubling backoff, and ~2.5s simulated settlement.
func Default() *Config {
	return &Config{
		Server: Server{Host: "0.0.0.0", Port: 8080},
		Storage: Storage{
			SQLitePath: "data/solrouter.db",
			QueuePath:  "data/queue.db",
			ArchiveDir: "data/archive",
		},
		Logging: Logging{Level: "info", Format: "json"},
		Queue: QueueConfig{
			Concurrency:  10,
			MaxAttempts:  3,
			BackoffBase:  Duration(2 * time.Second),
			PollInterval: Duration(100 * time.Millisecond),
		},
		Router: RouterConfig{
			ExecDelay:     Duration(2500 * time.Millisecond),
			ExecJitterMax: Duration(time.Second),
			SlippageMax:   0.01,
		},
		Venues: []VenueConfig{
			{
				Name:         "raydium",
				Fee:          0.003,
				PriceMin:     23.5,
				PriceMax:     25.5,
				Perturbation: 0.02,
				QuoteDelay:   Duration(200 * time.Millisecond),
			},
			{
				Name:         "orca",
				Fee:          0.002,
				PriceMin:     23.0,
				PriceMax:     26.0,
				Perturbation: 0.03,
				QuoteDelay:   Duration(200 * time.Millisecond),
			},
		},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path over the built-in
// defaults, applies environment variable overrides, and validates the
// result. A missing file is not an error: defaults plus env overrides are
// returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SOLROUTER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SOLROUTER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("QUEUE_PATH"); v != "" {
		cfg.Storage.QueuePath = v
	}
	if v := os.Getenv("ARCHIVE_DIR"); v != "" {
		cfg.Storage.ArchiveDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("QUEUE_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Queue.Concurrency = n
		}
	}
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}
	if c.Queue.Concurrency < 1 {
		return fmt.Errorf("config: queue concurrency must be >= 1, got %d", c.Queue.Concurrency)
	}
	if c.Queue.MaxAttempts < 1 {
		return fmt.Errorf("config: queue max_attempts must be >= 1, got %d", c.Queue.MaxAttempts)
	}
	if len(c.Venues) == 0 {
		return fmt.Errorf("config: at least one venue is required")
	}
	for _, v := range c.Venues {
		if v.Name == "" {
			return fmt.Errorf("config: venue with empty name")
		}
		if v.Fee < 0 || v.Fee >= 1 {
			return fmt.Errorf("config: venue %s fee %v out of [0,1)", v.Name, v.Fee)
		}
		if v.PriceMin <= 0 || v.PriceMax < v.PriceMin {
			return fmt.Errorf("config: venue %s has invalid price band [%v, %v]", v.Name, v.PriceMin, v.PriceMax)
		}
	}
	if c.Router.SlippageMax < 0 || c.Router.SlippageMax >= 1 {
		return fmt.Errorf("config: slippage_max %v out of [0,1)", c.Router.SlippageMax)
	}
	return nil
}
