package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// MUSHI_SERVER_HTTP_ADDRESS.
const EnvPrefix = "MUSHI"

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Match    MatchConfig    `mapstructure:"match"`
	Replay   ReplayConfig   `mapstructure:"replay"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	GRPC      GRPCConfig      `mapstructure:"grpc"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
}

type HTTPConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type GRPCConfig struct {
	Enabled              bool   `mapstructure:"enabled"`
	Address              string `mapstructure:"address"`
	MaxConcurrentStreams int    `mapstructure:"max_concurrent_streams"`
}

type WebSocketConfig struct {
	ReadBufferSize  int           `mapstructure:"read_buffer"`
	WriteBufferSize int           `mapstructure:"write_buffer"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	MaxMessageSize  int64         `mapstructure:"max_message_size"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverNone     = "none"
)

type DatabaseConfig struct {
	Driver     string        `mapstructure:"driver"`
	URL        string        `mapstructure:"url"`
	MaxConns   int32         `mapstructure:"max_conns"`
	MinConns   int32         `mapstructure:"min_conns"`
	ConnectTTL time.Duration `mapstructure:"connect_timeout"`
	SQLitePath string        `mapstructure:"sqlite_path"`
}

// Catalog sources.
const (
	CatalogEmbedded = "embedded"
	CatalogFile     = "file"
	CatalogPostgres = "postgres"
)

type CatalogConfig struct {
	Source string `mapstructure:"source"`
	Path   string `mapstructure:"path"`
}

type MatchConfig struct {
	EndDelay           time.Duration `mapstructure:"end_delay"`
	RedactHiddenZones  bool          `mapstructure:"redact_hidden_zones"`
	RandomDeckAttempts int           `mapstructure:"random_deck_attempts"`
	Seed               uint64        `mapstructure:"seed"`
}

type ReplayConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
}

type AuthConfig struct {
	// AdminPasswordHash is a bcrypt hash; empty disables admin endpoints.
	AdminPasswordHash string `mapstructure:"admin_password_hash"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http.address", ":3001")
	v.SetDefault("server.http.read_timeout", 15*time.Second)
	v.SetDefault("server.http.write_timeout", 15*time.Second)
	v.SetDefault("server.http.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.grpc.enabled", true)
	v.SetDefault("server.grpc.address", ":50051")
	v.SetDefault("server.grpc.max_concurrent_streams", 1000)
	v.SetDefault("server.websocket.read_buffer", 1024)
	v.SetDefault("server.websocket.write_buffer", 1024)
	v.SetDefault("server.websocket.allowed_origins", []string{"*"})
	v.SetDefault("server.websocket.ping_interval", 30*time.Second)
	v.SetDefault("server.websocket.max_message_size", 64*1024)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.connect_timeout", 10*time.Second)
	v.SetDefault("database.sqlite_path", "data/mushi.db")

	v.SetDefault("catalog.source", CatalogEmbedded)
	v.SetDefault("catalog.path", "")

	v.SetDefault("match.end_delay", 5*time.Second)
	v.SetDefault("match.redact_hidden_zones", false)
	v.SetDefault("match.random_deck_attempts", 10)
	v.SetDefault("match.seed", 0)

	v.SetDefault("replay.enabled", false)
	v.SetDefault("replay.directory", "data/replays")

	// Keys without a default are invisible to environment overrides.
	v.SetDefault("auth.admin_password_hash", "")
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	// Defaults always decode.
	_ = v.Unmarshal(cfg)
	return cfg
}

// Load reads path (YAML), overlays MUSHI_* environment variables and
// validates the result. A missing file is not an error; a .env file in the
// working directory is loaded first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects inconsistent settings.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.HTTP.Address == "" {
		errs = append(errs, errors.New("server.http.address is required"))
	}
	if c.Server.GRPC.Enabled && c.Server.GRPC.Address == "" {
		errs = append(errs, errors.New("server.grpc.address is required when grpc is enabled"))
	}
	if c.Server.GRPC.MaxConcurrentStreams < 0 {
		errs = append(errs, errors.New("server.grpc.max_concurrent_streams must not be negative"))
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url is required for the postgres driver"))
		}
		if c.Database.MinConns > c.Database.MaxConns {
			errs = append(errs, errors.New("database.min_conns exceeds database.max_conns"))
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			errs = append(errs, errors.New("database.sqlite_path is required for the sqlite driver"))
		}
	case DriverNone:
	default:
		errs = append(errs, fmt.Errorf("unknown database.driver %q", c.Database.Driver))
	}

	switch c.Catalog.Source {
	case CatalogEmbedded:
	case CatalogFile:
		if c.Catalog.Path == "" {
			errs = append(errs, errors.New("catalog.path is required for the file source"))
		}
	case CatalogPostgres:
		if c.Database.Driver != DriverPostgres {
			errs = append(errs, errors.New("catalog.source postgres needs database.driver postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown catalog.source %q", c.Catalog.Source))
	}

	if c.Match.EndDelay < 0 {
		errs = append(errs, errors.New("match.end_delay must not be negative"))
	}
	if c.Match.RandomDeckAttempts < 1 {
		errs = append(errs, errors.New("match.random_deck_attempts must be at least 1"))
	}
	if c.Replay.Enabled && c.Replay.Directory == "" {
		errs = append(errs, errors.New("replay.directory is required when replays are enabled"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
