package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"FinProfile/internal/services/profile"
	"FinProfile/pkg/logger"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. FINPROFILE_KAFKA_BROKERS.
const EnvPrefix = "FINPROFILE"

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		CORS            bool          `yaml:"cors" default:"true"`
		RateLimit       struct {
			RPS   float64 `yaml:"rps" default:"20" validate:"gte=0"`
			Burst int     `yaml:"burst" default:"40" validate:"gte=0"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Logging logger.Config `yaml:"logging"`
	Source  struct {
		Type string `yaml:"type" default:"finnhub" validate:"oneof=finnhub kafka"`
	} `yaml:"source"`
	Pipeline struct {
		BufferSize   int           `yaml:"buffer_size" default:"2000" validate:"gte=1"`
		Workers      int           `yaml:"workers" default:"4" validate:"gte=1"`
		FlushTimeout time.Duration `yaml:"flush_timeout" default:"5s"`
	} `yaml:"pipeline"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		TicksTopic   string   `yaml:"ticks_topic" default:"ticks"`
		SignalsTopic string   `yaml:"signals_topic" default:"profile.signals"`
		LogsTopic    string   `yaml:"logs_topic"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"finprofile"`
			Workers    int           `yaml:"workers" default:"1" validate:"gte=1"`
			BufferSize int           `yaml:"buffer_size" default:"1000"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"finprofile"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
		CandlesTable     string        `yaml:"candles_table" default:"candles_1m"`
		SignalsTable     string        `yaml:"signals_table" default:"profile_signals"`
		ArchiveSignals   bool          `yaml:"archive_signals"`
	} `yaml:"clickhouse"`
	Postgres struct {
		DSN             string        `yaml:"dsn"`
		MaxOpenConns    int           `yaml:"max_open_conns" default:"10"`
		MaxIdleConns    int           `yaml:"max_idle_conns" default:"5"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" default:"30m"`
	} `yaml:"postgres"`
	Redis struct {
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"finprofile"`
	} `yaml:"redis"`
	Finnhub struct {
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url" default:"wss://ws.finnhub.io"`
		Symbols        []string      `yaml:"symbols"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
	} `yaml:"finnhub"`
	Bootstrap struct {
		Source   string        `yaml:"source" default:"none" validate:"oneof=none clickhouse http"`
		URL      string        `yaml:"url"`
		Lookback time.Duration `yaml:"lookback" default:"6h"`
		BarSize  string        `yaml:"bar_size" default:"1m" validate:"oneof=1s 1m 5m"`
		Timeout  time.Duration `yaml:"timeout" default:"10s"`
		Breaker  struct {
			MaxFailures uint32        `yaml:"max_failures" default:"3"`
			OpenTimeout time.Duration `yaml:"open_timeout" default:"30s"`
		} `yaml:"breaker"`
	} `yaml:"bootstrap"`
	Registry struct {
		Store string        `yaml:"store" default:"memory" validate:"oneof=memory redis postgres"`
		TTL   time.Duration `yaml:"ttl" default:"168h"`
	} `yaml:"registry"`
	Profile     profile.Config        `yaml:"profile"`
	Instruments map[string]Instrument `yaml:"instruments"`
}

// Instrument overrides engine settings for a single symbol.
type Instrument struct {
	TickSize    float64 `yaml:"tick_size" validate:"gte=0"`
	VolumeScale float64 `yaml:"volume_scale" validate:"gte=0"`
}

// envOverrides lists the settings that may come from the environment.
// Empty values leave the YAML value in place.
type envOverrides struct {
	Environment    string   `envconfig:"ENVIRONMENT"`
	Source         string   `envconfig:"SOURCE"`
	FinnhubAPIKey  string   `envconfig:"FINNHUB_API_KEY"`
	Symbols        []string `envconfig:"SYMBOLS"`
	KafkaBrokers   []string `envconfig:"KAFKA_BROKERS"`
	TicksTopic     string   `envconfig:"KAFKA_TICKS_TOPIC"`
	SignalsTopic   string   `envconfig:"KAFKA_SIGNALS_TOPIC"`
	PostgresDSN    string   `envconfig:"POSTGRES_DSN"`
	RedisHost      string   `envconfig:"REDIS_HOST"`
	RedisPassword  string   `envconfig:"REDIS_PASSWORD"`
	ClickHouseHost string   `envconfig:"CLICKHOUSE_HOST"`
	LogLevel       string   `envconfig:"LOG_LEVEL"`
	Port           int      `envconfig:"PORT"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML, applies defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads .env (if present), the YAML file, then FINPROFILE_*
// environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	c.applyEnv(env)

	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv(e envOverrides) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Environment, e.Environment)
	set(&c.Source.Type, e.Source)
	set(&c.Finnhub.APIKey, e.FinnhubAPIKey)
	set(&c.Kafka.TicksTopic, e.TicksTopic)
	set(&c.Kafka.SignalsTopic, e.SignalsTopic)
	set(&c.Postgres.DSN, e.PostgresDSN)
	set(&c.Redis.Host, e.RedisHost)
	set(&c.Redis.Password, e.RedisPassword)
	set(&c.ClickHouse.Host, e.ClickHouseHost)
	set(&c.Logging.Level, e.LogLevel)
	if len(e.Symbols) > 0 {
		c.Finnhub.Symbols = e.Symbols
	}
	if len(e.KafkaBrokers) > 0 {
		c.Kafka.Brokers = e.KafkaBrokers
	}
	if e.Port > 0 {
		c.Server.Port = e.Port
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if err := c.Profile.Validate(); err != nil {
		return fmt.Errorf("profile: %w", err)
	}
	switch c.Source.Type {
	case "finnhub":
		if c.Finnhub.APIKey == "" {
			return fmt.Errorf("finnhub.api_key is required")
		}
		if len(c.Finnhub.Symbols) == 0 {
			return fmt.Errorf("finnhub.symbols cannot be empty")
		}
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty")
		}
	}
	if c.Bootstrap.Source == "http" && c.Bootstrap.URL == "" {
		return fmt.Errorf("bootstrap.url is required for http bootstrap")
	}
	if c.Bootstrap.Source == "clickhouse" && !c.ClickHouse.Enabled {
		return fmt.Errorf("clickhouse must be enabled for clickhouse bootstrap")
	}
	if c.ClickHouse.ArchiveSignals && !c.ClickHouse.Enabled {
		return fmt.Errorf("clickhouse must be enabled to archive signals")
	}
	if c.Registry.Store == "postgres" && c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required for the postgres registry")
	}
	return nil
}

// ProfileFor returns the engine config for symbol with instrument overrides.
func (c *Config) ProfileFor(symbol string) profile.Config {
	p := c.Profile
	if inst, ok := c.Instruments[symbol]; ok && inst.TickSize > 0 {
		p.TickSize = inst.TickSize
	}
	return p
}

// VolumeScale returns the multiplier turning fractional trade volume into
// whole engine units for symbol.
func (c *Config) VolumeScale(symbol string) float64 {
	if inst, ok := c.Instruments[symbol]; ok && inst.VolumeScale > 0 {
		return inst.VolumeScale
	}
	return 1
}
