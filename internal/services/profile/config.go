package profile

import (
	"fmt"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// Config holds per-instrument engine tuning. Defaults follow common auction
// market conventions; the HVN expansion ratio and LVN minimum run are
// empirical values that have not been validated out of sample.
type Config struct {
	TickSize float64 `yaml:"tick_size" default:"0.01" validate:"gt=0"`

	ValueAreaTarget float64 `yaml:"value_area_target" default:"0.70" validate:"gt=0,lte=1"`

	HVNRatio          float64 `yaml:"hvn_ratio" default:"0.70" validate:"gte=0"`
	HVNExpansionRatio float64 `yaml:"hvn_expansion_ratio" default:"0.70" validate:"gt=0,lte=1"`
	LVNRatio          float64 `yaml:"lvn_ratio" default:"0.30" validate:"gt=0,lt=1"`
	LVNMinRun         int     `yaml:"lvn_min_run" default:"3" validate:"gte=1"`
	LVNLookback       int     `yaml:"lvn_lookback" default:"5" validate:"gte=1"`

	NakedStrengthThreshold float64       `yaml:"naked_strength_threshold" default:"0.15" validate:"gte=0,lt=1"`
	NakedMaxAge            time.Duration `yaml:"naked_max_age" default:"120h"`
	MagnetDistance         int           `yaml:"magnet_distance" default:"5" validate:"gte=1"`

	SessionStart  string        `yaml:"session_start" default:"00:00"`
	SessionLength time.Duration `yaml:"session_length" default:"24h"`
	Location      string        `yaml:"location" default:"UTC"`
	IBWindow      time.Duration `yaml:"ib_window" default:"60m"`
	LateWindow    time.Duration `yaml:"late_window" default:"60m"`

	TrendThreshold  float64 `yaml:"trend_threshold" default:"0.75" validate:"gt=0"`
	NormalThreshold float64 `yaml:"normal_threshold" default:"1.25" validate:"gtfield=TrendThreshold"`
	MinIBVolume     int64   `yaml:"min_ib_volume" default:"1000" validate:"gte=0"`

	MinTickVolume int64 `yaml:"min_tick_volume" default:"10" validate:"gte=0"`
	DefaultVolume int64 `yaml:"default_volume" default:"1" validate:"gte=0"`

	MinTicks  int `yaml:"min_ticks" default:"50" validate:"gte=1"`
	MinLevels int `yaml:"min_levels" default:"5" validate:"gte=1"`
	MaxLevels int `yaml:"max_levels" default:"100000" validate:"gte=1"`

	EdgeTicks int `yaml:"edge_ticks" default:"2" validate:"gte=0"`
	StopTicks int `yaml:"stop_ticks" default:"8" validate:"gte=1"`

	MaxDailyPositions    int `yaml:"max_daily_positions" default:"3" validate:"gte=0"`
	MaxConsecutiveLosses int `yaml:"max_consecutive_losses" default:"3" validate:"gte=0"`
}

var validate = validator.New()

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	var c Config
	_ = defaults.Set(&c)
	return c
}

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *Config) ApplyDefaults() error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("%w: defaults: %v", ErrConfigurationInvalid, err)
	}
	return nil
}

// Validate checks ranges and parses the session clock and location.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigurationInvalid, err)
	}
	if _, err := c.startOffset(); err != nil {
		return fmt.Errorf("%w: session_start: %v", ErrConfigurationInvalid, err)
	}
	if _, err := time.LoadLocation(c.Location); err != nil {
		return fmt.Errorf("%w: location: %v", ErrConfigurationInvalid, err)
	}
	if c.SessionLength <= 0 || c.SessionLength > 24*time.Hour {
		return fmt.Errorf("%w: session_length must be in (0, 24h]", ErrConfigurationInvalid)
	}
	if c.IBWindow <= 0 || c.IBWindow > c.SessionLength {
		return fmt.Errorf("%w: ib_window must be in (0, session_length]", ErrConfigurationInvalid)
	}
	if c.LateWindow < 0 || c.NakedMaxAge <= 0 {
		return fmt.Errorf("%w: late_window and naked_max_age must be positive", ErrConfigurationInvalid)
	}
	return nil
}

// startOffset parses SessionStart ("HH:MM") into an offset from midnight.
func (c *Config) startOffset() (time.Duration, error) {
	parts := strings.Split(c.SessionStart, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", c.SessionStart)
	}
	t, err := time.Parse("15:04", c.SessionStart)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
