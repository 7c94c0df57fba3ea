// Package config loads the service configuration from configs/config.yml,
// with THERMOSTAT_* environment variables overriding file values.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"thermostat_control/internal/engine"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. THERMOSTAT_MQTT_BROKER.
const EnvPrefix = "THERMOSTAT"

var (
	ErrNoThermostats   = errors.New("no thermostats configured")
	ErrDuplicateID     = errors.New("duplicate thermostat id")
	ErrMissingTopicIDs = errors.New("thermostat needs device_id and sensor_id when mqtt is enabled")
)

type Config struct {
	Port        string             `mapstructure:"port"`
	LogLevel    string             `mapstructure:"log_level"`
	LogFormat   string             `mapstructure:"log_format"`
	DB          DBConfig           `mapstructure:"db"`
	Auth        AuthConfig         `mapstructure:"auth"`
	MQTT        MQTTConfig         `mapstructure:"mqtt"`
	Engine      EngineConfig       `mapstructure:"engine"`
	Thermostats []ThermostatConfig `mapstructure:"thermostats"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

type MQTTConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Broker     string `mapstructure:"broker"`
	ClientID   string `mapstructure:"client_id"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	QoS        byte   `mapstructure:"qos"`
	LocationID string `mapstructure:"location_id"`
}

type EngineConfig struct {
	Tick           time.Duration `mapstructure:"tick"`
	MaxSampleAge   time.Duration `mapstructure:"max_sample_age"`
	HysteresisHigh float64       `mapstructure:"hysteresis_high"`
	HysteresisLow  float64       `mapstructure:"hysteresis_low"`
	MaxHeating     time.Duration `mapstructure:"max_heating"`
	TimeZone       string        `mapstructure:"time_zone"`
	PWM            PWMConfig     `mapstructure:"pwm"`
}

type PWMConfig struct {
	Gain  float64       `mapstructure:"gain"`
	MinOn time.Duration `mapstructure:"min_on"`
	MaxOn time.Duration `mapstructure:"max_on"`
	Cycle time.Duration `mapstructure:"cycle"`
}

// ThermostatConfig declares one controlled device. DeviceID and SensorID
// build its broker topic base.
type ThermostatConfig struct {
	ID       string  `mapstructure:"id"`
	DeviceID string  `mapstructure:"device_id"`
	SensorID string  `mapstructure:"sensor_id"`
	Setpoint float64 `mapstructure:"setpoint"`
	// Enabled is the initial flag used when no stored state exists.
	Enabled bool `mapstructure:"enabled"`
}

func setDefaults(v *viper.Viper) {
	ds := engine.DefaultSettings()
	dt := engine.DefaultTuning()

	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("db.path", "app.db")
	v.SetDefault("auth.token_ttl", 12*time.Hour)
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "thermostat-control")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.location_id", "home")
	v.SetDefault("engine.tick", time.Second)
	v.SetDefault("engine.max_sample_age", engine.DefaultMaxSampleAge)
	v.SetDefault("engine.hysteresis_high", ds.HysteresisHigh)
	v.SetDefault("engine.hysteresis_low", ds.HysteresisLow)
	v.SetDefault("engine.max_heating", ds.MaxHeating)
	v.SetDefault("engine.time_zone", "UTC")
	v.SetDefault("engine.pwm.gain", dt.Gain)
	v.SetDefault("engine.pwm.min_on", dt.MinOn)
	v.SetDefault("engine.pwm.max_on", dt.MaxOn)
	v.SetDefault("engine.pwm.cycle", dt.Cycle)
}

// Load reads config.yml from the given search paths (configs/ when none is given).
// A missing file is not an error: defaults and environment still apply.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if len(paths) == 0 {
		paths = []string{"configs"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the parts of the config the engine cannot default on its own.
func (c *Config) Validate() error {
	if len(c.Thermostats) == 0 {
		return ErrNoThermostats
	}
	seen := make(map[string]struct{}, len(c.Thermostats))
	for i, t := range c.Thermostats {
		if strings.TrimSpace(t.ID) == "" {
			return fmt.Errorf("thermostats[%d]: id is empty", i)
		}
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateID, t.ID)
		}
		seen[t.ID] = struct{}{}
		if c.MQTT.Enabled && (t.DeviceID == "" || t.SensorID == "") {
			return fmt.Errorf("thermostats[%d] %q: %w", i, t.ID, ErrMissingTopicIDs)
		}
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	if c.Engine.Tick <= 0 {
		return fmt.Errorf("engine.tick must be > 0, got %s", c.Engine.Tick)
	}
	if err := c.Tuning().Validate(); err != nil {
		return fmt.Errorf("engine.pwm: %w", err)
	}
	if _, err := c.Settings(); err != nil {
		return err
	}
	return nil
}

// Tuning returns the PWM constants.
func (c *Config) Tuning() engine.Tuning {
	return engine.Tuning{
		Gain:  c.Engine.PWM.Gain,
		MinOn: c.Engine.PWM.MinOn,
		MaxOn: c.Engine.PWM.MaxOn,
		Cycle: c.Engine.PWM.Cycle,
	}
}

// Settings returns the initial control settings every thermostat starts from.
func (c *Config) Settings() (engine.ControlSettings, error) {
	cs := engine.DefaultSettings()
	cs.HysteresisHigh = c.Engine.HysteresisHigh
	cs.HysteresisLow = c.Engine.HysteresisLow
	cs.MaxHeating = c.Engine.MaxHeating
	if cs.MaxHeating <= 0 {
		return cs, fmt.Errorf("engine.max_heating must be > 0, got %v", cs.MaxHeating)
	}
	if cs.HysteresisHigh > 0 || cs.HysteresisLow > 0 {
		return cs, fmt.Errorf("engine hysteresis bounds must be <= 0, got low=%v high=%v", cs.HysteresisLow, cs.HysteresisHigh)
	}
	if cs.HysteresisLow > cs.HysteresisHigh {
		return cs, fmt.Errorf("engine.hysteresis_low %v exceeds engine.hysteresis_high %v", cs.HysteresisLow, cs.HysteresisHigh)
	}
	if tz := c.Engine.TimeZone; tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return cs, fmt.Errorf("engine.time_zone: %w", err)
		}
		cs.Location = loc
	}
	return cs, nil
}
