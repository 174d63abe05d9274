// Package conf loads audiograph settings from YAML files, environment
// variables and command-line flags through viper.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/audiograph/internal/logger"
)

// EnvPrefix prefixes environment overrides, e.g. AUDIOGRAPH_ENGINE_SAMPLERATE
const EnvPrefix = "AUDIOGRAPH"

// EngineSettings configures the live transport
type EngineSettings struct {
	SampleRate   float64 `yaml:"samplerate"`   // Hz
	Channels     int     `yaml:"channels"`     // output channel count
	BufferFrames int     `yaml:"bufferframes"` // frames per hardware period
	Driver       string  `yaml:"driver"`       // "malgo" or "null"
	Backend      string  `yaml:"backend"`      // malgo backend: "auto", "alsa", "wasapi", "coreaudio"
	OutputDevice string  `yaml:"outputdevice"` // device ID, empty for system default
	InputDevice  string  `yaml:"inputdevice"`  // device ID, empty for system default
	Category     string  `yaml:"category"`     // "playback", "record" or "playandrecord"
}

// RenderSettings configures the offline renderer
type RenderSettings struct {
	MaxFrames    int           `yaml:"maxframes"`    // frames per offline render call
	MaxStalls    int           `yaml:"maxstalls"`    // consecutive non-progress renders before giving up
	RetryBackoff time.Duration `yaml:"retrybackoff"` // wait after CannotRender
	BitDepth     int           `yaml:"bitdepth"`     // WAV output bit depth
}

// RecoverySettings configures automatic engine restarts
type RecoverySettings struct {
	Enabled            bool          `yaml:"enabled"`
	Notifications      bool          `yaml:"notifications"`   // publish restart notifications
	BackgroundAudio    bool          `yaml:"backgroundaudio"` // allow restarts while in background
	MinRestartInterval time.Duration `yaml:"minrestartinterval"`
	RoutePollInterval  time.Duration `yaml:"routepollinterval"` // 0 disables the route watcher
	InboxSize          int           `yaml:"inboxsize"`
}

// DeviceSettings configures device enumeration
type DeviceSettings struct {
	CacheTTL time.Duration `yaml:"cachettl"`
}

// TelemetrySettings configures Sentry error reporting
type TelemetrySettings struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

// MetricsSettings configures the Prometheus endpoint
type MetricsSettings struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"` // host:port
}

// EventSettings configures the event bus
type EventSettings struct {
	BufferSize int           `yaml:"buffersize"`
	Workers    int           `yaml:"workers"`
	DedupTTL   time.Duration `yaml:"dedupttl"` // 0 disables error deduplication
}

// Settings contains all configuration options
type Settings struct {
	Debug bool `yaml:"debug"`

	Engine    EngineSettings       `yaml:"engine"`
	Render    RenderSettings       `yaml:"render"`
	Recovery  RecoverySettings     `yaml:"recovery"`
	Devices   DeviceSettings       `yaml:"devices"`
	Logging   logger.LoggingConfig `yaml:"logging"`
	Telemetry TelemetrySettings    `yaml:"telemetry"`
	Metrics   MetricsSettings      `yaml:"metrics"`
	Events    EventSettings        `yaml:"events"`
}

// Load reads the configuration into Settings using the global viper instance,
// which also carries CLI flag bindings. An empty configFile searches the
// default config paths; a missing file leaves the defaults in place.
func Load(configFile string) (*Settings, error) {
	return LoadWith(viper.GetViper(), configFile)
}

// LoadWith reads configuration through the given viper instance
func LoadWith(v *viper.Viper, configFile string) (*Settings, error) {
	if err := initViper(v, configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	return settings, nil
}

// initViper applies defaults, environment overrides and the config file
func initViper(v *viper.Viper, configFile string) error {
	setDefaultConfig(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, path := range GetDefaultConfigPaths() {
		v.AddConfigPath(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPaths returns the directories searched for config.yaml, in order
func GetDefaultConfigPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "audiograph"))
	}

	return append(paths, "/etc/audiograph")
}
