// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/audiograph/internal/logger"
)

// Sets default values for the configuration.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("engine.samplerate", 48000.0)
	v.SetDefault("engine.channels", 2)
	v.SetDefault("engine.bufferframes", 512)
	v.SetDefault("engine.driver", DriverMalgo)
	v.SetDefault("engine.backend", "auto")
	v.SetDefault("engine.outputdevice", "")
	v.SetDefault("engine.inputdevice", "")
	v.SetDefault("engine.category", CategoryPlayback)

	v.SetDefault("render.maxframes", 4096)
	v.SetDefault("render.maxstalls", 100)
	v.SetDefault("render.retrybackoff", 5*time.Millisecond)
	v.SetDefault("render.bitdepth", 16)

	v.SetDefault("recovery.enabled", true)
	v.SetDefault("recovery.notifications", true)
	v.SetDefault("recovery.backgroundaudio", false)
	v.SetDefault("recovery.minrestartinterval", 1*time.Second)
	v.SetDefault("recovery.routepollinterval", 2*time.Second)
	v.SetDefault("recovery.inboxsize", 16)

	v.SetDefault("devices.cachettl", 30*time.Second)

	v.SetDefault("logging.defaultlevel", logger.DefaultLogLevel)
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", logger.DefaultLogLevel)
	v.SetDefault("logging.fileoutput.enabled", false)
	v.SetDefault("logging.fileoutput.path", logger.DefaultLogPath)
	v.SetDefault("logging.fileoutput.maxsize", logger.DefaultMaxSize)
	v.SetDefault("logging.fileoutput.maxage", logger.DefaultMaxAge)
	v.SetDefault("logging.fileoutput.maxbackups", logger.DefaultMaxBackups)
	v.SetDefault("logging.fileoutput.compress", true)
	v.SetDefault("logging.fileoutput.level", logger.DefaultLogLevel)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.dsn", "")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", "127.0.0.1:9090")

	v.SetDefault("events.buffersize", 1000)
	v.SetDefault("events.workers", 2)
	v.SetDefault("events.dedupttl", 5*time.Minute)
}
