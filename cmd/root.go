package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	configcmd "github.com/tphakala/audiograph/cmd/config"
	"github.com/tphakala/audiograph/cmd/devices"
	"github.com/tphakala/audiograph/cmd/play"
	"github.com/tphakala/audiograph/cmd/render"
	"github.com/tphakala/audiograph/internal/buildinfo"
	"github.com/tphakala/audiograph/internal/conf"
	"github.com/tphakala/audiograph/internal/errors"
	"github.com/tphakala/audiograph/internal/logger"
	"github.com/tphakala/audiograph/internal/privacy"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:          "audiograph",
		Short:        "Audio graph engine CLI",
		Version:      buildinfo.Get().Version,
		SilenceUsage: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings, &configFile); err != nil {
		panic(err)
	}

	configCmd := configcmd.Command(settings)
	rootCmd.AddCommand(
		devices.Command(settings),
		render.Command(settings),
		play.Command(settings),
		configCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Reload so the config file, environment and flags all apply
		loaded, err := conf.Load(configFile)
		if err != nil {
			return err
		}
		*settings = *loaded

		// config only prints settings
		if cmd.Name() == configCmd.Name() {
			return nil
		}
		return initialize(settings)
	}

	return rootCmd
}

// initialize sets up logging and telemetry before a command runs
func initialize(settings *conf.Settings) error {
	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	logger.SetGlobal(central)

	if settings.Telemetry.Enabled {
		errors.SetPrivacyScrubber(privacy.ScrubMessage)
		if err := errors.InitSentry(settings.Telemetry.DSN, buildinfo.Get().Release()); err != nil {
			central.Module("main").Warn("telemetry disabled", logger.Error(err))
		}
	}
	return nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings, configFile *string) error {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(configFile, "config", "", "Path to the config file")
	flags.BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	flags.Float64Var(&settings.Engine.SampleRate, "samplerate", viper.GetFloat64("engine.samplerate"), "Engine sample rate in Hz")
	flags.IntVar(&settings.Engine.Channels, "channels", viper.GetInt("engine.channels"), "Engine output channel count")
	flags.StringVar(&settings.Engine.Backend, "backend", viper.GetString("engine.backend"), "Audio backend (auto, alsa, pulseaudio, jack, wasapi, coreaudio, null)")

	bindings := map[string]string{
		"debug":             "debug",
		"engine.samplerate": "samplerate",
		"engine.channels":   "channels",
		"engine.backend":    "backend",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}

	return nil
}
