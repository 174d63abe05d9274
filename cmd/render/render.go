package render

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/audiograph/internal/audiocore"
	"github.com/tphakala/audiograph/internal/audiocore/drivers/null"
	"github.com/tphakala/audiograph/internal/audiocore/export"
	"github.com/tphakala/audiograph/internal/conf"
	"github.com/tphakala/audiograph/internal/graphfile"
	"github.com/tphakala/audiograph/internal/logger"
)

type options struct {
	graph    string
	output   string
	duration float64
}

// Command creates a command that renders a graph file offline to WAV
func Command(settings *conf.Settings) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a graph file to a WAV file",
		Long:  "Render a graph file offline, faster than real time, and write the main mixer output to a WAV file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, settings, opts)
		},
	}

	if err := setupFlags(cmd, settings, &opts); err != nil {
		panic(fmt.Sprintf("error setting up flags: %v", err))
	}

	return cmd
}

// setupFlags configures flags specific to the render command
func setupFlags(cmd *cobra.Command, settings *conf.Settings, opts *options) error {
	cmd.Flags().StringVar(&opts.graph, "graph", "", "Graph file to render")
	cmd.Flags().StringVar(&opts.output, "out", "out.wav", "Output WAV file")
	cmd.Flags().Float64Var(&opts.duration, "duration", 5, "Duration to render in seconds")
	cmd.Flags().IntVar(&settings.Render.BitDepth, "bitdepth", viper.GetInt("render.bitdepth"), "Output bit depth (16, 24 or 32)")
	cmd.Flags().IntVar(&settings.Render.MaxFrames, "maxframes", viper.GetInt("render.maxframes"), "Frames rendered per call")
	if err := cmd.MarkFlagRequired("graph"); err != nil {
		return err
	}

	for key, flag := range map[string]string{
		"render.bitdepth":  "bitdepth",
		"render.maxframes": "maxframes",
	} {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}

func run(cmd *cobra.Command, settings *conf.Settings, opts options) error {
	log := logger.Global().Module("render")

	config := audiocore.SessionConfigFromSettings(settings)
	// Offline rendering never starts a device
	config.Recovery.Enabled = false

	session, err := audiocore.NewSession(config, null.New(null.Config{}, log), audiocore.WithLogger(log))
	if err != nil {
		return err
	}
	defer session.Close()

	def, err := graphfile.Load(opts.graph, config.Format)
	if err != nil {
		return err
	}
	if _, err := def.Build(session); err != nil {
		return err
	}

	sink, err := export.NewWAVSink(opts.output, config.Format, settings.Render.BitDepth)
	if err != nil {
		return err
	}

	start := time.Now()
	result, err := session.RenderToFile(cmd.Context(), sink, opts.duration, audiocore.OfflineOptions{})
	if closeErr := sink.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	elapsed := time.Since(start)
	log.Info("render finished",
		logger.String("output", opts.output),
		logger.Int64("frames", result.FramesRendered),
		logger.Int("buffers", result.Buffers),
		logger.Int("stalls", result.Stalls),
		logger.Duration("elapsed", elapsed))

	fmt.Fprintf(cmd.OutOrStdout(), "Rendered %.2fs (%d frames) to %s in %s\n",
		float64(result.FramesRendered)/config.Format.SampleRate, result.FramesRendered, opts.output, elapsed.Round(time.Millisecond))
	return nil
}
