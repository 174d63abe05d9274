package play

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/audiograph/internal/audiocore"
	"github.com/tphakala/audiograph/internal/conf"
	"github.com/tphakala/audiograph/internal/events"
	"github.com/tphakala/audiograph/internal/graphfile"
	"github.com/tphakala/audiograph/internal/logger"
	"github.com/tphakala/audiograph/internal/observability"
)

const eventBusShutdownTimeout = 2 * time.Second

type options struct {
	graph    string
	duration time.Duration
}

// Command creates a command that plays a graph file live
func Command(settings *conf.Settings) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a graph file through an audio device",
		Long:  "Play a graph file live. The engine restarts itself after route and configuration changes until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), settings, opts)
		},
	}

	if err := setupFlags(cmd, settings, &opts); err != nil {
		panic(fmt.Sprintf("error setting up flags: %v", err))
	}

	return cmd
}

// setupFlags configures flags specific to the play command
func setupFlags(cmd *cobra.Command, settings *conf.Settings, opts *options) error {
	cmd.Flags().StringVar(&opts.graph, "graph", "", "Graph file to play")
	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "Stop after this long, 0 plays until interrupted")
	cmd.Flags().StringVar(&settings.Engine.Driver, "driver", viper.GetString("engine.driver"), "Output driver (malgo or null)")
	cmd.Flags().StringVar(&settings.Engine.OutputDevice, "outputdevice", viper.GetString("engine.outputdevice"), "Playback device ID, see the devices command")
	cmd.Flags().StringVar(&settings.Engine.InputDevice, "inputdevice", viper.GetString("engine.inputdevice"), "Capture device ID for input nodes")
	cmd.Flags().BoolVar(&settings.Metrics.Enabled, "metrics", viper.GetBool("metrics.enabled"), "Enable the Prometheus metrics endpoint")
	cmd.Flags().StringVar(&settings.Metrics.Listen, "listen", viper.GetString("metrics.listen"), "Listen address of the metrics endpoint")
	if err := cmd.MarkFlagRequired("graph"); err != nil {
		return err
	}

	for key, flag := range map[string]string{
		"engine.driver":       "driver",
		"engine.outputdevice": "outputdevice",
		"engine.inputdevice":  "inputdevice",
		"metrics.enabled":     "metrics",
		"metrics.listen":      "listen",
	} {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}

func run(ctx context.Context, settings *conf.Settings, opts options) error {
	log := logger.Global().Module("play")

	bus, err := newEventBus(settings, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := bus.Shutdown(eventBusShutdownTimeout); err != nil {
			log.Warn("event bus shutdown", logger.Error(err))
		}
	}()

	var endpoint *observability.Endpoint
	if settings.Metrics.Enabled {
		m, err := observability.NewMetrics()
		if err != nil {
			return err
		}
		audiocore.InitMetrics(m.Engine)
		if endpoint, err = observability.NewEndpoint(&settings.Metrics, m); err != nil {
			return err
		}
	}

	engine, err := newEngine(settings, bus, log)
	if err != nil {
		return err
	}
	defer engine.close()

	def, err := graphfile.Load(opts.graph, engine.session.Graph().Format())
	if err != nil {
		return err
	}
	built, err := def.Build(engine.session)
	if err != nil {
		return err
	}
	if err := engine.startCapture(built.Inputs()); err != nil {
		return err
	}
	if err := engine.session.Start(); err != nil {
		return err
	}

	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return engine.session.Run(ctx) })
	if engine.watcher != nil {
		g.Go(func() error { return engine.watcher.Run(ctx) })
	}
	if endpoint != nil {
		g.Go(func() error { return endpoint.Run(ctx) })
	}
	g.Go(func() error {
		<-ctx.Done()
		return nil
	})

	log.Info("playing",
		logger.String("graph", opts.graph),
		logger.String("driver", engine.driver.Name()),
		logger.Int("nodes", len(built.Names())))

	err = g.Wait()

	stats := engine.session.Recovery().Stats()
	log.Info("playback stopped",
		logger.Uint64("restarts", stats.Restarted),
		logger.Uint64("restart_failures", stats.Failed),
		logger.Uint64("capture_dropped", engine.captureDropped()))
	return err
}

// newEventBus creates the bus carrying engine notifications and error events.
// Notifications are logged; error events go to telemetry when it is enabled.
func newEventBus(settings *conf.Settings, log logger.Logger) (*events.EventBus, error) {
	bus := events.New(&events.Config{
		BufferSize: settings.Events.BufferSize,
		Workers:    settings.Events.Workers,
		Enabled:    true,
		Deduplication: &events.DeduplicationConfig{
			Enabled:         settings.Events.DedupTTL > 0,
			TTL:             settings.Events.DedupTTL,
			CleanupInterval: time.Minute,
		},
	}, log.Module("events"))

	err := bus.RegisterConsumer(events.ConsumerFunc{
		ConsumerName: "engine-log",
		Fn: func(ev events.Event) error {
			if _, isError := events.AsErrorEvent(ev); isError {
				return nil
			}
			log.Info("engine notification",
				logger.String("kind", ev.GetKind()),
				logger.String("message", ev.GetMessage()),
				logger.Any("metadata", ev.GetMetadata()))
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	if settings.Telemetry.Enabled {
		if err := bus.RegisterConsumer(events.TelemetryConsumer{}); err != nil {
			return nil, err
		}
		events.InitializeErrorsIntegration(bus)
	}
	return bus, nil
}
