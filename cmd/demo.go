package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/pace/internal/api"
	"github.com/JakeFAU/pace/internal/config"
	"github.com/JakeFAU/pace/internal/demo"
	"github.com/JakeFAU/pace/internal/progress"
	"github.com/JakeFAU/pace/internal/progress/sinks"
)

// metricsRegisterer is where the demo's stage collectors are registered.
var metricsRegisterer prometheus.Registerer = prometheus.DefaultRegisterer

// newDemoCmd creates the 'demo' subcommand, which renders a simulated build to
// stderr and optionally serves its progress over HTTP.
func newDemoCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a simulated build with live progress",
		Long: `Runs a fake build: a compile stage whose units are processed by a
bounded worker pool, followed by a link stage. Progress is drawn to stderr
as an indented tree, throttled to one frame per render interval.

With --metrics the latest frame is also served at /v1/frame and Prometheus
metrics at /metrics.`,
		RunE: runDemoCommand,
	}

	flags := cmd.Flags()
	flags.Int("units", 8, "number of compile units")
	flags.Int("steps", 5, "steps per compile unit")
	flags.Int("workers", 4, "concurrent workers")
	flags.Duration("step-delay", 20*time.Millisecond, "simulated time per step")
	flags.Float64("rate", 0, "global step rate limit in steps per second (0 disables)")
	flags.Duration("interval", 100*time.Millisecond, "minimum time between rendered frames")
	flags.Bool("metrics", false, "serve /metrics and /v1/frame")
	flags.String("metrics-addr", ":9090", "status server listen address")

	bindFlag(v, "demo.units", flags.Lookup("units"))
	bindFlag(v, "demo.steps", flags.Lookup("steps"))
	bindFlag(v, "demo.workers", flags.Lookup("workers"))
	bindFlag(v, "demo.step_delay", flags.Lookup("step-delay"))
	bindFlag(v, "demo.steps_per_second", flags.Lookup("rate"))
	bindFlag(v, "render.interval", flags.Lookup("interval"))
	bindFlag(v, "metrics.enabled", flags.Lookup("metrics"))
	bindFlag(v, "metrics.addr", flags.Lookup("metrics-addr"))

	return cmd
}

func runDemoCommand(cmd *cobra.Command, _ []string) error {
	e, err := resolveEnv(cmd.Context())
	if err != nil {
		return err
	}
	cfg := e.cfg

	frames := progress.NewFrameBuffer()
	sink := progress.NewThrottledSink(progress.Config{
		Interval:   cfg.Render.Interval,
		BufferSize: cfg.Render.BufferSize,
		Logger:     e.logger.Named("progress"),
	}, progress.NewWriterRenderer(cmd.ErrOrStderr()), frames)

	updaters := []progress.Updater{sink, sinks.NewLogSink(e.logger.Named("stages"))}
	if cfg.Metrics.Enabled {
		promSink, err := sinks.NewPrometheusSink(metricsRegisterer)
		if err != nil {
			sink.Close()
			return fmt.Errorf("init prometheus sink: %w", err)
		}
		updaters = append(updaters, promSink)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		server := api.NewServer(frames, e.runID, e.logger.Named("api"))
		g.Go(func() error {
			return server.ListenAndServe(gctx, cfg.Metrics.Addr)
		})
	}

	g.Go(func() error {
		// The server goroutine exits once the build is done and ctx is canceled.
		defer cancel()
		defer sink.Close()
		return demo.Build(gctx, progress.Tee(updaters...), demoConfig(cfg, e.logger))
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) && cmd.Context().Err() != nil {
			e.logger.Warn("demo interrupted")
			return nil
		}
		return fmt.Errorf("run demo: %w", err)
	}
	return nil
}

func demoConfig(cfg config.Config, logger *zap.Logger) demo.Config {
	return demo.Config{
		Units:          cfg.Demo.Units,
		Steps:          cfg.Demo.Steps,
		Workers:        cfg.Demo.Workers,
		StepDelay:      cfg.Demo.StepDelay,
		StepsPerSecond: cfg.Demo.StepsPerSecond,
		Logger:         logger.Named("demo"),
	}
}
