package demo

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/pace/internal/progress"
)

// StepFunc performs one step of a compile unit. It runs after pacing.
type StepFunc func(ctx context.Context, unit string, step int) error

// Config shapes the simulated build.
type Config struct {
	Units          int
	Steps          int
	Workers        int
	StepDelay      time.Duration
	StepsPerSecond float64
	// Step is called for every unit step; nil means the step always succeeds.
	Step   StepFunc
	Logger *zap.Logger
}

// Build reports a simulated build to u. Every stage it opens is ended, even
// when a unit fails or ctx is canceled, so a consumer's tree always unwinds.
func Build(ctx context.Context, u progress.Updater, cfg Config) error {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	p := newPacer(cfg.StepDelay, cfg.StepsPerSecond)
	start := time.Now()

	err := progress.Run(u, 2, "build", func(build *progress.Reporter) error {
		if err := build.Run(cfg.Units, "compile", func(compile *progress.Reporter) error {
			return compileUnits(ctx, compile, p, cfg)
		}); err != nil {
			return fmt.Errorf("compile: %w", err)
		}
		return build.Run(1, "link", func(link *progress.Reporter) error {
			if err := p.wait(ctx); err != nil {
				return fmt.Errorf("link: %w", err)
			}
			link.Increment()
			return nil
		})
	})
	if err != nil {
		logger.Warn("build failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return err
	}
	logger.Info("build finished",
		zap.Int("units", cfg.Units),
		zap.Int("steps", cfg.Steps),
		zap.Int("workers", cfg.Workers),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func compileUnits(ctx context.Context, compile *progress.Reporter, p *pacer, cfg Config) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i := 0; i < cfg.Units; i++ {
		if gctx.Err() != nil {
			break
		}
		name := fmt.Sprintf("unit-%02d", i)
		g.Go(func() error {
			return compile.Run(cfg.Steps, name, func(unit *progress.Reporter) error {
				for step := 0; step < cfg.Steps; step++ {
					if err := p.wait(gctx); err != nil {
						return err
					}
					if cfg.Step != nil {
						if err := cfg.Step(gctx, name, step); err != nil {
							return fmt.Errorf("%s step %d: %w", name, step, err)
						}
					}
					unit.Increment()
				}
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	// errgroup only reports worker errors; a cancellation that stopped the
	// loop before any worker noticed must still fail the build.
	return ctx.Err()
}
