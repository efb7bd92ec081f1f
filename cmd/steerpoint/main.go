// Command steerpoint reads a waypoint file and prints a short open route
// through every waypoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/copyleftdev/steerpoint/internal/config"
	"github.com/copyleftdev/steerpoint/internal/logging"
	"github.com/copyleftdev/steerpoint/internal/optimization/genetic"
	"github.com/copyleftdev/steerpoint/internal/planner"
	"github.com/copyleftdev/steerpoint/internal/report"
	"github.com/copyleftdev/steerpoint/internal/waypoint"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "steerpoint: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	in := flag.String("in", cfg.Input.WaypointsFile, "waypoint file (.csv or .xlsx)")
	export := flag.String("export", cfg.Input.MatrixExport, "write the distance matrix to this .csv or .xlsx file")
	strategy := flag.String("strategy", cfg.Optimization.Strategy, "greedy, genetic or both")
	generations := flag.Int("generations", cfg.Genetic.Generations, "genetic generations")
	seed := flag.Int64("seed", cfg.Genetic.Seed, "genetic random seed")
	flag.Parse()

	logger, err := logging.NewLogger(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	zl := logging.NewZapLogger(logger.WithField("service", "steerpoint"))
	defer zl.Sync()

	st, err := planner.ParseStrategy(*strategy)
	if err != nil {
		return err
	}

	waypoints, err := waypoint.Load(*in)
	if err != nil {
		return err
	}
	zl.Info("waypoints loaded", zap.String("file", *in), zap.Int("count", len(waypoints)))

	gc := cfg.GeneticConfig()
	gc.Generations = *generations
	gc.Seed = *seed
	gc.Progress = progressLogger(zl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, err := planner.New(cfg.Optimization.WorkerCount, zl).Plan(ctx, planner.Request{
		Waypoints: waypoints,
		Strategy:  st,
		Genetic:   gc,
	})
	if err != nil {
		return err
	}

	if *export != "" {
		if err := report.WriteMatrixFile(*export, out.Matrix); err != nil {
			return err
		}
		zl.Info("distance matrix exported", zap.String("file", *export))
	}

	if out.Greedy != nil {
		fmt.Println("\nMinimal continuous route (greedy)")
		if err := report.Write(os.Stdout, out.Greedy); err != nil {
			return err
		}
	}
	if out.Genetic != nil {
		fmt.Println("\nGenetic algorithm")
		if err := report.Write(os.Stdout, out.Genetic); err != nil {
			return err
		}
	}
	if out.Greedy != nil && out.Genetic != nil {
		fmt.Printf("\nBest: %s at %.1f miles\n", out.Best.Strategy, out.Best.Cost)
	}
	return nil
}

// progressLogger logs genetic progress at each whole ten percent.
func progressLogger(zl *zap.Logger) func(genetic.GenerationStats) {
	last := -1
	return func(gs genetic.GenerationStats) {
		if gs.Generations == 0 {
			return
		}
		pct := gs.Generation * 100 / gs.Generations
		if pct/10 == last {
			return
		}
		last = pct / 10
		zl.Info("genetic progress",
			zap.Int("percent", pct),
			zap.Float64("best_cost", gs.BestCost),
			zap.Float64("mean_cost", gs.MeanCost),
		)
	}
}
