package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/copyleftdev/steerpoint/internal/optimization/genetic"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Optimization struct {
		WorkerCount int           `env:"OPT_WORKER_COUNT" envDefault:"4"`
		Strategy    string        `env:"OPT_STRATEGY" envDefault:"both"`
		JobTimeout  time.Duration `env:"OPT_JOB_TIMEOUT" envDefault:"5m"`
		MaxJobs     int           `env:"OPT_MAX_JOBS" envDefault:"1000"`
	}
	Genetic struct {
		PopulationSize int     `env:"GA_POPULATION_SIZE" envDefault:"100"`
		EliteSize      int     `env:"GA_ELITE_SIZE" envDefault:"20"`
		MutationRate   float64 `env:"GA_MUTATION_RATE" envDefault:"0.01"`
		Generations    int     `env:"GA_GENERATIONS" envDefault:"500"`
		Seed           int64   `env:"GA_SEED" envDefault:"0"`
	}
	Input struct {
		WaypointsFile string `env:"WAYPOINTS_FILE" envDefault:"waypoints.csv"`
		MatrixExport  string `env:"MATRIX_EXPORT"`
	}
}

// Load reads an optional .env file from the working directory and then
// parses the environment. Variables already set win over the file.
func Load() (*Config, error) {
	return LoadFiles(".env")
}

// LoadFiles is Load with explicit dotenv paths. Missing files are skipped.
func LoadFiles(files ...string) (*Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if cfg.Environment == "development" && cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}

	return cfg, nil
}

// GeneticConfig maps the GA_* settings onto the optimizer's configuration.
func (c *Config) GeneticConfig() genetic.Config {
	return genetic.Config{
		PopulationSize: c.Genetic.PopulationSize,
		EliteSize:      c.Genetic.EliteSize,
		MutationRate:   c.Genetic.MutationRate,
		Generations:    c.Genetic.Generations,
		Seed:           c.Genetic.Seed,
		Workers:        c.Optimization.WorkerCount,
	}
}
