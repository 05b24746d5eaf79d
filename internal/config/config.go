package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL     string `env:"DATABASE_URL,notEmpty"`
	APIAddr         string `env:"API_ADDR" envDefault:":8080"`
	ApifyToken      string `env:"APIFY_TOKEN"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	WorkerID        string `env:"WORKER_ID"`
	PollInterval    int    `env:"POLL_INTERVAL_SEC" envDefault:"10"`
	StaleClaimAfter int    `env:"STALE_CLAIM_AFTER_MIN" envDefault:"30"`
	ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT_SEC" envDefault:"30"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error in production)
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.WorkerID == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "igscout-worker"
		}
		// claimed_by must be unique per process, not per machine; two
		// workers sharing an ID could finalize each other's reclaimed jobs.
		cfg.WorkerID = fmt.Sprintf("%s-%s", host, uuid.New().String()[:8])
	}

	if cfg.ApifyToken == "" {
		fmt.Println("Warning: APIFY_TOKEN not set, scraping will not work")
	}
	if cfg.OpenAIAPIKey == "" {
		fmt.Println("Warning: OPENAI_API_KEY not set, categorization will not work")
	}

	return &cfg, nil
}
