package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	Server struct {
		Port   int    `env:"PORT" envDefault:"8080"`
		Origin string `env:"ORIGIN" envDefault:"http://localhost:3000"`
	}

	Redis struct {
		Host     string `env:"REDIS_HOST" envDefault:"localhost"`
		Port     int    `env:"REDIS_PORT" envDefault:"6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Claims struct {
		// How long a winner has to claim before forfeiture.
		ClaimWindow time.Duration `env:"CLAIM_WINDOW" envDefault:"24h"`
		// Entries whose deadline falls within this window get a reminder.
		ReminderWindow time.Duration `env:"REMINDER_WINDOW" envDefault:"6h"`
		// RESERVED stock older than this with no in-flight claim is released
		// back to AVAILABLE by the sweeper.
		ReservationTTL time.Duration `env:"RESERVATION_TTL" envDefault:"48h"`
		// Maximum giveaways processed per sweep run.
		SweepLimit int `env:"SWEEP_LIMIT" envDefault:"25"`
		// Shared secret for the cron and fulfillment endpoints.
		CronSecret string `env:"CRON_SECRET,required"`
		// Optional webhook receiving manual-claim summaries for staff triage.
		ManualClaimWebhookURL string `env:"MANUAL_CLAIM_WEBHOOK_URL" envDefault:""`
		// Steam IDs allowed to drive manual claim statuses.
		StaffSteamIDs []string `env:"STAFF_STEAM_IDS" envSeparator:","`
	}
}

func Load() *Config {
	// Missing .env is fine, production sets variables directly.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		panic(err)
	}

	return cfg
}
