package config

import "github.com/caarlos0/env/v11"

// Config is parsed from the environment; main loads .env first.
type Config struct {
	Addr        string `env:"ADDR" envDefault:":8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`

	SnapshotTTLSeconds   int `env:"SNAPSHOT_TTL_SECONDS" envDefault:"2"`
	SweepIntervalSeconds int `env:"SWEEP_INTERVAL_SECONDS" envDefault:"2"`
	ResultsSeconds       int `env:"RESULTS_SECONDS" envDefault:"15"`

	// How many rounds an elected leader serves before a re-election.
	LeaderTermRounds int `env:"LEADER_TERM_ROUNDS" envDefault:"1"`

	Debug bool `env:"DEBUG" envDefault:"false"`
}

func Load() (Config, error) {
	var c Config
	err := env.Parse(&c)
	return c, err
}
