package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// COURIER_ADDR points the suite at an already-running backend. When
	// empty, the suite starts an in-process server on an in-memory store.
	CourierAddr string `envconfig:"COURIER_ADDR"`
	// E2E_DEBUG logs every frame the suite sends and receives
	Debug          bool          `envconfig:"E2E_DEBUG" default:"false"`
	ReceiveTimeout time.Duration `envconfig:"E2E_RECEIVE_TIMEOUT" default:"5s"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
