package main

import "time"

type Config struct {
	Host     string `env:"HOST,default=localhost"`
	Port     int    `env:"PORT,default=5000"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=168h"`

	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	StoreTimeout         time.Duration `env:"STORE_TIMEOUT,default=5s"`
	StoreOpenAttempts    int           `env:"STORE_OPEN_ATTEMPTS,default=5"`
	StoreOpenBackoff     time.Duration `env:"STORE_OPEN_BACKOFF,default=2s"`
	StorageGCInterval    time.Duration `env:"STORAGE_GC_INTERVAL,default=10m"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=30s"`
	MaxContentLength     int           `env:"MAX_CONTENT_LENGTH,default=4096"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	DeliveryTimeout      time.Duration `env:"DELIVERY_TIMEOUT,default=3s"`

	// Comma-separated list; empty allows every origin.
	AllowedOrigins string `env:"ALLOWED_ORIGINS"`
}
