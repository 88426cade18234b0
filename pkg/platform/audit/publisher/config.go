package publisher

import (
	"os"
	"strconv"
	"time"
)

// Config holds the delivery tunables.
type Config struct {
	// Capacity bounds the number of pending entries; oldest are evicted first.
	Capacity int
	// EagerThreshold triggers an immediate flush when the queue reaches it.
	EagerThreshold int
	// FlushInterval is the period of the background flush.
	FlushInterval time.Duration
	// SendTimeout bounds each batch delivery attempt.
	SendTimeout time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:       100,
		EagerThreshold: 10,
		FlushInterval:  30 * time.Second,
		SendTimeout:    10 * time.Second,
	}
}

// ConfigFromEnv overlays AUDIT_QUEUE_CAPACITY, AUDIT_EAGER_THRESHOLD,
// AUDIT_FLUSH_INTERVAL and AUDIT_SEND_TIMEOUT onto the defaults. Unparseable
// or non-positive values are ignored.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if n, ok := positiveInt("AUDIT_QUEUE_CAPACITY"); ok {
		cfg.Capacity = n
	}
	if n, ok := positiveInt("AUDIT_EAGER_THRESHOLD"); ok {
		cfg.EagerThreshold = n
	}
	if d, ok := positiveDuration("AUDIT_FLUSH_INTERVAL"); ok {
		cfg.FlushInterval = d
	}
	if d, ok := positiveDuration("AUDIT_SEND_TIMEOUT"); ok {
		cfg.SendTimeout = d
	}
	return cfg
}

func positiveInt(key string) (int, bool) {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func positiveDuration(key string) (time.Duration, bool) {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}
