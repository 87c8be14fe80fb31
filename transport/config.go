package transport

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config collects the tunable parameters of an LFTP session. Every field
// can be overridden from the environment via LoadConfig, the same
// env-driven knob style the rest of the corpus exposes for its own ambient
// settings.
type Config struct {
	// MSS is the maximum payload size of a data segment, in bytes.
	MSS int `env:"LFTP_MSS, default=1024"`

	// BufferCapacity is the total byte capacity of the send buffer and of
	// the receiver's reorder buffer; both are expressed as a number of
	// MSS-sized slots.
	BufferCapacity int `env:"LFTP_BUFFER_CAPACITY, default=65536"`

	// InitialRTO is the retransmission timeout before any RTT sample has
	// been taken.
	InitialRTO time.Duration `env:"LFTP_INITIAL_RTO, default=1s"`

	// TimeoutPollInterval is how often the timeout watcher activity
	// checks the elapsed time against the current timeout interval.
	TimeoutPollInterval time.Duration `env:"LFTP_TIMEOUT_POLL_INTERVAL, default=50ms"`

	// WatchdogTimeouts is the number of consecutive timeout events with
	// no advance of send_base after which the session gives up with
	// TransferFailed.
	WatchdogTimeouts int `env:"LFTP_WATCHDOG_TIMEOUTS, default=12"`

	// ProgressGranularityPercent is the granularity, in percentage
	// points, at which the sender reports progress.
	ProgressGranularityPercent int `env:"LFTP_PROGRESS_GRANULARITY_PERCENT, default=5"`
}

// BufferSegments returns the send/reorder buffer capacity expressed as a
// number of MSS-sized slots: floor(BufferCapacity / MSS).
func (c Config) BufferSegments() int {
	return c.BufferCapacity / c.MSS
}

// DefaultConfig returns the built-in defaults without consulting the
// environment.
func DefaultConfig() Config {
	return Config{
		MSS:                        1024,
		BufferCapacity:             65536,
		InitialRTO:                 time.Second,
		TimeoutPollInterval:        50 * time.Millisecond,
		WatchdogTimeouts:           12,
		ProgressGranularityPercent: 5,
	}
}

// LoadConfig reads a Config from the environment, falling back to the
// built-in defaults for anything unset.
func LoadConfig(ctx context.Context) (Config, error) {
	cfg := DefaultConfig()
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
