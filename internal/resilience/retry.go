package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls retries with exponential backoff and jitter.
type RetryConfig struct {
	// Name identifies the operation in logs.
	Name string
	// Attempts is the total number of tries. 1 means no retry. Default: 3.
	Attempts int
	// Backoff is the delay before the first retry. Default: 1s.
	Backoff time.Duration
	// MaxBackoff caps the delay. Default: 30s.
	MaxBackoff time.Duration
	// Retryable decides whether an error is worth another try. Default:
	// IsTransient.
	Retryable func(error) bool
}

// Retry runs fn until it succeeds, returns a non-retryable error, the
// attempts are used up, or ctx is done. The last error is returned.
func Retry(ctx context.Context, cfg RetryConfig, fn func(context.Context) error) error {
	cfg = cfg.withDefaults()

	var err error
	for attempt := range cfg.Attempts {
		if err = fn(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil || !cfg.Retryable(err) || attempt == cfg.Attempts-1 {
			return err
		}

		zap.L().Warn("retrying",
			zap.String("operation", cfg.Name),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)

		timer := time.NewTimer(backoff(attempt, cfg))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}

func (cfg RetryConfig) withDefaults() RetryConfig {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.Retryable == nil {
		cfg.Retryable = IsTransient
	}
	return cfg
}

// backoff doubles per attempt with ±25% jitter.
func backoff(attempt int, cfg RetryConfig) time.Duration {
	d := float64(cfg.Backoff) * math.Pow(2, float64(attempt))
	d = math.Min(d, float64(cfg.MaxBackoff))
	d += (rand.Float64()*2 - 1) * d * 0.25
	return time.Duration(max(d, 0))
}
