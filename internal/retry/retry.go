// Package retry retries outbound HTTP calls with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type Config struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		InitialInterval: 300 * time.Millisecond,
		MaxInterval:     3 * time.Second,
		Multiplier:      2,
	}
}

func normalize(cfg Config) Config {
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 300 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 3 * time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return cfg
}

// StatusError is returned for non-2xx upstream responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Body)
}

// IsRetryable reports whether err is a transient failure: 5xx, 429 or a network error.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}

	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// Do runs fn until it succeeds, fails permanently, or runs out of retries.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	cfg = normalize(cfg)

	backoffCfg := backoff.NewExponentialBackOff()
	backoffCfg.InitialInterval = cfg.InitialInterval
	backoffCfg.MaxInterval = cfg.MaxInterval
	backoffCfg.Multiplier = cfg.Multiplier
	backoffCfg.MaxElapsedTime = 0
	backoffCfg.Reset()

	attempts := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) || attempts >= cfg.MaxRetries {
			return err
		}
		attempts++

		wait := backoffCfg.NextBackOff()
		if wait == backoff.Stop {
			return err
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return ctx.Err()
		case <-timer.C:
		}
	}
}
