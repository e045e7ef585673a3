package services

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"

	"github.com/agentskills/skillkit/pkg/logger"
	skilltypes "github.com/agentskills/skillkit/pkg/types/skills"
)

// RetryConfig controls how service clients retry retryable failures. Delays are
// in milliseconds.
type RetryConfig struct {
	Attempts     int    `mapstructure:"attempts" json:"attempts"`
	InitialDelay int    `mapstructure:"initial_delay" json:"initial_delay"`
	MaxDelay     int    `mapstructure:"max_delay" json:"max_delay"`
	BackoffType  string `mapstructure:"backoff_type" json:"backoff_type"`
}

// DefaultRetryConfig retries three times with exponential backoff.
var DefaultRetryConfig = RetryConfig{
	Attempts:     3,
	InitialDelay: 1000,
	MaxDelay:     10000,
	BackoffType:  "exponential",
}

// Retry runs operation, retrying while it fails with a retryable
// *ExternalServiceError. The last error is returned unwrapped so its
// classification survives.
func Retry(ctx context.Context, cfg RetryConfig, capability skilltypes.Capability, operation func() error) error {
	if cfg.Attempts <= 1 {
		return operation()
	}

	var delayType retry.DelayTypeFunc
	switch cfg.BackoffType {
	case "fixed":
		delayType = retry.FixedDelay
	default:
		delayType = retry.BackOffDelay
	}

	err := retry.Do(
		operation,
		retry.RetryIf(skilltypes.IsRetryable),
		retry.Attempts(uint(cfg.Attempts)),
		retry.Delay(time.Duration(cfg.InitialDelay)*time.Millisecond),
		retry.DelayType(delayType),
		retry.MaxDelay(time.Duration(cfg.MaxDelay)*time.Millisecond),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).
				WithError(err).
				WithField("capability", capability).
				WithField("attempt", n+1).
				WithField("max_attempts", cfg.Attempts).
				Warn("retrying service call")
		}),
	)
	if err == nil {
		return nil
	}
	if ctxErr := skilltypes.FromContextError(capability, err); ctxErr != nil {
		return ctxErr
	}
	var svcErr *skilltypes.ExternalServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return err
}
