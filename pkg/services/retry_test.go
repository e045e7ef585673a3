package services

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	skilltypes "github.com/agentskills/skillkit/pkg/types/skills"
)

var fastRetry = RetryConfig{Attempts: 3, InitialDelay: 1, MaxDelay: 2, BackoffType: "fixed"}

func TestRetry_RetriesRetryableErrors(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry, skilltypes.CapabilityGenerateContent, func() error {
		calls++
		if calls < 3 {
			return skilltypes.NewExternalServiceError(skilltypes.CapabilityGenerateContent, skilltypes.CodeRateLimited, "busy", nil)
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry, skilltypes.CapabilityGenerateContent, func() error {
		calls++
		return skilltypes.NewExternalServiceError(skilltypes.CapabilityGenerateContent, skilltypes.CodeUnauthorized, "bad key", nil)
	})
	assert.Equal(t, 1, calls)

	var svcErr *skilltypes.ExternalServiceError
	assert.True(t, errors.As(err, &svcErr))
	assert.Equal(t, skilltypes.CodeUnauthorized, svcErr.Code)
}

func TestRetry_ReturnsLastErrorWhenExhausted(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry, skilltypes.CapabilityGenerateImage, func() error {
		calls++
		return skilltypes.NewExternalServiceError(skilltypes.CapabilityGenerateImage, skilltypes.CodeUnavailable, "down", nil)
	})
	assert.Equal(t, 3, calls)

	var svcErr *skilltypes.ExternalServiceError
	assert.True(t, errors.As(err, &svcErr))
	assert.Equal(t, skilltypes.CodeUnavailable, svcErr.Code)
}

func TestRetry_SingleAttemptRunsOnce(t *testing.T) {
	calls := 0
	_ = Retry(context.Background(), RetryConfig{Attempts: 0}, skilltypes.CapabilityGenerateImage, func() error {
		calls++
		return skilltypes.NewExternalServiceError(skilltypes.CapabilityGenerateImage, skilltypes.CodeUnavailable, "down", nil)
	})
	assert.Equal(t, 1, calls)
}
