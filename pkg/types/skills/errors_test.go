package skills

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError("transcribe_audio",
		FieldError{Field: "agent_id", Rule: "required", Message: "is required"},
		FieldError{Field: "source_type", Rule: "oneof", Message: "must be one of url object_storage mcp_resource"},
	)

	assert.Equal(t, "invalid transcribe_audio input: agent_id: is required; source_type: must be one of url object_storage mcp_resource", err.Error())
	assert.True(t, err.HasField("agent_id"))
	assert.False(t, err.HasField("task_id"))

	wrapped := errors.Wrap(err, "parse")
	assert.True(t, IsValidation(wrapped))
	assert.Equal(t, KindValidation, KindOf(wrapped))
}

func TestValidationError_NoFields(t *testing.T) {
	assert.Equal(t, "invalid render_video input", NewValidationError("render_video").Error())
}

func TestParameterError(t *testing.T) {
	err := &ParameterError{Param: "platform", Value: "invalid_platform", Allowed: []string{"twitter", "instagram", "tiktok"}}
	assert.Contains(t, err.Error(), "platform")
	assert.True(t, IsParameter(err))
	assert.False(t, IsValidation(err))
	assert.Equal(t, KindParameter, KindOf(err))
}

func TestExternalServiceError_Retryability(t *testing.T) {
	tests := []struct {
		code      ErrorCode
		retryable bool
	}{
		{CodeTimeout, true},
		{CodeRateLimited, true},
		{CodeUnavailable, true},
		{CodeUnauthorized, false},
		{CodeInvalidRequest, false},
		{CodeNotFound, false},
		{CodeMalformedResponse, false},
		{CodeProviderError, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := NewExternalServiceError(CapabilityRenderVideo, tt.code, "boom", nil)
			assert.Equal(t, tt.retryable, err.Retryable)
			assert.Equal(t, tt.retryable, IsRetryable(errors.Wrap(err, "dispatch")))
		})
	}
}

func TestExternalServiceError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewExternalServiceError(CapabilityGenerateImage, CodeUnavailable, "provider unreachable", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "generate_image failed (unavailable): provider unreachable: connection reset", err.Error())
}

func TestFromJobError(t *testing.T) {
	t.Run("known code", func(t *testing.T) {
		err := FromJobError(CapabilityTranscribeAudio, &JobError{Code: "rate_limited", Message: "slow down"})
		assert.Equal(t, CodeRateLimited, err.Code)
		assert.True(t, err.Retryable)
	})

	t.Run("unknown code becomes provider error", func(t *testing.T) {
		err := FromJobError(CapabilityTranscribeAudio, &JobError{Code: "E_CODEC", Message: "bad codec"})
		assert.Equal(t, CodeProviderError, err.Code)
		assert.False(t, err.Retryable)
	})

	t.Run("provider marks retryable", func(t *testing.T) {
		err := FromJobError(CapabilityTranscribeAudio, &JobError{Code: "E_BUSY", Retryable: true})
		assert.True(t, err.Retryable)
	})

	t.Run("nil job error", func(t *testing.T) {
		err := FromJobError(CapabilityTranscribeAudio, nil)
		assert.Equal(t, CodeProviderError, err.Code)
	})
}

func TestFromContextError(t *testing.T) {
	timeout := FromContextError(CapabilityDetectTrends, errors.Wrap(context.DeadlineExceeded, "call"))
	require.NotNil(t, timeout)
	assert.Equal(t, CodeTimeout, timeout.Code)
	assert.True(t, timeout.Retryable)

	cancelled := FromContextError(CapabilityDetectTrends, context.Canceled)
	require.NotNil(t, cancelled)
	assert.False(t, cancelled.Retryable)

	assert.Nil(t, FromContextError(CapabilityDetectTrends, errors.New("other")))
}

func TestPersistenceError(t *testing.T) {
	cause := errors.New("disk full")
	err := &PersistenceError{Op: "put", TaskID: "task-1", Err: cause}

	assert.True(t, IsPersistence(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindPersistence, KindOf(err))
	assert.Equal(t, KindUnknown, KindOf(cause))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestIdentityCheck(t *testing.T) {
	assert.NoError(t, Identity{AgentID: "a", TaskID: "t"}.Check())
	assert.EqualError(t, Identity{TaskID: "t"}.Check(), "agent_id is required")
	assert.EqualError(t, Identity{AgentID: "a"}.Check(), "task_id is required")
	assert.EqualError(t, Identity{}.Check(), "agent_id and task_id are required")

	campaign := "campaign_123"
	assert.Equal(t, "campaign_123", Identity{CampaignID: &campaign}.Campaign())
	assert.Equal(t, "", Identity{}.Campaign())
}

func TestCapabilityKnown(t *testing.T) {
	for _, c := range []Capability{
		CapabilityTranscribeAudio, CapabilityDownloadMedia, CapabilityGenerateContent,
		CapabilityGenerateImage, CapabilityRenderVideo, CapabilityDetectTrends,
	} {
		assert.True(t, c.Known(), c)
	}
	assert.False(t, Capability("").Known())
	assert.False(t, Capability("Render_Video").Known())
	assert.False(t, Capability("transcribe").Known())
}
