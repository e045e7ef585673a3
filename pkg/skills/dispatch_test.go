package skills

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/agentskills/skillkit/pkg/services/servicestest"
	"github.com/agentskills/skillkit/pkg/store"
	skilltypes "github.com/agentskills/skillkit/pkg/types/skills"
)

type failingStore struct {
	getErr error
	putErr error
	puts   int
}

func (f *failingStore) Put(context.Context, skilltypes.Outcome) error {
	f.puts++
	return f.putErr
}

func (f *failingStore) Get(context.Context, string) (*skilltypes.Outcome, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return nil, skilltypes.ErrOutcomeNotFound
}

var fixedNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func fastOpts() []Option {
	return []Option{WithPollInterval(time.Millisecond), withClock(func() time.Time { return fixedNow })}
}

func mustTranscribeInput(t *testing.T) *TranscribeAudioInput {
	t.Helper()
	in, err := ParseTranscribeAudioInput(validRaw()[SkillTranscribeAudio])
	require.NoError(t, err)
	return in
}

func TestExecuteTranscribeAudio_Success(t *testing.T) {
	in := mustTranscribeInput(t)
	svc := new(servicestest.MockServiceClient)
	st := store.NewMemoryStore()

	svc.On("Submit", mock.Anything, skilltypes.Job{
		Capability: skilltypes.CapabilityTranscribeAudio,
		AgentID:    "agent-1",
		TaskID:     "task-1",
		Arguments: map[string]any{
			"audio_source":        "https://cdn.example/a.mp3",
			"source_type":         "url",
			"language":            "en",
			"format":              "text",
			"speaker_diarization": false,
			"timestamps":          true,
		},
	}).Return(servicestest.Succeeded(skilltypes.CapabilityTranscribeAudio, map[string]any{
		"transcript": "hello world",
		"segments": []any{
			map[string]any{"start": 0, "end": 1.5, "text": "hello"},
			map[string]any{"start": 1.5, "end": "3", "text": "world"},
		},
		"agent_id": "spoofed",
	}), nil)

	out, err := ExecuteTranscribeAudio(context.Background(), in, svc, st, fastOpts()...)
	require.NoError(t, err)

	assert.Equal(t, "hello world", out.Transcript)
	assert.Equal(t, TranscriptText, out.Format)
	assert.Equal(t, "en", out.Language)
	require.Len(t, out.Segments, 2)
	assert.Equal(t, 3.0, out.Segments[1].End)
	assert.Equal(t, "agent-1", out.AgentID)
	assert.Equal(t, "task-1", out.TaskID)

	outcome, err := st.Get(context.Background(), "task-1")
	require.NoError(t, err)
	assert.Equal(t, SkillTranscribeAudio, outcome.Skill)
	assert.Equal(t, "agent-1", outcome.AgentID)
	assert.Equal(t, fixedNow, outcome.CreatedAt)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(outcome.Payload, &payload))
	assert.Equal(t, "hello world", payload["transcript"])
	assert.Equal(t, "task-1", payload["task_id"])

	svc.AssertExpectations(t)
}

func TestExecute_PollsPendingJobs(t *testing.T) {
	in, err := ParseRenderVideoInput(identity(map[string]any{
		"script": "scene", "tier": "tier_1_daily", "source_image": "https://cdn.example/i.png", "duration_seconds": 8,
	}))
	require.NoError(t, err)

	svc := new(servicestest.MockServiceClient)
	svc.On("Submit", mock.Anything, mock.MatchedBy(func(job skilltypes.Job) bool {
		return job.Arguments["source_image"] == "https://cdn.example/i.png" && job.Arguments["duration_seconds"] == 8
	})).Return(servicestest.Pending(skilltypes.CapabilityRenderVideo, "render-7"), nil)
	svc.On("Fetch", mock.Anything, skilltypes.CapabilityRenderVideo, "render-7").
		Return(servicestest.Pending(skilltypes.CapabilityRenderVideo, "render-7"), nil).Once()
	svc.On("Fetch", mock.Anything, skilltypes.CapabilityRenderVideo, "render-7").
		Return(servicestest.Succeeded(skilltypes.CapabilityRenderVideo, map[string]any{"video_url": "https://cdn.example/v.mp4"}), nil).Once()

	out, err := ExecuteRenderVideo(context.Background(), in, svc, store.NewMemoryStore(), fastOpts()...)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/v.mp4", out.VideoURL)
	assert.Equal(t, TierDaily, out.Tier)
	assert.Equal(t, AspectPortrait, out.AspectRatio)
	assert.Equal(t, 8.0, out.DurationSeconds)
	svc.AssertExpectations(t)
}

func TestExecute_ExternalFailureWritesNothing(t *testing.T) {
	tests := []struct {
		name   string
		result *skilltypes.JobResult
		err    error
		code   skilltypes.ErrorCode
	}{
		{
			name:   "provider failure",
			result: servicestest.Failed(skilltypes.CapabilityTranscribeAudio, "unauthorized", "bad key", false),
			code:   skilltypes.CodeUnauthorized,
		},
		{
			name: "transport failure",
			err:  errors.New("connection refused"),
			code: skilltypes.CodeProviderError,
		},
		{
			name:   "missing required output",
			result: servicestest.Succeeded(skilltypes.CapabilityTranscribeAudio, map[string]any{"language": "en"}),
			code:   skilltypes.CodeMalformedResponse,
		},
		{
			name:   "wrongly shaped output",
			result: servicestest.Succeeded(skilltypes.CapabilityTranscribeAudio, map[string]any{"transcript": "x", "segments": "nope"}),
			code:   skilltypes.CodeMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(servicestest.MockServiceClient)
			svc.On("Submit", mock.Anything, mock.Anything).Return(tt.result, tt.err)
			st := store.NewMemoryStore()

			out, err := ExecuteTranscribeAudio(context.Background(), mustTranscribeInput(t), svc, st, fastOpts()...)
			assert.Nil(t, out)

			var svcErr *skilltypes.ExternalServiceError
			require.True(t, errors.As(err, &svcErr), "got %v", err)
			assert.Equal(t, tt.code, svcErr.Code)
			assert.Equal(t, 0, st.Len())
		})
	}
}

func TestExecute_Timeout(t *testing.T) {
	svc := new(servicestest.MockServiceClient)
	svc.On("Submit", mock.Anything, mock.Anything).Return(servicestest.Pending(skilltypes.CapabilityTranscribeAudio, "j"), nil)
	svc.On("Fetch", mock.Anything, mock.Anything, "j").Return(servicestest.Pending(skilltypes.CapabilityTranscribeAudio, "j"), nil)
	st := store.NewMemoryStore()

	opts := append(fastOpts(), WithTimeout(20*time.Millisecond))
	_, err := ExecuteTranscribeAudio(context.Background(), mustTranscribeInput(t), svc, st, opts...)

	var svcErr *skilltypes.ExternalServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, skilltypes.CodeTimeout, svcErr.Code)
	assert.True(t, svcErr.Retryable)
	assert.True(t, skilltypes.IsRetryable(err))
	assert.Equal(t, 0, st.Len())
}

func TestExecute_PersistenceFailureKeepsResult(t *testing.T) {
	svc := new(servicestest.MockServiceClient)
	svc.On("Submit", mock.Anything, mock.Anything).
		Return(servicestest.Succeeded(skilltypes.CapabilityTranscribeAudio, map[string]any{"transcript": "ok"}), nil)
	st := &failingStore{putErr: errors.New("disk full")}

	out, err := ExecuteTranscribeAudio(context.Background(), mustTranscribeInput(t), svc, st, fastOpts()...)
	require.NotNil(t, out)
	assert.Equal(t, "ok", out.Transcript)

	var perr *skilltypes.PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "put", perr.Op)
	assert.Equal(t, "task-1", perr.TaskID)
	assert.Equal(t, 1, st.puts)
	assert.False(t, skilltypes.IsExternalService(err))
}

func TestExecute_ReadFailureBeforeCall(t *testing.T) {
	svc := new(servicestest.MockServiceClient)
	st := &failingStore{getErr: errors.New("locked")}

	_, err := ExecuteTranscribeAudio(context.Background(), mustTranscribeInput(t), svc, st, fastOpts()...)
	var perr *skilltypes.PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "get", perr.Op)
	svc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestExecute_DuplicateTaskRejected(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, st.Put(context.Background(), skilltypes.Outcome{TaskID: "task-1", Skill: SkillGenerateImage}))
	svc := new(servicestest.MockServiceClient)

	_, err := ExecuteTranscribeAudio(context.Background(), mustTranscribeInput(t), svc, st, fastOpts()...)
	verr := requireValidationError(t, err, "task_id")
	assert.Equal(t, "unique", verr.Fields[0].Rule)
	svc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestExecute_ConcurrentSameTaskReachesServiceOnce(t *testing.T) {
	st := store.NewMemoryStore()
	started := make(chan struct{})
	release := make(chan struct{})
	svc := new(servicestest.MockServiceClient)
	svc.On("Submit", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(servicestest.Succeeded(skilltypes.CapabilityTranscribeAudio, map[string]any{"transcript": "ok"}), nil).Once()

	done := make(chan error, 1)
	go func() {
		_, err := ExecuteTranscribeAudio(context.Background(), mustTranscribeInput(t), svc, st, fastOpts()...)
		done <- err
	}()
	<-started

	_, err := ExecuteTranscribeAudio(context.Background(), mustTranscribeInput(t), svc, st, fastOpts()...)
	verr := requireValidationError(t, err, "task_id")
	assert.Equal(t, "unique", verr.Fields[0].Rule)
	assert.Equal(t, "is already being processed", verr.Fields[0].Message)

	close(release)
	require.NoError(t, <-done)
	svc.AssertNumberOfCalls(t, "Submit", 1)

	// Once the first invocation is recorded the claim is gone and the stored
	// outcome rejects the task id.
	_, err = ExecuteTranscribeAudio(context.Background(), mustTranscribeInput(t), svc, st, fastOpts()...)
	verr = requireValidationError(t, err, "task_id")
	assert.Equal(t, "already has a recorded transcribe_audio outcome", verr.Fields[0].Message)
	svc.AssertNumberOfCalls(t, "Submit", 1)
}

func TestExecute_ClaimIsReleasedAfterFailure(t *testing.T) {
	st := store.NewMemoryStore()
	svc := new(servicestest.MockServiceClient)
	svc.On("Submit", mock.Anything, mock.Anything).
		Return(servicestest.Failed(skilltypes.CapabilityTranscribeAudio, "provider_error", "boom", false), nil).Once()
	svc.On("Submit", mock.Anything, mock.Anything).
		Return(servicestest.Succeeded(skilltypes.CapabilityTranscribeAudio, map[string]any{"transcript": "ok"}), nil).Once()

	_, err := ExecuteTranscribeAudio(context.Background(), mustTranscribeInput(t), svc, st, fastOpts()...)
	require.Error(t, err)

	_, err = ExecuteTranscribeAudio(context.Background(), mustTranscribeInput(t), svc, st, fastOpts()...)
	require.NoError(t, err)
	svc.AssertNumberOfCalls(t, "Submit", 2)
}

func TestExecute_RejectsMissingCollaborators(t *testing.T) {
	in := mustTranscribeInput(t)

	_, err := ExecuteTranscribeAudio(context.Background(), in, nil, store.NewMemoryStore())
	assert.ErrorContains(t, err, "service client is required")

	_, err = ExecuteTranscribeAudio(context.Background(), in, new(servicestest.MockServiceClient), nil)
	assert.ErrorContains(t, err, "persistence client is required")

	_, err = ExecuteTranscribeAudio(context.Background(), nil, new(servicestest.MockServiceClient), store.NewMemoryStore())
	requireValidationError(t, err, "input")
}

func TestExecute_RejectsMissingIdentity(t *testing.T) {
	in := &TranscribeAudioInput{AudioSource: "a", SourceType: SourceURL}
	svc := new(servicestest.MockServiceClient)

	_, err := ExecuteTranscribeAudio(context.Background(), in, svc, store.NewMemoryStore())
	verr := requireValidationError(t, err, "agent_id")
	assert.True(t, verr.HasField("task_id"))
	svc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestExecuteDownloadYouTube_OutputMustMatchType(t *testing.T) {
	in, err := ParseDownloadYouTubeInput(identity(map[string]any{"video_url": "https://youtu.be/x", "download_type": "both"}))
	require.NoError(t, err)

	svc := new(servicestest.MockServiceClient)
	svc.On("Submit", mock.Anything, mock.Anything).
		Return(servicestest.Succeeded(skilltypes.CapabilityDownloadMedia, map[string]any{"video_uri": "s3://v.mp4"}), nil).Once()
	_, err = ExecuteDownloadYouTube(context.Background(), in, svc, store.NewMemoryStore(), fastOpts()...)
	var svcErr *skilltypes.ExternalServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, skilltypes.CodeMalformedResponse, svcErr.Code)

	svc.On("Submit", mock.Anything, mock.Anything).
		Return(servicestest.Succeeded(skilltypes.CapabilityDownloadMedia, map[string]any{
			"video_uri": "s3://v.mp4", "audio_uri": "s3://a.mp3", "title": "clip", "duration_seconds": "61",
		}), nil).Once()
	out, err := ExecuteDownloadYouTube(context.Background(), in, svc, store.NewMemoryStore(), fastOpts()...)
	require.NoError(t, err)
	assert.Equal(t, DownloadBoth, out.DownloadType)
	assert.Equal(t, QualityMedium, out.Quality)
	assert.Equal(t, 61.0, out.DurationSeconds)
}

func TestExecuteGenerateContentAndImage(t *testing.T) {
	gc, err := ParseGenerateContentInput(identity(map[string]any{
		"content_type": "thread", "platform": "tiktok", "prompt": "launch", "context": map[string]any{"tone": "playful"},
	}))
	require.NoError(t, err)

	svc := new(servicestest.MockServiceClient)
	svc.On("Submit", mock.Anything, mock.MatchedBy(func(j skilltypes.Job) bool {
		return j.Capability == skilltypes.CapabilityGenerateContent
	})).Return(servicestest.Succeeded(skilltypes.CapabilityGenerateContent, map[string]any{"content": "1/ hi", "model": "gpt"}), nil)

	content, err := ExecuteGenerateContent(context.Background(), gc, svc, store.NewMemoryStore(), fastOpts()...)
	require.NoError(t, err)
	assert.Equal(t, "1/ hi", content.Content)
	assert.Equal(t, ContentThread, content.ContentType)
	require.NotNil(t, content.Platform)
	assert.Equal(t, PlatformTikTok, *content.Platform)

	gi, err := ParseGenerateImageInput(identity(map[string]any{"prompt": "fox", "character_reference_id": "c1", "resolution": "high"}))
	require.NoError(t, err)
	svc.On("Submit", mock.Anything, mock.MatchedBy(func(j skilltypes.Job) bool {
		return j.Capability == skilltypes.CapabilityGenerateImage
	})).Return(servicestest.Succeeded(skilltypes.CapabilityGenerateImage, map[string]any{"image_url": "https://cdn/i.png"}), nil)

	img, err := ExecuteGenerateImage(context.Background(), gi, svc, store.NewMemoryStore(), fastOpts()...)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/i.png", img.ImageURL)
	assert.Equal(t, "c1", img.CharacterReferenceID)
	assert.Equal(t, ResolutionHigh, img.Resolution)
}

func TestExecuteEntryPointsShareOneShape(t *testing.T) {
	ctxType := reflect.TypeOf((*context.Context)(nil)).Elem()
	svcType := reflect.TypeOf((*skilltypes.ServiceClient)(nil)).Elem()
	storeType := reflect.TypeOf((*skilltypes.Store)(nil)).Elem()
	errType := reflect.TypeOf((*error)(nil)).Elem()

	for name, fn := range map[string]any{
		SkillTranscribeAudio: ExecuteTranscribeAudio,
		SkillDownloadYouTube: ExecuteDownloadYouTube,
		SkillGenerateContent: ExecuteGenerateContent,
		SkillGenerateImage:   ExecuteGenerateImage,
		SkillRenderVideo:     ExecuteRenderVideo,
	} {
		t.Run(name, func(t *testing.T) {
			ft := reflect.TypeOf(fn)
			require.Equal(t, 5, ft.NumIn())
			assert.True(t, ft.IsVariadic())
			assert.Equal(t, ctxType, ft.In(0))
			assert.Equal(t, reflect.Ptr, ft.In(1).Kind())
			assert.Equal(t, svcType, ft.In(2))
			assert.Equal(t, storeType, ft.In(3))
			require.Equal(t, 2, ft.NumOut())
			assert.Equal(t, errType, ft.Out(1))
		})
	}
}
