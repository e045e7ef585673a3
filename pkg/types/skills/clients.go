package skills

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Capability names one unit of work the external-service client can perform.
type Capability string

const (
	CapabilityTranscribeAudio Capability = "transcribe_audio"
	CapabilityDownloadMedia   Capability = "download_media"
	CapabilityGenerateContent Capability = "generate_content"
	CapabilityGenerateImage   Capability = "generate_image"
	CapabilityRenderVideo     Capability = "render_video"
	CapabilityDetectTrends    Capability = "detect_trends"
)

// Known reports whether c is one of the capabilities above.
func (c Capability) Known() bool {
	switch c {
	case CapabilityTranscribeAudio, CapabilityDownloadMedia, CapabilityGenerateContent,
		CapabilityGenerateImage, CapabilityRenderVideo, CapabilityDetectTrends:
		return true
	}
	return false
}

// JobStatus is the lifecycle state reported by the external service.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether no further polling is needed.
func (s JobStatus) Terminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// Job is a unit of work submitted to the external-service client. Arguments are
// built exclusively from validated input fields.
type Job struct {
	Capability Capability
	AgentID    string
	TaskID     string
	Arguments  map[string]any
}

// JobError is the provider's own failure report for a job.
type JobError struct {
	Code      string `json:"code" mapstructure:"code"`
	Message   string `json:"message" mapstructure:"message"`
	Retryable bool   `json:"retryable" mapstructure:"retryable"`
}

// JobResult is the state of a job as last observed.
type JobResult struct {
	JobID      string
	Capability Capability
	Status     JobStatus
	Output     map[string]any
	Error      *JobError
}

// ServiceClient is the capability surface of the external media/generative/trend
// backends. Implementations must be safe for concurrent use.
type ServiceClient interface {
	// Submit starts a job. Synchronous backends return a terminal result directly.
	Submit(ctx context.Context, job Job) (*JobResult, error)
	// Fetch returns the current state of a previously submitted job.
	Fetch(ctx context.Context, capability Capability, jobID string) (*JobResult, error)
}

// Outcome is the record written to the persistence client for a completed skill.
type Outcome struct {
	TaskID     string          `json:"task_id" db:"task_id"`
	AgentID    string          `json:"agent_id" db:"agent_id"`
	CampaignID string          `json:"campaign_id,omitempty" db:"campaign_id"`
	Skill      string          `json:"skill" db:"skill"`
	Payload    json.RawMessage `json:"payload" db:"payload"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// ErrOutcomeNotFound is returned by Store.Get when no outcome exists for a task.
var ErrOutcomeNotFound = errors.New("outcome not found")

// Store records skill outcomes keyed by task ID. Implementations must be safe for
// concurrent use.
type Store interface {
	Put(ctx context.Context, outcome Outcome) error
	Get(ctx context.Context, taskID string) (*Outcome, error)
}

// OutcomeLister is implemented by stores that can list an agent's outcomes,
// newest first. A limit of zero or less selects the store's default.
type OutcomeLister interface {
	ListByAgent(ctx context.Context, agentID string, limit int) ([]Outcome, error)
}
