// Package services holds the capability router and the job helpers shared by
// the service clients behind skill dispatch and trend detection.
package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/agentskills/skillkit/pkg/logger"
	"github.com/agentskills/skillkit/pkg/telemetry"
	skilltypes "github.com/agentskills/skillkit/pkg/types/skills"
)

// DefaultPollInterval is used by Await when no interval is given.
const DefaultPollInterval = 2 * time.Second

// Router is a ServiceClient that forwards each capability to the backend
// registered for it.
type Router struct {
	mu       sync.RWMutex
	backends map[skilltypes.Capability]skilltypes.ServiceClient
}

var _ skilltypes.ServiceClient = (*Router)(nil)

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{backends: make(map[skilltypes.Capability]skilltypes.ServiceClient)}
}

// Register routes the given capabilities to backend, replacing earlier routes.
func (r *Router) Register(backend skilltypes.ServiceClient, capabilities ...skilltypes.Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range capabilities {
		r.backends[c] = backend
	}
}

// Capabilities lists the routed capabilities in name order.
func (r *Router) Capabilities() []skilltypes.Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	caps := make([]skilltypes.Capability, 0, len(r.backends))
	for c := range r.backends {
		caps = append(caps, c)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}

func (r *Router) backend(c skilltypes.Capability) (skilltypes.ServiceClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[c]
	if !ok {
		return nil, skilltypes.NewExternalServiceError(c, skilltypes.CodeUnsupported, "no backend configured for capability", nil)
	}
	return b, nil
}

// Submit forwards job to the backend registered for its capability.
func (r *Router) Submit(ctx context.Context, job skilltypes.Job) (*skilltypes.JobResult, error) {
	b, err := r.backend(job.Capability)
	if err != nil {
		return nil, err
	}
	return b.Submit(ctx, job)
}

// Fetch forwards a job lookup to the backend registered for capability.
func (r *Router) Fetch(ctx context.Context, capability skilltypes.Capability, jobID string) (*skilltypes.JobResult, error) {
	b, err := r.backend(capability)
	if err != nil {
		return nil, err
	}
	return b.Fetch(ctx, capability, jobID)
}

// Await submits job and polls it until it reaches a terminal state. It only
// returns a result when the job succeeded; every failure is an
// *ExternalServiceError, including ctx expiry while waiting.
func Await(ctx context.Context, svc skilltypes.ServiceClient, job skilltypes.Job, pollInterval time.Duration) (*skilltypes.JobResult, error) {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	result, err := svc.Submit(ctx, job)
	if err != nil {
		return nil, classify(ctx, job.Capability, "submit", err)
	}

	if result != nil && result.JobID != "" {
		telemetry.SetAttributes(ctx, attribute.String("job.id", result.JobID))
	}

	timer := time.NewTimer(pollInterval)
	defer timer.Stop()

	for polls := 0; ; polls++ {
		if result == nil {
			return nil, skilltypes.NewExternalServiceError(job.Capability, skilltypes.CodeMalformedResponse, "service returned no job result", nil)
		}

		telemetry.AddEvent(ctx, "job.status",
			attribute.String("job.status", string(result.Status)),
			attribute.Int("job.polls", polls))

		switch result.Status {
		case skilltypes.JobSucceeded:
			return result, nil
		case skilltypes.JobFailed:
			return nil, skilltypes.FromJobError(job.Capability, result.Error)
		case skilltypes.JobPending, skilltypes.JobRunning:
			if result.JobID == "" {
				return nil, skilltypes.NewExternalServiceError(job.Capability, skilltypes.CodeMalformedResponse, "unfinished job has no id", nil)
			}
		default:
			return nil, skilltypes.NewExternalServiceError(job.Capability, skilltypes.CodeMalformedResponse,
				"unknown job status "+string(result.Status), nil)
		}

		logger.G(ctx).
			WithField("job_id", result.JobID).
			WithField("status", result.Status).
			Debug("job not finished, polling")

		select {
		case <-ctx.Done():
			return nil, skilltypes.FromContextError(job.Capability, ctx.Err())
		case <-timer.C:
		}
		timer.Reset(pollInterval)

		jobID := result.JobID
		result, err = svc.Fetch(ctx, job.Capability, jobID)
		if err != nil {
			return nil, classify(ctx, job.Capability, "fetch", err)
		}
	}
}

// classify turns an error returned by a service client into an
// *ExternalServiceError without losing one that is already typed.
func classify(ctx context.Context, capability skilltypes.Capability, op string, err error) error {
	var svcErr *skilltypes.ExternalServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	if ctxErr := skilltypes.FromContextError(capability, err); ctxErr != nil {
		return ctxErr
	}
	if ctx.Err() != nil {
		return skilltypes.FromContextError(capability, ctx.Err())
	}
	return skilltypes.NewExternalServiceError(capability, skilltypes.CodeProviderError, op+" failed", err)
}
