// Package servicestest provides test doubles for the service client surface.
package servicestest

import (
	"context"

	"github.com/stretchr/testify/mock"

	skilltypes "github.com/agentskills/skillkit/pkg/types/skills"
)

// MockServiceClient is a testify mock of skilltypes.ServiceClient.
type MockServiceClient struct {
	mock.Mock
}

var _ skilltypes.ServiceClient = (*MockServiceClient)(nil)

func (m *MockServiceClient) Submit(ctx context.Context, job skilltypes.Job) (*skilltypes.JobResult, error) {
	args := m.Called(ctx, job)
	result, _ := args.Get(0).(*skilltypes.JobResult)
	return result, args.Error(1)
}

func (m *MockServiceClient) Fetch(ctx context.Context, capability skilltypes.Capability, jobID string) (*skilltypes.JobResult, error) {
	args := m.Called(ctx, capability, jobID)
	result, _ := args.Get(0).(*skilltypes.JobResult)
	return result, args.Error(1)
}

// Succeeded builds a terminal successful result.
func Succeeded(capability skilltypes.Capability, output map[string]any) *skilltypes.JobResult {
	return &skilltypes.JobResult{
		JobID:      "job-1",
		Capability: capability,
		Status:     skilltypes.JobSucceeded,
		Output:     output,
	}
}

// Pending builds an unfinished result with the given job id.
func Pending(capability skilltypes.Capability, jobID string) *skilltypes.JobResult {
	return &skilltypes.JobResult{
		JobID:      jobID,
		Capability: capability,
		Status:     skilltypes.JobPending,
	}
}

// Failed builds a terminal failed result carrying a provider error.
func Failed(capability skilltypes.Capability, code, message string, retryable bool) *skilltypes.JobResult {
	return &skilltypes.JobResult{
		JobID:      "job-1",
		Capability: capability,
		Status:     skilltypes.JobFailed,
		Error:      &skilltypes.JobError{Code: code, Message: message, Retryable: retryable},
	}
}
