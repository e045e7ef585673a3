// Package store implements the persistence client that records skill outcomes
// keyed by task ID.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	skilltypes "github.com/agentskills/skillkit/pkg/types/skills"
)

// DefaultListLimit caps ListByAgent when no limit is given.
const DefaultListLimit = 50

// ErrDuplicateTask is wrapped by Put when the task already has an outcome.
var ErrDuplicateTask = errors.New("outcome already recorded for task")

// MemoryStore keeps outcomes in process memory. It is safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	outcomes map[string]skilltypes.Outcome
}

var (
	_ skilltypes.Store         = (*MemoryStore)(nil)
	_ skilltypes.OutcomeLister = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{outcomes: make(map[string]skilltypes.Outcome)}
}

// Put records outcome unless its task already has one.
func (s *MemoryStore) Put(ctx context.Context, outcome skilltypes.Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if outcome.TaskID == "" {
		return errors.New("outcome has no task_id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.outcomes[outcome.TaskID]; ok {
		return errors.Wrapf(ErrDuplicateTask, "task %s", outcome.TaskID)
	}
	outcome.Payload = append([]byte(nil), outcome.Payload...)
	s.outcomes[outcome.TaskID] = outcome
	return nil
}

// Get returns the outcome of taskID or skilltypes.ErrOutcomeNotFound.
func (s *MemoryStore) Get(ctx context.Context, taskID string) (*skilltypes.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	outcome, ok := s.outcomes[taskID]
	if !ok {
		return nil, skilltypes.ErrOutcomeNotFound
	}
	outcome.Payload = append([]byte(nil), outcome.Payload...)
	return &outcome, nil
}

// ListByAgent returns up to limit outcomes of agentID, newest first. Ties on
// CreatedAt are broken by task ID.
func (s *MemoryStore) ListByAgent(ctx context.Context, agentID string, limit int) ([]skilltypes.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	s.mu.RLock()
	outcomes := make([]skilltypes.Outcome, 0)
	for _, o := range s.outcomes {
		if o.AgentID == agentID {
			o.Payload = append([]byte(nil), o.Payload...)
			outcomes = append(outcomes, o)
		}
	}
	s.mu.RUnlock()

	sort.Slice(outcomes, func(i, j int) bool {
		if !outcomes[i].CreatedAt.Equal(outcomes[j].CreatedAt) {
			return outcomes[i].CreatedAt.After(outcomes[j].CreatedAt)
		}
		return outcomes[i].TaskID > outcomes[j].TaskID
	})
	if len(outcomes) > limit {
		outcomes = outcomes[:limit]
	}
	return outcomes, nil
}

// Len reports how many outcomes are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.outcomes)
}
