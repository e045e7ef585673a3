package store

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	skilltypes "github.com/agentskills/skillkit/pkg/types/skills"
)

func newOutcome(taskID string) skilltypes.Outcome {
	return skilltypes.Outcome{
		TaskID:     taskID,
		AgentID:    "agent-1",
		CampaignID: "launch",
		Skill:      "generate_image",
		Payload:    json.RawMessage(`{"image_url":"https://cdn.example/i.png"}`),
		CreatedAt:  time.Date(2026, 10, 15, 9, 30, 0, 123456000, time.UTC),
	}
}

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "storage.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func stores(t *testing.T) map[string]skilltypes.Store {
	return map[string]skilltypes.Store{
		"memory": NewMemoryStore(),
		"sqlite": newSQLiteStore(t),
	}
}

func TestStore_PutGet(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			want := newOutcome("task-1")
			require.NoError(t, s.Put(ctx, want))

			got, err := s.Get(ctx, "task-1")
			require.NoError(t, err)
			assert.Equal(t, want.TaskID, got.TaskID)
			assert.Equal(t, want.AgentID, got.AgentID)
			assert.Equal(t, want.CampaignID, got.CampaignID)
			assert.Equal(t, want.Skill, got.Skill)
			assert.JSONEq(t, string(want.Payload), string(got.Payload))
			assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
		})
	}
}

func TestStore_GetMissing(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(context.Background(), "nope")
			assert.True(t, errors.Is(err, skilltypes.ErrOutcomeNotFound))
		})
	}
}

func TestStore_DuplicateTask(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Put(ctx, newOutcome("task-1")))

			second := newOutcome("task-1")
			second.Skill = "render_video"
			err := s.Put(ctx, second)
			assert.True(t, errors.Is(err, ErrDuplicateTask))

			got, err := s.Get(ctx, "task-1")
			require.NoError(t, err)
			assert.Equal(t, "generate_image", got.Skill)
		})
	}
}

func TestStore_RejectsEmptyTaskID(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, s.Put(context.Background(), newOutcome("")))
		})
	}
}

func TestStore_ConcurrentPuts(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					assert.NoError(t, s.Put(ctx, newOutcome(fmt.Sprintf("task-%d", i))))
				}(i)
			}
			wg.Wait()

			for i := 0; i < 20; i++ {
				_, err := s.Get(ctx, fmt.Sprintf("task-%d", i))
				assert.NoError(t, err)
			}
		})
	}
}

func TestMemoryStore_CopiesPayload(t *testing.T) {
	s := NewMemoryStore()
	o := newOutcome("task-1")
	require.NoError(t, s.Put(context.Background(), o))
	o.Payload[0] = 'X'

	got, err := s.Get(context.Background(), "task-1")
	require.NoError(t, err)
	assert.Equal(t, byte('{'), got.Payload[0])
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewMemoryStore()
	assert.ErrorIs(t, s.Put(ctx, newOutcome("task-1")), context.Canceled)
	_, err := s.Get(ctx, "task-1")
	assert.ErrorIs(t, err, context.Canceled)
}

type listingStore interface {
	skilltypes.Store
	skilltypes.OutcomeLister
}

func TestListByAgent(t *testing.T) {
	listers := map[string]func(t *testing.T) listingStore{
		"memory": func(*testing.T) listingStore { return NewMemoryStore() },
		"sqlite": func(t *testing.T) listingStore { return newSQLiteStore(t) },
	}

	for name, open := range listers {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			base := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
			for i := 0; i < 3; i++ {
				o := newOutcome(fmt.Sprintf("task-%d", i))
				o.CreatedAt = base.Add(time.Duration(i) * time.Minute)
				require.NoError(t, s.Put(ctx, o))
			}
			other := newOutcome("task-other")
			other.AgentID = "agent-2"
			require.NoError(t, s.Put(ctx, other))

			outcomes, err := s.ListByAgent(ctx, "agent-1", 2)
			require.NoError(t, err)
			require.Len(t, outcomes, 2)
			assert.Equal(t, "task-2", outcomes[0].TaskID)
			assert.Equal(t, "task-1", outcomes[1].TaskID)
			assert.JSONEq(t, `{"image_url":"https://cdn.example/i.png"}`, string(outcomes[0].Payload))

			outcomes, err = s.ListByAgent(ctx, "agent-1", 0)
			require.NoError(t, err)
			assert.Len(t, outcomes, 3, "a zero limit selects the default")

			outcomes, err = s.ListByAgent(ctx, "agent-unknown", 10)
			require.NoError(t, err)
			assert.NotNil(t, outcomes)
			assert.Empty(t, outcomes)
		})
	}
}

func TestMemoryStore_ListByAgentTieBreak(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for _, id := range []string{"task-a", "task-c", "task-b"} {
		require.NoError(t, s.Put(ctx, newOutcome(id)))
	}

	outcomes, err := s.ListByAgent(ctx, "agent-1", 0)
	require.NoError(t, err)
	var ids []string
	for _, o := range outcomes {
		ids = append(ids, o.TaskID)
	}
	assert.Equal(t, []string{"task-c", "task-b", "task-a"}, ids)
}

func TestNewSQLiteStore_DefaultPath(t *testing.T) {
	t.Setenv("SKILLKIT_BASE_PATH", t.TempDir())

	s, err := NewSQLiteStore(context.Background(), "")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put(context.Background(), newOutcome("task-1")))
}
