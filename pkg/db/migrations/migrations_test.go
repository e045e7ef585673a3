package migrations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentskills/skillkit/pkg/db"
)

func TestAll_Ordered(t *testing.T) {
	all := All()
	require.NotEmpty(t, all)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Version, all[i].Version)
	}
	for _, m := range all {
		assert.NotNil(t, m.Down, "migration %d must be reversible", m.Version)
	}
}

func TestAll_ApplyAndRollback(t *testing.T) {
	ctx := context.Background()
	sqlDB, err := db.OpenMigrated(ctx, filepath.Join(t.TempDir(), "storage.db"), All())
	require.NoError(t, err)
	defer sqlDB.Close()

	var columns []string
	require.NoError(t, sqlDB.Select(&columns, "SELECT name FROM pragma_table_info('skill_outcomes') ORDER BY cid"))
	assert.Equal(t, []string{"task_id", "agent_id", "campaign_id", "skill", "payload", "created_at"}, columns)

	runner := db.NewMigrationRunner(sqlDB)
	for range All() {
		_, err := runner.Rollback(ctx, All())
		require.NoError(t, err)
	}

	var tables int
	require.NoError(t, sqlDB.Get(&tables, "SELECT COUNT(*) FROM sqlite_master WHERE name = 'skill_outcomes'"))
	assert.Zero(t, tables)
}
