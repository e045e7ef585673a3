package migrations

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/agentskills/skillkit/pkg/db"
)

// Migration20261015090100AddOutcomeAgentIndex indexes outcomes by agent and time.
func Migration20261015090100AddOutcomeAgentIndex() db.Migration {
	return db.Migration{
		Version:     20261015090100,
		Description: "Add agent_id/created_at index to skill_outcomes",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`
				CREATE INDEX IF NOT EXISTS idx_skill_outcomes_agent_created
				ON skill_outcomes(agent_id, created_at DESC)
			`); err != nil {
				return errors.Wrap(err, "failed to create idx_skill_outcomes_agent_created")
			}
			return nil
		},
		Down: func(tx *sql.Tx) error {
			if _, err := tx.Exec("DROP INDEX IF EXISTS idx_skill_outcomes_agent_created"); err != nil {
				return errors.Wrap(err, "failed to drop idx_skill_outcomes_agent_created")
			}
			return nil
		},
	}
}
