package migrations

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/agentskills/skillkit/pkg/db"
)

// Migration20261015090000CreateSkillOutcomes creates the skill_outcomes table.
func Migration20261015090000CreateSkillOutcomes() db.Migration {
	return db.Migration{
		Version:     20261015090000,
		Description: "Create skill_outcomes table",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS skill_outcomes (
					task_id TEXT PRIMARY KEY,
					agent_id TEXT NOT NULL,
					campaign_id TEXT NOT NULL DEFAULT '',
					skill TEXT NOT NULL,
					payload TEXT NOT NULL,
					created_at DATETIME NOT NULL
				)
			`); err != nil {
				return errors.Wrap(err, "failed to create skill_outcomes table")
			}
			return nil
		},
		Down: func(tx *sql.Tx) error {
			if _, err := tx.Exec("DROP TABLE IF EXISTS skill_outcomes"); err != nil {
				return errors.Wrap(err, "failed to drop skill_outcomes table")
			}
			return nil
		},
	}
}
