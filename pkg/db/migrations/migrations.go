// Package migrations lists the schema migrations of the skill outcome store.
package migrations

import (
	"github.com/agentskills/skillkit/pkg/db"
)

// All returns every migration. New migrations are appended here.
func All() []db.Migration {
	return []db.Migration{
		Migration20261015090000CreateSkillOutcomes(),
		Migration20261015090100AddOutcomeAgentIndex(),
	}
}
