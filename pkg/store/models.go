package store

import (
	"encoding/json"
	"time"

	skilltypes "github.com/agentskills/skillkit/pkg/types/skills"
)

// outcomeRecord is the row shape of skill_outcomes.
type outcomeRecord struct {
	TaskID     string    `db:"task_id"`
	AgentID    string    `db:"agent_id"`
	CampaignID string    `db:"campaign_id"`
	Skill      string    `db:"skill"`
	Payload    string    `db:"payload"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r outcomeRecord) toOutcome() *skilltypes.Outcome {
	return &skilltypes.Outcome{
		TaskID:     r.TaskID,
		AgentID:    r.AgentID,
		CampaignID: r.CampaignID,
		Skill:      r.Skill,
		Payload:    json.RawMessage(r.Payload),
		CreatedAt:  r.CreatedAt.UTC(),
	}
}
