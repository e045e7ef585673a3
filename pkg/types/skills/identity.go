// Package skills defines the contract types shared by every skill: the identity
// fields carried on each input, the capability surface of the external-service
// client, the persistence surface, and the error taxonomy callers inspect.
package skills

import "github.com/pkg/errors"

// Identity holds the correlation fields every skill input carries. They are used
// for audit and tracing only and never influence business logic.
type Identity struct {
	AgentID    string  `json:"agent_id" mapstructure:"agent_id" validate:"required" jsonschema:"required,description=ID of the agent invoking the skill"`
	TaskID     string  `json:"task_id" mapstructure:"task_id" validate:"required" jsonschema:"required,description=Unique ID of this invocation"`
	CampaignID *string `json:"campaign_id,omitempty" mapstructure:"campaign_id" jsonschema:"description=Optional campaign the task belongs to"`
}

// Identified is implemented by anything carrying skill identity fields.
type Identified interface {
	SkillIdentity() Identity
}

// SkillIdentity returns the identity itself so that embedding structs satisfy Identified.
func (i Identity) SkillIdentity() Identity {
	return i
}

// Campaign returns the campaign ID or an empty string when none was given.
func (i Identity) Campaign() string {
	if i.CampaignID == nil {
		return ""
	}
	return *i.CampaignID
}

// Check rejects identities missing agent or task IDs.
func (i Identity) Check() error {
	switch {
	case i.AgentID == "" && i.TaskID == "":
		return errors.New("agent_id and task_id are required")
	case i.AgentID == "":
		return errors.New("agent_id is required")
	case i.TaskID == "":
		return errors.New("task_id is required")
	}
	return nil
}

// SetIdentity replaces the identity. Skill outputs use it to echo the caller's
// identity regardless of what the provider returned.
func (i *Identity) SetIdentity(id Identity) {
	*i = id
}
