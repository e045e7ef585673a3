package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/agentskills/skillkit/pkg/db"
	"github.com/agentskills/skillkit/pkg/db/migrations"
	"github.com/agentskills/skillkit/pkg/logger"
	skilltypes "github.com/agentskills/skillkit/pkg/types/skills"
)

// SQLiteStore records outcomes in the skill_outcomes table.
type SQLiteStore struct {
	db *sqlx.DB
}

var (
	_ skilltypes.Store         = (*SQLiteStore)(nil)
	_ skilltypes.OutcomeLister = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens dbPath, runs pending migrations and returns the store.
// An empty dbPath uses db.DefaultDBPath.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		var err error
		if dbPath, err = db.DefaultDBPath(); err != nil {
			return nil, err
		}
	}

	sqlDB, err := db.OpenMigrated(ctx, dbPath, migrations.All())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open outcome store")
	}
	logger.G(ctx).WithField("path", dbPath).Debug("outcome store ready")
	return &SQLiteStore{db: sqlDB}, nil
}

// NewSQLiteStoreFromDB wraps an already migrated database.
func NewSQLiteStoreFromDB(sqlDB *sqlx.DB) *SQLiteStore {
	return &SQLiteStore{db: sqlDB}
}

// Put inserts outcome. A task that already has an outcome is rejected.
func (s *SQLiteStore) Put(ctx context.Context, outcome skilltypes.Outcome) error {
	if outcome.TaskID == "" {
		return errors.New("outcome has no task_id")
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO skill_outcomes (task_id, agent_id, campaign_id, skill, payload, created_at)
		VALUES (:task_id, :agent_id, :campaign_id, :skill, :payload, :created_at)
	`, outcomeRecord{
		TaskID:     outcome.TaskID,
		AgentID:    outcome.AgentID,
		CampaignID: outcome.CampaignID,
		Skill:      outcome.Skill,
		Payload:    string(outcome.Payload),
		CreatedAt:  outcome.CreatedAt,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Wrapf(ErrDuplicateTask, "task %s", outcome.TaskID)
		}
		return errors.Wrap(err, "failed to insert outcome")
	}
	return nil
}

// Get loads the outcome of taskID or returns skilltypes.ErrOutcomeNotFound.
func (s *SQLiteStore) Get(ctx context.Context, taskID string) (*skilltypes.Outcome, error) {
	var rec outcomeRecord
	err := s.db.GetContext(ctx, &rec, `
		SELECT task_id, agent_id, campaign_id, skill, payload, created_at
		FROM skill_outcomes WHERE task_id = ?
	`, taskID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, skilltypes.ErrOutcomeNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get outcome")
	}
	return rec.toOutcome(), nil
}

// ListByAgent returns the most recent outcomes of agentID, newest first.
func (s *SQLiteStore) ListByAgent(ctx context.Context, agentID string, limit int) ([]skilltypes.Outcome, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var recs []outcomeRecord
	if err := s.db.SelectContext(ctx, &recs, `
		SELECT task_id, agent_id, campaign_id, skill, payload, created_at
		FROM skill_outcomes WHERE agent_id = ?
		ORDER BY created_at DESC, task_id DESC LIMIT ?
	`, agentID, limit); err != nil {
		return nil, errors.Wrap(err, "failed to list outcomes")
	}

	outcomes := make([]skilltypes.Outcome, 0, len(recs))
	for _, rec := range recs {
		outcomes = append(outcomes, *rec.toOutcome())
	}
	return outcomes, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
