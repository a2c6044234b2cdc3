package audit

import (
	"context"
	"database/sql"
	"errors"
)

// Repo persists security events in Postgres. Only the worker writes here;
// the trail is append-only.
type Repo struct {
	db *sql.DB
}

// NewRepo creates a repo.
func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

// Insert appends one event.
func (r *Repo) Insert(ctx context.Context, evt Event) error {
	if evt.ID == "" {
		return errors.New("event id required")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO security_events (id, kind, student_id, job_id, round_id, actor_id, detail, occurred_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO NOTHING
	`, evt.ID, string(evt.Kind), nullable(evt.StudentID), nullable(evt.JobID), nullable(evt.RoundID), evt.ActorID, evt.Detail, evt.OccurredAt)
	return err
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
