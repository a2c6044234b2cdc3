package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/RamyaDR2005/Placement-PROJECT/internal/rounds"
)

// Repository persists attendance data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateIfAbsent inserts a record unless one already exists for the
// (student, job, round) tuple. The insert relies on the unique index so
// that concurrent operators racing on the same tuple get exactly one
// created row; every loser observes the winner's record. Returned bool is
// true when this call created the row.
func (r *Repository) CreateIfAbsent(ctx context.Context, rec Record) (Record, bool, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.ScannedAt.IsZero() {
		rec.ScannedAt = time.Now().UTC()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, student_id, job_id, round_id, scanned_at, scanned_by, location)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (student_id, job_id, round_id) DO NOTHING
		RETURNING created_at
	`, rec.ID, rec.StudentID, rec.JobID, rec.RoundID, rec.ScannedAt, rec.ScannedBy, rec.Location)

	switch err := row.Scan(&rec.CreatedAt); {
	case err == nil:
		return rec, true, nil
	case errors.Is(err, sql.ErrNoRows):
		existing, gerr := r.GetByTuple(ctx, rec.StudentID, rec.JobID, rec.RoundID)
		if gerr != nil {
			return Record{}, false, gerr
		}
		if existing == nil {
			// Conflicting row deleted between insert and read; the
			// caller retries via the operator.
			return Record{}, false, fmt.Errorf("attendance row for %s/%s disappeared", rec.StudentID, rec.JobID)
		}
		return *existing, false, nil
	default:
		return Record{}, false, err
	}
}

// GetByTuple returns the record for a tuple, or nil when absent.
func (r *Repository) GetByTuple(ctx context.Context, studentID, jobID string, roundID *string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, student_id, job_id, round_id, scanned_at, scanned_by, location, outcome, created_at
		FROM attendance_records
		WHERE student_id = $1 AND job_id = $2 AND round_id IS NOT DISTINCT FROM $3
	`, studentID, jobID, roundID)
	var rec Record
	if err := row.Scan(&rec.ID, &rec.StudentID, &rec.JobID, &rec.RoundID, &rec.ScannedAt, &rec.ScannedBy, &rec.Location, &rec.Outcome, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// ListByStudentJob returns all attendance records a student holds for a
// job, across rounds.
func (r *Repository) ListByStudentJob(ctx context.Context, studentID, jobID string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, student_id, job_id, round_id, scanned_at, scanned_by, location, outcome, created_at
		FROM attendance_records
		WHERE student_id = $1 AND job_id = $2
		ORDER BY scanned_at
	`, studentID, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.JobID, &rec.RoundID, &rec.ScannedAt, &rec.ScannedBy, &rec.Location, &rec.Outcome, &rec.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// SetOutcome records the evaluation result on an existing record. Returns
// false when no record matches the tuple.
func (r *Repository) SetOutcome(ctx context.Context, studentID, jobID string, roundID *string, outcome string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendance_records
		SET outcome = $4
		WHERE student_id = $1 AND job_id = $2 AND round_id IS NOT DISTINCT FROM $3
	`, studentID, jobID, roundID, outcome)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetRound returns a round by id, or nil when absent.
func (r *Repository) GetRound(ctx context.Context, id string) (*rounds.Round, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, job_id, name, round_order, state FROM rounds WHERE id = $1
	`, id)
	var rd rounds.Round
	if err := row.Scan(&rd.ID, &rd.JobID, &rd.Name, &rd.Order, &rd.State); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rd, nil
}

// ListRounds returns a job's rounds in pipeline order.
func (r *Repository) ListRounds(ctx context.Context, jobID string) ([]rounds.Round, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, job_id, name, round_order, state FROM rounds
		WHERE job_id = $1
		ORDER BY round_order
	`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []rounds.Round
	for rows.Next() {
		var rd rounds.Round
		if err := rows.Scan(&rd.ID, &rd.JobID, &rd.Name, &rd.Order, &rd.State); err != nil {
			return nil, err
		}
		res = append(res, rd)
	}
	return res, rows.Err()
}

// GetApplication returns an application by id, or nil when absent.
func (r *Repository) GetApplication(ctx context.Context, id string) (*Application, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, student_id, job_id FROM applications WHERE id = $1
	`, id)
	var app Application
	if err := row.Scan(&app.ID, &app.StudentID, &app.JobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &app, nil
}

// GetStudent returns a student summary, or nil when absent.
func (r *Repository) GetStudent(ctx context.Context, id string) (*Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, usn, branch FROM students WHERE id = $1
	`, id)
	var st Student
	if err := row.Scan(&st.ID, &st.Name, &st.Email, &st.USN, &st.Branch); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

// GetJob returns a job summary, or nil when absent.
func (r *Repository) GetJob(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, title, company FROM jobs WHERE id = $1
	`, id)
	var j Job
	if err := row.Scan(&j.ID, &j.Title, &j.Company); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &j, nil
}
