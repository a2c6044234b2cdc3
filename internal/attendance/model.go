package attendance

import (
	"errors"
	"time"
)

// Record is the durable fact that a student was scanned present for a
// round. At most one record exists per (student, job, round) tuple; the
// round reference is nil for legacy single-round flows.
type Record struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	JobID     string    `json:"job_id"`
	RoundID   *string   `json:"round_id,omitempty"`
	ScannedAt time.Time `json:"scanned_at"`
	ScannedBy string    `json:"scanned_by"`
	Location  string    `json:"location,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Student is the read-only summary shown to operators after a scan.
type Student struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	USN    string `json:"usn"`
	Branch string `json:"branch"`
}

// Job is the read-only job summary.
type Job struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Company string `json:"company"`
}

// Application links a student to a job. Legacy QR codes carry the
// application id as their whole payload.
type Application struct {
	ID        string `json:"id"`
	StudentID string `json:"student_id"`
	JobID     string `json:"job_id"`
}

// Sentinel errors for the scan/confirm protocol. AlreadyAttended and
// RequireConfirmation are not errors; they are result fields.
var (
	ErrInvalidPayload = errors.New("invalid qr payload")
	ErrExpiredToken   = errors.New("qr token expired or invalid")
	ErrUnknownQR      = errors.New("qr code does not match any application")
	ErrJobMismatch    = errors.New("qr code belongs to a different job")
	ErrRoundMismatch  = errors.New("round does not belong to this job")
	ErrLegacyDisabled = errors.New("legacy qr payloads are disabled")
	ErrInvalidOutcome = errors.New("outcome must be passed or failed")
	ErrNoAttendance   = errors.New("no attendance record for this tuple")
)
