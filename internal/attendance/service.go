package attendance

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/RamyaDR2005/Placement-PROJECT/internal/audit"
	"github.com/RamyaDR2005/Placement-PROJECT/internal/eligibility"
	"github.com/RamyaDR2005/Placement-PROJECT/internal/qrtoken"
	"github.com/RamyaDR2005/Placement-PROJECT/internal/rounds"
)

// Store is what the service needs from persistence. Repository and
// MemoryStore both implement it.
type Store interface {
	CreateIfAbsent(ctx context.Context, rec Record) (Record, bool, error)
	GetByTuple(ctx context.Context, studentID, jobID string, roundID *string) (*Record, error)
	ListByStudentJob(ctx context.Context, studentID, jobID string) ([]Record, error)
	SetOutcome(ctx context.Context, studentID, jobID string, roundID *string, outcome string) (bool, error)
	GetRound(ctx context.Context, id string) (*rounds.Round, error)
	ListRounds(ctx context.Context, jobID string) ([]rounds.Round, error)
	GetApplication(ctx context.Context, id string) (*Application, error)
	GetStudent(ctx context.Context, id string) (*Student, error)
	GetJob(ctx context.Context, id string) (*Job, error)
}

// OperatorRef is the authenticated operator performing a scan or confirm.
// It is passed explicitly; the service reads no ambient session state.
type OperatorRef struct {
	ID string
}

// ScanInput is a decoded QR payload plus the operator's optional filters.
type ScanInput struct {
	QRPayload string
	JobFilter string
	Location  string
}

// Tuple identifies an attendance write target. RoundID is nil for legacy
// single-round flows.
type Tuple struct {
	StudentID string  `json:"student_id"`
	JobID     string  `json:"job_id"`
	RoundID   *string `json:"round_id,omitempty"`
}

// ScanResult is the outcome of a scan or confirm. Exactly one of the
// plain-success, AlreadyAttended, and RequireConfirmation shapes applies.
type ScanResult struct {
	Student             *Student      `json:"student,omitempty"`
	Job                 *Job          `json:"job,omitempty"`
	Round               *rounds.Round `json:"round,omitempty"`
	ScannedAt           time.Time     `json:"scanned_at"`
	AlreadyAttended     bool          `json:"already_attended,omitempty"`
	RequireConfirmation bool          `json:"require_confirmation,omitempty"`
	Candidate           *Tuple        `json:"candidate,omitempty"`
}

// ConfirmInput is the exact tuple returned by a confirmation-required
// scan. It is re-verified server side; free-form operator input is never
// trusted.
type ConfirmInput struct {
	StudentID string
	JobID     string
	RoundID   *string
	Location  string
}

// RoundStatusView is one row of the student-facing status projection.
type RoundStatusView struct {
	Round      rounds.Round  `json:"round"`
	Status     rounds.Status `json:"status"`
	QRToken    string        `json:"qr_token,omitempty"`
	Attendance *rounds.Fact  `json:"attendance,omitempty"`
}

// Service implements the scan/confirm protocol and the round status
// projection over an atomic attendance store.
type Service struct {
	store    Store
	tokens   *qrtoken.Issuer
	elig     eligibility.Checker
	audit    audit.Logger
	legacyQR bool
	now      func() time.Time
}

// NewService wires the service. legacyQR governs whether bare-identifier
// payloads are accepted at all.
func NewService(store Store, tokens *qrtoken.Issuer, elig eligibility.Checker, auditLog audit.Logger, legacyQR bool) *Service {
	return &Service{
		store:    store,
		tokens:   tokens,
		elig:     elig,
		audit:    auditLog,
		legacyQR: legacyQR,
		now:      time.Now,
	}
}

// Scan processes a decoded QR payload from an operator device. Structured
// tokens are verified and written directly; legacy bare identifiers are
// resolved to a candidate tuple and deferred to Confirm.
func (s *Service) Scan(ctx context.Context, op OperatorRef, in ScanInput) (ScanResult, error) {
	payload, err := qrtoken.DecodePayload(in.QRPayload)
	if err != nil {
		// Unparseable payloads are logged at request level only; no
		// audit row.
		return ScanResult{}, ErrInvalidPayload
	}
	if payload.Kind == qrtoken.KindToken {
		return s.scanToken(ctx, op, payload.Raw, in)
	}
	return s.scanLegacy(ctx, op, payload.Raw, in)
}

func (s *Service) scanToken(ctx context.Context, op OperatorRef, raw string, in ScanInput) (ScanResult, error) {
	tup, err := s.tokens.Verify(raw, s.now())
	if err != nil {
		s.reject(ctx, op, "", "", "", "expired or invalid token")
		return ScanResult{}, ErrExpiredToken
	}

	if in.JobFilter != "" && in.JobFilter != tup.JobID {
		s.reject(ctx, op, tup.StudentID, tup.JobID, tup.RoundID, "job filter mismatch")
		return ScanResult{}, ErrJobMismatch
	}

	var round *rounds.Round
	var roundID *string
	if tup.RoundID != "" {
		r, err := s.store.GetRound(ctx, tup.RoundID)
		if err != nil {
			return ScanResult{}, err
		}
		if r == nil || r.JobID != tup.JobID {
			s.reject(ctx, op, tup.StudentID, tup.JobID, tup.RoundID, "round mismatch")
			return ScanResult{}, ErrRoundMismatch
		}
		round = r
		roundID = &r.ID
	}

	return s.write(ctx, op, Tuple{StudentID: tup.StudentID, JobID: tup.JobID, RoundID: roundID}, round, in.Location, audit.KindScanRecorded)
}

func (s *Service) scanLegacy(ctx context.Context, op OperatorRef, raw string, in ScanInput) (ScanResult, error) {
	if !s.legacyQR {
		s.reject(ctx, op, "", "", "", "legacy payload disabled")
		return ScanResult{}, ErrLegacyDisabled
	}

	app, err := s.store.GetApplication(ctx, raw)
	if err != nil {
		return ScanResult{}, err
	}
	if app == nil {
		s.reject(ctx, op, "", "", "", "unknown application id")
		return ScanResult{}, ErrUnknownQR
	}
	if in.JobFilter != "" && in.JobFilter != app.JobID {
		s.reject(ctx, op, app.StudentID, app.JobID, "", "job filter mismatch")
		return ScanResult{}, ErrJobMismatch
	}

	// A bare identifier carries no signature and no round context, so
	// the write is always deferred to an explicit operator confirm. The
	// proposed round is the first open one the student can still sit.
	candidate, round, err := s.candidateRound(ctx, app.StudentID, app.JobID)
	if err != nil {
		return ScanResult{}, err
	}

	res := ScanResult{
		RequireConfirmation: true,
		Candidate:           &Tuple{StudentID: app.StudentID, JobID: app.JobID, RoundID: candidate},
		Round:               round,
	}
	s.attachSummaries(ctx, &res, app.StudentID, app.JobID)

	roundRef := ""
	if candidate != nil {
		roundRef = *candidate
	}
	s.audit.Log(ctx, audit.Event{
		Kind:      audit.KindScanConfirmationReq,
		StudentID: app.StudentID,
		JobID:     app.JobID,
		RoundID:   roundRef,
		ActorID:   op.ID,
		Detail:    "legacy payload",
	})
	scanOutcomes.WithLabelValues("confirmation_required").Inc()
	return res, nil
}

// candidateRound picks the lowest-order ACTIVE round the student is
// eligible for and has not attended. nil means the legacy single-round
// flow (no round reference on the record).
func (s *Service) candidateRound(ctx context.Context, studentID, jobID string) (*string, *rounds.Round, error) {
	list, err := s.store.ListRounds(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	recs, err := s.store.ListByStudentJob(ctx, studentID, jobID)
	if err != nil {
		return nil, nil, err
	}
	attended := make(map[string]bool, len(recs))
	for _, rec := range recs {
		if rec.RoundID != nil {
			attended[*rec.RoundID] = true
		}
	}
	for i := range list {
		r := list[i]
		if r.State != rounds.StateActive || attended[r.ID] {
			continue
		}
		ok, err := s.elig.Eligible(ctx, studentID, jobID, r.ID)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			return &r.ID, &r, nil
		}
	}
	return nil, nil, nil
}

// Confirm completes a two-phase scan. It re-performs the same atomic
// write; a second confirm for the same tuple observes AlreadyAttended.
// Round administrative state is deliberately not checked: attendance
// facts outlive PERM_CLOSED.
func (s *Service) Confirm(ctx context.Context, op OperatorRef, in ConfirmInput) (ScanResult, error) {
	if in.StudentID == "" || in.JobID == "" {
		return ScanResult{}, ErrInvalidPayload
	}
	var round *rounds.Round
	if in.RoundID != nil {
		r, err := s.store.GetRound(ctx, *in.RoundID)
		if err != nil {
			return ScanResult{}, err
		}
		if r == nil || r.JobID != in.JobID {
			s.reject(ctx, op, in.StudentID, in.JobID, deref(in.RoundID), "round mismatch on confirm")
			return ScanResult{}, ErrRoundMismatch
		}
		round = r
	}
	return s.write(ctx, op, Tuple{StudentID: in.StudentID, JobID: in.JobID, RoundID: in.RoundID}, round, in.Location, audit.KindAttendanceConfirmed)
}

// write performs the single concurrency-critical operation: the atomic
// create-if-absent on the attendance store.
func (s *Service) write(ctx context.Context, op OperatorRef, tup Tuple, round *rounds.Round, location string, successKind audit.Kind) (ScanResult, error) {
	rec := Record{
		ID:        uuid.NewString(),
		StudentID: tup.StudentID,
		JobID:     tup.JobID,
		RoundID:   tup.RoundID,
		ScannedAt: s.now().UTC(),
		ScannedBy: op.ID,
		Location:  location,
	}
	stored, created, err := s.store.CreateIfAbsent(ctx, rec)
	if err != nil {
		// Transient storage failure; must never surface as a conflict.
		return ScanResult{}, err
	}

	res := ScanResult{Round: round, ScannedAt: stored.ScannedAt}
	s.attachSummaries(ctx, &res, tup.StudentID, tup.JobID)

	evt := audit.Event{
		StudentID: tup.StudentID,
		JobID:     tup.JobID,
		RoundID:   deref(tup.RoundID),
		ActorID:   op.ID,
	}
	if created {
		evt.Kind = successKind
		s.audit.Log(ctx, evt)
		scanOutcomes.WithLabelValues("recorded").Inc()
		return res, nil
	}

	res.AlreadyAttended = true
	evt.Kind = audit.KindScanConflict
	evt.Detail = "duplicate scan"
	s.audit.Log(ctx, evt)
	scanOutcomes.WithLabelValues("conflict").Inc()
	return res, nil
}

// SetOutcome records the evaluation result on an existing attendance
// record. It never creates records.
func (s *Service) SetOutcome(ctx context.Context, op OperatorRef, studentID, jobID string, roundID *string, outcome string) error {
	if outcome != rounds.OutcomePassed && outcome != rounds.OutcomeFailed {
		return ErrInvalidOutcome
	}
	updated, err := s.store.SetOutcome(ctx, studentID, jobID, roundID, outcome)
	if err != nil {
		return err
	}
	if !updated {
		return ErrNoAttendance
	}
	s.audit.Log(ctx, audit.Event{
		Kind:      audit.KindOutcomeSet,
		StudentID: studentID,
		JobID:     jobID,
		RoundID:   deref(roundID),
		ActorID:   op.ID,
		Detail:    outcome,
	})
	return nil
}

// RoundStatuses computes the per-round status projection for one student
// and job, minting a fresh token for every ACTIVE round. The projection
// is recomputed on every call and never stored.
func (s *Service) RoundStatuses(ctx context.Context, studentID, jobID string) ([]RoundStatusView, error) {
	list, err := s.store.ListRounds(ctx, jobID)
	if err != nil {
		return nil, err
	}
	recs, err := s.store.ListByStudentJob(ctx, studentID, jobID)
	if err != nil {
		return nil, err
	}
	facts := make(map[string]*rounds.Fact, len(recs))
	for i := range recs {
		rec := recs[i]
		if rec.RoundID == nil {
			continue
		}
		facts[*rec.RoundID] = &rounds.Fact{MarkedAt: rec.ScannedAt, Outcome: rec.Outcome}
	}

	sessionID := uuid.NewString()
	now := s.now()
	views := make([]RoundStatusView, 0, len(list))
	for _, r := range list {
		eligible, err := s.elig.Eligible(ctx, studentID, jobID, r.ID)
		if err != nil {
			return nil, err
		}
		fact := facts[r.ID]
		view := RoundStatusView{
			Round:      r,
			Status:     rounds.Resolve(r, eligible, fact),
			Attendance: fact,
		}
		if view.Status == rounds.StatusActive {
			token, err := s.tokens.Issue(studentID, jobID, r.ID, sessionID, now)
			if err != nil {
				return nil, err
			}
			view.QRToken = token
		}
		views = append(views, view)
	}
	return views, nil
}

// attachSummaries fills student and job summaries best-effort; a summary
// lookup failure never undoes or hides a completed write.
func (s *Service) attachSummaries(ctx context.Context, res *ScanResult, studentID, jobID string) {
	if st, err := s.store.GetStudent(ctx, studentID); err == nil && st != nil {
		res.Student = st
	}
	if j, err := s.store.GetJob(ctx, jobID); err == nil && j != nil {
		res.Job = j
	}
}

func (s *Service) reject(ctx context.Context, op OperatorRef, studentID, jobID, roundID, detail string) {
	s.audit.Log(ctx, audit.Event{
		Kind:      audit.KindScanRejected,
		StudentID: studentID,
		JobID:     jobID,
		RoundID:   roundID,
		ActorID:   op.ID,
		Detail:    detail,
	})
	scanOutcomes.WithLabelValues("rejected").Inc()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
