package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RamyaDR2005/Placement-PROJECT/internal/queue"
)

// Kind identifies what happened.
type Kind string

const (
	KindScanRecorded        Kind = "scan_recorded"
	KindScanConflict        Kind = "scan_conflict"
	KindScanConfirmationReq Kind = "scan_confirmation_required"
	KindScanRejected        Kind = "scan_rejected"
	KindAttendanceConfirmed Kind = "attendance_confirmed"
	KindOutcomeSet          Kind = "outcome_set"
)

// Event is one entry in the append-only security trail.
type Event struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	StudentID  string    `json:"student_id,omitempty"`
	JobID      string    `json:"job_id,omitempty"`
	RoundID    string    `json:"round_id,omitempty"`
	ActorID    string    `json:"actor_id"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Logger records security events. Implementations must never block the
// scan path on sink failures.
type Logger interface {
	Log(ctx context.Context, evt Event)
}

// Recorder is the production Logger: a structured log line for operators
// tailing the service, plus a queue publish for durable persistence by
// the worker.
type Recorder struct {
	log *zap.Logger
	q   queue.Queue
}

// NewRecorder creates a recorder. q may be nil when only the log sink is
// wanted.
func NewRecorder(log *zap.Logger, q queue.Queue) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{log: log, q: q}
}

// Log emits the event to both sinks. Publish failures are logged and
// swallowed; losing an audit row must not fail the attendance write.
func (r *Recorder) Log(ctx context.Context, evt Event) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}

	r.log.Info("security event",
		zap.String("kind", string(evt.Kind)),
		zap.String("student_id", evt.StudentID),
		zap.String("job_id", evt.JobID),
		zap.String("round_id", evt.RoundID),
		zap.String("actor_id", evt.ActorID),
		zap.String("detail", evt.Detail),
		zap.Time("occurred_at", evt.OccurredAt),
	)

	if r.q == nil {
		return
	}
	body, err := json.Marshal(evt)
	if err != nil {
		r.log.Error("audit event marshal failed", zap.Error(err))
		return
	}
	if err := r.q.Publish(ctx, queue.Message{Type: "audit", Body: body}); err != nil {
		r.log.Error("audit event publish failed", zap.Error(err))
	}
}

// Memory collects events in-process; used by tests.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// NewMemory creates an empty in-memory logger.
func NewMemory() *Memory { return &Memory{} }

// Log appends the event.
func (m *Memory) Log(_ context.Context, evt Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	m.events = append(m.events, evt)
}

// Events returns a copy of everything logged so far.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}
