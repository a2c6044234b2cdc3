package rounds

import "time"

// State is a round's activation state, toggled only by admin operators.
type State string

const (
	StateInactive   State = "INACTIVE"
	StateActive     State = "ACTIVE"
	StateTempClosed State = "TEMP_CLOSED"
	StatePermClosed State = "PERM_CLOSED"
)

// Round is one ordered stage of a job's selection pipeline.
type Round struct {
	ID    string `json:"id"`
	JobID string `json:"job_id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
	State State  `json:"state"`
}

// Status is the student-facing status of a round.
type Status string

const (
	StatusNotEligible    Status = "NOT_ELIGIBLE"
	StatusNotStarted     Status = "NOT_STARTED"
	StatusActive         Status = "ACTIVE"
	StatusTempClosed     Status = "TEMP_CLOSED"
	StatusPermClosed     Status = "PERM_CLOSED"
	StatusAttended       Status = "ATTENDED_ATTENDED"
	StatusAttendedPassed Status = "ATTENDED_PASSED"
	StatusAttendedFailed Status = "ATTENDED_FAILED"
)

// Outcome values recorded against an attendance fact by the evaluation
// step. The empty string means not yet evaluated.
const (
	OutcomePassed = "passed"
	OutcomeFailed = "failed"
)

// Fact is the attendance fact a resolver input carries: the student was
// scanned present, with an outcome set later.
type Fact struct {
	MarkedAt time.Time `json:"marked_at"`
	Outcome  string    `json:"outcome,omitempty"`
}

// Resolve derives a round's status for one student. An attendance fact
// always wins over activation state: a closed round with a prior scan
// still reports the attendance outcome. Eligibility is checked next, and
// only then does the round's own state matter.
func Resolve(r Round, eligible bool, att *Fact) Status {
	if att != nil {
		switch att.Outcome {
		case OutcomePassed:
			return StatusAttendedPassed
		case OutcomeFailed:
			return StatusAttendedFailed
		default:
			return StatusAttended
		}
	}
	if !eligible {
		return StatusNotEligible
	}
	switch r.State {
	case StateActive:
		return StatusActive
	case StateTempClosed:
		return StatusTempClosed
	case StatePermClosed:
		return StatusPermClosed
	default:
		return StatusNotStarted
	}
}
