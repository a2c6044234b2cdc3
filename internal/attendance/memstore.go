package attendance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RamyaDR2005/Placement-PROJECT/internal/rounds"
)

// MemoryStore is an in-process Store for dev mode and tests. Its
// CreateIfAbsent holds a single lock across check and insert, giving the
// same exactly-once guarantee the Postgres unique index provides.
type MemoryStore struct {
	mu           sync.Mutex
	records      map[string]Record
	rounds       map[string]rounds.Round
	applications map[string]Application
	students     map[string]Student
	jobs         map[string]Job
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:      make(map[string]Record),
		rounds:       make(map[string]rounds.Round),
		applications: make(map[string]Application),
		students:     make(map[string]Student),
		jobs:         make(map[string]Job),
	}
}

func tupleKey(studentID, jobID string, roundID *string) string {
	rid := "-"
	if roundID != nil {
		rid = *roundID
	}
	return studentID + "|" + jobID + "|" + rid
}

// AddRound seeds a round.
func (m *MemoryStore) AddRound(r rounds.Round) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rounds[r.ID] = r
}

// AddApplication seeds an application.
func (m *MemoryStore) AddApplication(a Application) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applications[a.ID] = a
}

// AddStudent seeds a student summary.
func (m *MemoryStore) AddStudent(s Student) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[s.ID] = s
}

// AddJob seeds a job summary.
func (m *MemoryStore) AddJob(j Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[j.ID] = j
}

// CreateIfAbsent implements the atomic create-if-absent write.
func (m *MemoryStore) CreateIfAbsent(_ context.Context, rec Record) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := tupleKey(rec.StudentID, rec.JobID, rec.RoundID)
	if existing, ok := m.records[key]; ok {
		return existing, false, nil
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.ScannedAt.IsZero() {
		rec.ScannedAt = time.Now().UTC()
	}
	rec.CreatedAt = time.Now().UTC()
	m.records[key] = rec
	return rec, true, nil
}

// GetByTuple returns the record for a tuple, or nil.
func (m *MemoryStore) GetByTuple(_ context.Context, studentID, jobID string, roundID *string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[tupleKey(studentID, jobID, roundID)]; ok {
		return &rec, nil
	}
	return nil, nil
}

// ListByStudentJob returns a student's records for a job.
func (m *MemoryStore) ListByStudentJob(_ context.Context, studentID, jobID string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []Record
	for _, rec := range m.records {
		if rec.StudentID == studentID && rec.JobID == jobID {
			res = append(res, rec)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ScannedAt.Before(res[j].ScannedAt) })
	return res, nil
}

// SetOutcome records an evaluation result.
func (m *MemoryStore) SetOutcome(_ context.Context, studentID, jobID string, roundID *string, outcome string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := tupleKey(studentID, jobID, roundID)
	rec, ok := m.records[key]
	if !ok {
		return false, nil
	}
	rec.Outcome = outcome
	m.records[key] = rec
	return true, nil
}

// GetRound returns a round by id, or nil.
func (m *MemoryStore) GetRound(_ context.Context, id string) (*rounds.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rounds[id]; ok {
		return &r, nil
	}
	return nil, nil
}

// ListRounds returns a job's rounds in pipeline order.
func (m *MemoryStore) ListRounds(_ context.Context, jobID string) ([]rounds.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []rounds.Round
	for _, r := range m.rounds {
		if r.JobID == jobID {
			res = append(res, r)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Order < res[j].Order })
	return res, nil
}

// GetApplication returns an application by id, or nil.
func (m *MemoryStore) GetApplication(_ context.Context, id string) (*Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.applications[id]; ok {
		return &a, nil
	}
	return nil, nil
}

// GetStudent returns a student summary, or nil.
func (m *MemoryStore) GetStudent(_ context.Context, id string) (*Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, nil
}

// GetJob returns a job summary, or nil.
func (m *MemoryStore) GetJob(_ context.Context, id string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		return &j, nil
	}
	return nil, nil
}
