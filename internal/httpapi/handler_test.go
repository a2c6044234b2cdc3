package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RamyaDR2005/Placement-PROJECT/internal/attendance"
	"github.com/RamyaDR2005/Placement-PROJECT/internal/audit"
	"github.com/RamyaDR2005/Placement-PROJECT/internal/auth"
	"github.com/RamyaDR2005/Placement-PROJECT/internal/eligibility"
	"github.com/RamyaDR2005/Placement-PROJECT/internal/qrtoken"
	"github.com/RamyaDR2005/Placement-PROJECT/internal/rounds"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router *gin.Engine
	store  *attendance.MemoryStore
	issuer *qrtoken.Issuer
}

// stubIdentity plays the role of the auth middleware in tests.
func stubIdentity(subject, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("claims", auth.Claims{Subject: subject, Role: role})
		c.Next()
	}
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	st := attendance.NewMemoryStore()
	st.AddStudent(attendance.Student{ID: "stu-1", Name: "Ramya D R", Email: "ramya@example.edu", USN: "1XX21CS001", Branch: "CSE"})
	st.AddJob(attendance.Job{ID: "job-1", Title: "SDE Intern", Company: "Initech"})
	st.AddApplication(attendance.Application{ID: "app-1", StudentID: "stu-1", JobID: "job-1"})
	st.AddRound(rounds.Round{ID: "round-1", JobID: "job-1", Name: "Aptitude Test", Order: 1, State: rounds.StateActive})

	iss := qrtoken.NewIssuer("test-secret", "placement-portal", 5*time.Minute)
	allowAll := eligibility.Func(func(context.Context, string, string, string) (bool, error) { return true, nil })
	svc := attendance.NewService(st, iss, allowAll, audit.NewMemory(), true)
	h := New(svc)

	r := gin.New()
	r.GET("/v1/jobs/:jobID/rounds/status", stubIdentity("stu-1", auth.RoleStudent), h.RoundStatus)
	r.POST("/v1/attendance/scan", stubIdentity("op-1", auth.RoleOperator), h.Scan)
	r.POST("/v1/attendance/confirm", stubIdentity("op-1", auth.RoleOperator), h.Confirm)
	r.POST("/v1/attendance/outcome", stubIdentity("op-1", auth.RoleOperator), h.Outcome)

	return &testEnv{router: r, store: st, issuer: iss}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestScanEndpointSuccessThenConflict(t *testing.T) {
	env := newEnv(t)
	token, err := env.issuer.Issue("stu-1", "job-1", "round-1", "ses-1", time.Now())
	require.NoError(t, err)

	w := env.do(t, http.MethodPost, "/v1/attendance/scan", gin.H{"qrPayload": token, "location": "Hall A"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["scannedAt"])
	student, ok := body["student"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Ramya D R", student["name"])

	w = env.do(t, http.MethodPost, "/v1/attendance/scan", gin.H{"qrPayload": token})
	require.Equal(t, http.StatusConflict, w.Code)
	body = decode(t, w)
	assert.Equal(t, true, body["alreadyAttended"])
}

func TestScanEndpointExpiredToken(t *testing.T) {
	env := newEnv(t)
	token, err := env.issuer.Issue("stu-1", "job-1", "round-1", "ses-1", time.Now().Add(-10*time.Minute))
	require.NoError(t, err)

	w := env.do(t, http.MethodPost, "/v1/attendance/scan", gin.H{"qrPayload": token})
	assert.Equal(t, http.StatusGone, w.Code)
}

func TestScanEndpointJobFilterMismatch(t *testing.T) {
	env := newEnv(t)
	token, err := env.issuer.Issue("stu-1", "job-1", "round-1", "ses-1", time.Now())
	require.NoError(t, err)

	w := env.do(t, http.MethodPost, "/v1/attendance/scan", gin.H{"qrPayload": token, "jobId": "job-2"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScanEndpointLegacyConfirmFlow(t *testing.T) {
	env := newEnv(t)

	w := env.do(t, http.MethodPost, "/v1/attendance/scan", gin.H{"qrPayload": "app-1"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["requireConfirmation"])
	candidate, ok := body["candidate"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "stu-1", candidate["student_id"])
	assert.Equal(t, "job-1", candidate["job_id"])
	assert.Equal(t, "round-1", candidate["round_id"])

	// Post the tuple back exactly as returned.
	w = env.do(t, http.MethodPost, "/v1/attendance/confirm", gin.H{
		"studentId": candidate["student_id"],
		"jobId":     candidate["job_id"],
		"roundId":   candidate["round_id"],
	})
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["markedAt"])

	// Second confirm is a conflict, not a duplicate.
	w = env.do(t, http.MethodPost, "/v1/attendance/confirm", gin.H{
		"studentId": candidate["student_id"],
		"jobId":     candidate["job_id"],
		"roundId":   candidate["round_id"],
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestScanEndpointUnknownLegacyID(t *testing.T) {
	env := newEnv(t)

	w := env.do(t, http.MethodPost, "/v1/attendance/scan", gin.H{"qrPayload": "no-such-app"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoundStatusEndpoint(t *testing.T) {
	env := newEnv(t)

	w := env.do(t, http.MethodGet, "/v1/jobs/job-1/rounds/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	list, ok := body["rounds"].([]any)
	require.True(t, ok)
	require.Len(t, list, 1)

	row := list[0].(map[string]any)
	assert.Equal(t, "round-1", row["roundId"])
	assert.Equal(t, string(rounds.StatusActive), row["status"])
	assert.NotEmpty(t, row["qrToken"])

	// The embedded token must scan cleanly.
	tokenStr, _ := row["qrToken"].(string)
	tup, err := env.issuer.Verify(tokenStr, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "stu-1", tup.StudentID)
}

func TestOutcomeEndpoint(t *testing.T) {
	env := newEnv(t)
	token, err := env.issuer.Issue("stu-1", "job-1", "round-1", "ses-1", time.Now())
	require.NoError(t, err)
	w := env.do(t, http.MethodPost, "/v1/attendance/scan", gin.H{"qrPayload": token})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/v1/attendance/outcome", gin.H{
		"studentId": "stu-1", "jobId": "job-1", "roundId": "round-1", "outcome": "passed",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/v1/attendance/outcome", gin.H{
		"studentId": "stu-1", "jobId": "job-1", "roundId": "round-1", "outcome": "maybe",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/v1/attendance/outcome", gin.H{
		"studentId": "stu-9", "jobId": "job-1", "roundId": "round-1", "outcome": "failed",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
