package eligibility

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Checker answers whether a student may sit a given round. The real
// implementation lives in the eligibility engine service; tests and dev
// deployments use Func or the Skip flag.
type Checker interface {
	Eligible(ctx context.Context, studentID, jobID, roundID string) (bool, error)
}

// Func adapts a plain function to the Checker interface.
type Func func(ctx context.Context, studentID, jobID, roundID string) (bool, error)

// Eligible calls f.
func (f Func) Eligible(ctx context.Context, studentID, jobID, roundID string) (bool, error) {
	return f(ctx, studentID, jobID, roundID)
}

// Client calls the eligibility engine over HTTP.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. skip=true admits everyone, for local development
// without the engine running.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Eligible asks the engine whether the student passes the round's
// eligibility predicate.
func (c *Client) Eligible(ctx context.Context, studentID, jobID, roundID string) (bool, error) {
	if c.Skip {
		return true, nil
	}
	if studentID == "" || jobID == "" {
		return false, fmt.Errorf("student and job required")
	}

	body, _ := json.Marshal(map[string]string{
		"student_id": studentID,
		"job_id":     jobID,
		"round_id":   roundID,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/eligibility/check", bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return false, fmt.Errorf("eligibility request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("eligibility service returned %d", resp.StatusCode)
	}

	var out struct {
		Eligible bool `json:"eligible"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("eligibility response decode failed: %w", err)
	}
	return out.Eligible, nil
}

// Health pings the engine.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("eligibility service unhealthy: %d", resp.StatusCode)
	}
	return nil
}
