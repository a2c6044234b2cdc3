package qrtoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIssuer() *Issuer {
	return NewIssuer("test-secret", "placement-portal", 5*time.Minute)
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	iss := testIssuer()
	now := time.Now()

	token, err := iss.Issue("stu-1", "job-1", "round-1", "ses-1", now)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	tup, err := iss.Verify(token, now)
	require.NoError(t, err)
	assert.Equal(t, "stu-1", tup.StudentID)
	assert.Equal(t, "job-1", tup.JobID)
	assert.Equal(t, "round-1", tup.RoundID)
	assert.Equal(t, "ses-1", tup.SessionID)
}

func TestVerifyExpiryBoundary(t *testing.T) {
	iss := testIssuer()
	now := time.Now()

	token, err := iss.Issue("stu-1", "job-1", "round-1", "ses-1", now)
	require.NoError(t, err)

	// Just inside the lifetime.
	_, err = iss.Verify(token, now.Add(4*time.Minute+59*time.Second))
	assert.NoError(t, err)

	// Just past it.
	_, err = iss.Verify(token, now.Add(5*time.Minute+time.Second))
	assert.ErrorIs(t, err, ErrExpiredOrInvalid)
}

func TestVerifyTamperedToken(t *testing.T) {
	iss := testIssuer()
	now := time.Now()

	token, err := iss.Issue("stu-1", "job-1", "round-1", "ses-1", now)
	require.NoError(t, err)

	_, err = iss.Verify(token+"x", now)
	assert.ErrorIs(t, err, ErrExpiredOrInvalid)
}

func TestVerifyWrongKeyAndIssuer(t *testing.T) {
	now := time.Now()

	other := NewIssuer("different-secret", "placement-portal", 5*time.Minute)
	token, err := other.Issue("stu-1", "job-1", "round-1", "ses-1", now)
	require.NoError(t, err)

	_, err = testIssuer().Verify(token, now)
	assert.ErrorIs(t, err, ErrExpiredOrInvalid)

	foreign := NewIssuer("test-secret", "some-other-portal", 5*time.Minute)
	token, err = foreign.Issue("stu-1", "job-1", "round-1", "ses-1", now)
	require.NoError(t, err)

	_, err = testIssuer().Verify(token, now)
	assert.ErrorIs(t, err, ErrExpiredOrInvalid)
}

func TestTokensIndependentlyValid(t *testing.T) {
	iss := testIssuer()
	now := time.Now()

	first, err := iss.Issue("stu-1", "job-1", "round-1", "ses-1", now)
	require.NoError(t, err)
	second, err := iss.Issue("stu-1", "job-1", "round-1", "ses-2", now.Add(time.Minute))
	require.NoError(t, err)

	// Issuing a fresh token does not revoke the previous one.
	_, err = iss.Verify(first, now.Add(2*time.Minute))
	assert.NoError(t, err)
	_, err = iss.Verify(second, now.Add(2*time.Minute))
	assert.NoError(t, err)
}

func TestDecodePayload(t *testing.T) {
	iss := testIssuer()
	token, err := iss.Issue("stu-1", "job-1", "round-1", "ses-1", time.Now())
	require.NoError(t, err)

	tests := []struct {
		name    string
		raw     string
		kind    Kind
		wantErr bool
	}{
		{name: "structured token", raw: token, kind: KindToken},
		{name: "legacy application id", raw: "app-42", kind: KindLegacyID},
		{name: "legacy uuid", raw: "8b5c9d52-02b5-4a0e-9a3f-4a1c2c6a7f01", kind: KindLegacyID},
		{name: "whitespace trimmed", raw: "  app-42  ", kind: KindLegacyID},
		{name: "empty", raw: "", wantErr: true},
		{name: "blank", raw: "   ", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := DecodePayload(tc.raw)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPayload)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.kind, p.Kind)
		})
	}
}
