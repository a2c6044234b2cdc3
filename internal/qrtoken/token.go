package qrtoken

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrExpiredOrInvalid covers bad signatures, wrong issuers, and
	// expired tokens alike; callers get no hint which check failed.
	ErrExpiredOrInvalid = errors.New("qr token expired or invalid")

	// ErrInvalidPayload means the scanned text is unusable as either a
	// signed token or a legacy identifier.
	ErrInvalidPayload = errors.New("unreadable qr payload")
)

// Tuple is the identity a QR token binds together.
type Tuple struct {
	StudentID string
	JobID     string
	RoundID   string
	SessionID string
}

// Claims is the JWT payload rendered into the student's QR code.
type Claims struct {
	StudentID string `json:"sid"`
	JobID     string `json:"jid"`
	RoundID   string `json:"rid,omitempty"`
	SessionID string `json:"ses"`
	jwt.RegisteredClaims
}

// Issuer mints and verifies the short-lived QR tokens. It performs no
// authorization: callers must have checked round state and eligibility
// before asking for a token.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewIssuer creates an issuer. ttl <= 0 falls back to the 5 minute
// lifetime the client-side refresh loop is tuned against.
func NewIssuer(secret, issuer string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Issuer{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

// TTL reports the configured token lifetime.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Issue signs a token for the tuple. Tokens issued for the same tuple at
// different times are each valid until their own expiry; attendance
// uniqueness is enforced at write time, not here.
func (i *Issuer) Issue(studentID, jobID, roundID, sessionID string, now time.Time) (string, error) {
	if studentID == "" || jobID == "" {
		return "", errors.New("student and job required")
	}
	claims := Claims{
		StudentID: studentID,
		JobID:     jobID,
		RoundID:   roundID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   studentID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Verify checks signature, issuer, and expiry against the supplied clock
// and returns the embedded tuple. Any failure maps to ErrExpiredOrInvalid.
func (i *Issuer) Verify(token string, now time.Time) (Tuple, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil {
		return Tuple{}, ErrExpiredOrInvalid
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Tuple{}, ErrExpiredOrInvalid
	}
	if i.issuer != "" && claims.Issuer != i.issuer {
		return Tuple{}, ErrExpiredOrInvalid
	}
	if claims.StudentID == "" || claims.JobID == "" {
		return Tuple{}, ErrExpiredOrInvalid
	}
	return Tuple{
		StudentID: claims.StudentID,
		JobID:     claims.JobID,
		RoundID:   claims.RoundID,
		SessionID: claims.SessionID,
	}, nil
}

// Kind classifies what an operator's scanner decoded.
type Kind int

const (
	// KindToken is a signed structured token.
	KindToken Kind = iota
	// KindLegacyID is a bare application identifier from pre-token QR
	// codes; it carries no signature and must go through confirmation.
	KindLegacyID
)

// Payload is a classified raw scan.
type Payload struct {
	Kind Kind
	Raw  string
}

// DecodePayload classifies raw scanned text. Three base64url segments
// separated by dots is a structured token; anything else non-empty is
// treated as a legacy identifier.
func DecodePayload(raw string) (Payload, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Payload{}, ErrInvalidPayload
	}
	parts := strings.Split(raw, ".")
	if len(parts) == 3 && base64urlish(parts[0]) && base64urlish(parts[1]) && base64urlish(parts[2]) {
		return Payload{Kind: KindToken, Raw: raw}, nil
	}
	return Payload{Kind: KindLegacyID, Raw: raw}, nil
}

func base64urlish(s string) bool {
	if s == "" {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(s)
	return err == nil
}
