package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestStateSigner_IssueAndValidate(t *testing.T) {
	signer := NewStateSigner(testSecret, 10*time.Minute)

	state, err := signer.Issue()
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if strings.Count(state, ".") != 2 {
		t.Errorf("state should be a compact JWT, got %q", state)
	}
	if err := signer.Validate(state); err != nil {
		t.Errorf("Validate returned error: %v", err)
	}
}

func TestStateSigner_IssuesUniqueStates(t *testing.T) {
	signer := NewStateSigner(testSecret, 10*time.Minute)

	a, _ := signer.Issue()
	b, _ := signer.Issue()
	if a == b {
		t.Error("consecutive states should differ")
	}
}

func TestStateSigner_Validate_Rejects(t *testing.T) {
	signer := NewStateSigner(testSecret, 10*time.Minute)

	past := NewStateSigner(testSecret, 10*time.Minute)
	past.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, _ := past.Issue()

	otherKey, _ := NewStateSigner("different-secret", 10*time.Minute).Issue()

	wrongIssuer, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte(testSecret))

	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer: stateIssuer,
	}).SignedString([]byte(testSecret))

	unsigned, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer:    stateIssuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := map[string]string{
		"空文字":     "",
		"期限切れ":    expired,
		"別の鍵で署名":  otherKey,
		"発行者が異なる": wrongIssuer,
		"有効期限なし":  noExpiry,
		"署名なし":    unsigned,
		"JWTでない":  "plain-random-state",
	}

	for name, state := range tests {
		t.Run(name, func(t *testing.T) {
			if err := signer.Validate(state); !errors.Is(err, ErrInvalidState) {
				t.Errorf("err = %v, want ErrInvalidState", err)
			}
		})
	}
}
