package receipt

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestIssueAndVerify(t *testing.T) {
	t.Parallel()

	issuer, err := NewIssuer(testSecret)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	orderID := uuid.New()

	token, err := issuer.Issue(orderID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	got, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got != orderID {
		t.Fatalf("expected %s, got %s", orderID, got)
	}
}

func TestVerifyRejects(t *testing.T) {
	t.Parallel()

	issuer, _ := NewIssuer(testSecret)
	other, _ := NewIssuer(strings.Repeat("x", 32))
	orderID := uuid.New()

	signedByOther, _ := other.Issue(orderID)

	expiredIssuer, _ := NewIssuer(testSecret)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-31 * 24 * time.Hour) }
	expired, _ := expiredIssuer.Issue(orderID)

	noneToken, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:  orderID.String(),
		Issuer:   tokenIssuer,
		Audience: jwt.ClaimStrings{audience},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-token"},
		{name: "other secret", token: signedByOther},
		{name: "expired", token: expired},
		{name: "alg none", token: noneToken},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := issuer.Verify(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestNewIssuerRequiresLongSecret(t *testing.T) {
	t.Parallel()

	if _, err := NewIssuer("short"); err == nil {
		t.Fatalf("expected error for short secret")
	}
}
