package auth

import (
	"testing"

	"github.com/spec-kit/tracker-service/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", 60)

	clientID := "client-1"
	token, expiresAt, err := tm.GenerateToken(Principal{
		UserID:   "user-1",
		TenantID: "tenant-1",
		Role:     domain.RoleClient,
		ClientID: &clientID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if expiresAt.IsZero() {
		t.Error("expiry not set")
	}

	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != "user-1" || claims.TenantID != "tenant-1" {
		t.Errorf("claims = %+v", claims)
	}
	if claims.Internal {
		t.Error("internal flag must default false")
	}
	if claims.Role != domain.RoleClient {
		t.Errorf("role = %s, want client", claims.Role)
	}
	if claims.ClientID == nil || *claims.ClientID != clientID {
		t.Errorf("client id = %v, want %s", claims.ClientID, clientID)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	issued := NewTokenManager("secret-a", 60)
	token, _, err := issued.GenerateToken(Principal{UserID: "user-1", TenantID: "tenant-1", Internal: true, Role: domain.RoleAgent})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := NewTokenManager("secret-b", 60).ParseToken(token); err == nil {
		t.Error("token signed with another secret accepted")
	}
	if _, err := issued.ParseToken("not-a-token"); err == nil {
		t.Error("malformed token accepted")
	}
}
