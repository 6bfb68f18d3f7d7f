package auth

import (
	"testing"

	"github.com/google/uuid"

	"github.com/atelier-pos/api/internal/enum"
)

const testSecret = "test-secret"

func TestGenerateAndValidateToken(t *testing.T) {
	userID := uuid.New()
	storeID := uuid.New()

	token, err := GenerateToken(testSecret, userID, storeID, enum.UserRoleVendedor)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	claims, err := ValidateToken(testSecret, token)
	if err != nil {
		t.Fatalf("failed to validate token: %v", err)
	}
	if claims.UserID != userID {
		t.Errorf("user ID: got %s, want %s", claims.UserID, userID)
	}
	if claims.StoreID != storeID {
		t.Errorf("store ID: got %s, want %s", claims.StoreID, storeID)
	}
	if claims.Role != enum.UserRoleVendedor {
		t.Errorf("role: got %s, want %s", claims.Role, enum.UserRoleVendedor)
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, err := GenerateToken(testSecret, uuid.New(), uuid.New(), enum.UserRoleAdmin)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	if _, err := ValidateToken("other-secret", token); err == nil {
		t.Fatal("token signed with another secret should not validate")
	}
}

func TestValidateToken_Garbage(t *testing.T) {
	if _, err := ValidateToken(testSecret, "not.a.jwt"); err == nil {
		t.Fatal("garbage token should not validate")
	}
}

func TestClaimsCapabilities(t *testing.T) {
	admin := &Claims{Role: enum.UserRoleAdmin}
	vendor := &Claims{Role: enum.UserRoleVendedor}

	if !admin.CanAssignOthers() || !admin.CanCrossStores() || !admin.CanManageUsers() {
		t.Error("admin should have all capabilities")
	}
	if vendor.CanAssignOthers() {
		t.Error("vendedor must not assign others")
	}
	if vendor.CanCrossStores() {
		t.Error("vendedor must not cross stores")
	}
	if vendor.CanManageUsers() {
		t.Error("vendedor must not manage users")
	}
}

func TestRefreshTokenSubject(t *testing.T) {
	userID := uuid.New()
	token, err := GenerateRefreshToken(testSecret, userID)
	if err != nil {
		t.Fatalf("failed to generate refresh token: %v", err)
	}
	if token == "" {
		t.Fatal("refresh token is empty")
	}

	// Refresh tokens carry only the user ID; they must not validate as
	// access tokens with store and role claims.
	claims, err := ValidateToken(testSecret, token)
	if err != nil {
		t.Fatalf("refresh token should parse: %v", err)
	}
	if claims.UserID != uuid.Nil {
		t.Error("refresh token should not carry a user_id claim")
	}
	if claims.Subject != userID.String() {
		t.Errorf("subject: got %s, want %s", claims.Subject, userID)
	}
}
