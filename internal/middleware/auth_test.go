package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/atelier-pos/api/internal/auth"
	"github.com/atelier-pos/api/internal/enum"
	"github.com/atelier-pos/api/internal/middleware"
)

const testSecret = "test-secret"

func okHandler(t *testing.T, wantUserID uuid.UUID) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := middleware.ClaimsFromContext(r.Context())
		if claims == nil {
			t.Error("claims missing from context")
		} else if claims.UserID != wantUserID {
			t.Errorf("user ID: got %s, want %s", claims.UserID, wantUserID)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticate_ValidToken(t *testing.T) {
	userID := uuid.New()
	token, err := auth.GenerateToken(testSecret, userID, uuid.New(), enum.UserRoleVendedor)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	h := middleware.Authenticate(testSecret)(okHandler(t, userID))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rr.Code)
	}
}

func TestAuthenticate_MissingHeader(t *testing.T) {
	h := middleware.Authenticate(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rr.Code)
	}

	// Clients render the message field of error bodies.
	var body map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if body["message"] != "missing authorization header" {
		t.Errorf("message: got %q, want 'missing authorization header'", body["message"])
	}
}

func TestAuthenticate_MalformedHeader(t *testing.T) {
	h := middleware.Authenticate(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	for _, header := range []string{"token-without-scheme", "Basic abc123"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("header %q: got %d, want 401", header, rr.Code)
		}
	}
}

func TestAuthenticate_InvalidToken(t *testing.T) {
	token, err := auth.GenerateToken("other-secret", uuid.New(), uuid.New(), enum.UserRoleVendedor)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	h := middleware.Authenticate(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rr.Code)
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name     string
		role     string
		required string
		wantCode int
	}{
		{"admin allowed", enum.UserRoleAdmin, enum.UserRoleAdmin, http.StatusOK},
		{"vendedor denied admin route", enum.UserRoleVendedor, enum.UserRoleAdmin, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := auth.GenerateToken(testSecret, uuid.New(), uuid.New(), tt.role)
			if err != nil {
				t.Fatalf("failed to generate token: %v", err)
			}

			inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			h := middleware.Authenticate(testSecret)(middleware.RequireRole(tt.required)(inner))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tt.wantCode {
				t.Errorf("status: got %d, want %d", rr.Code, tt.wantCode)
			}
		})
	}
}

func TestRequireRole_NoClaims(t *testing.T) {
	h := middleware.RequireRole(enum.UserRoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rr.Code)
	}
}
