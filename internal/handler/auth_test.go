package handler_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/crypto/bcrypt"

	"github.com/atelier-pos/api/internal/auth"
	"github.com/atelier-pos/api/internal/database"
	"github.com/atelier-pos/api/internal/enum"
	"github.com/atelier-pos/api/internal/handler"
)

type mockAuthStore struct {
	getUserByEmailFn       func(ctx context.Context, email string) (database.User, error)
	getUserByStoreAndPinFn func(ctx context.Context, arg database.GetUserByStoreAndPinParams) (database.User, error)
	getUserByIDFn          func(ctx context.Context, id uuid.UUID) (database.User, error)
}

func (m *mockAuthStore) GetUserByEmail(ctx context.Context, email string) (database.User, error) {
	if m.getUserByEmailFn != nil {
		return m.getUserByEmailFn(ctx, email)
	}
	return database.User{}, pgx.ErrNoRows
}
func (m *mockAuthStore) GetUserByStoreAndPin(ctx context.Context, arg database.GetUserByStoreAndPinParams) (database.User, error) {
	if m.getUserByStoreAndPinFn != nil {
		return m.getUserByStoreAndPinFn(ctx, arg)
	}
	return database.User{}, pgx.ErrNoRows
}
func (m *mockAuthStore) GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error) {
	if m.getUserByIDFn != nil {
		return m.getUserByIDFn(ctx, id)
	}
	return database.User{}, pgx.ErrNoRows
}

func newAuthRouter(store *mockAuthStore) http.Handler {
	r := chi.NewRouter()
	h := handler.NewAuthHandler(store, testJWTSecret)
	h.RegisterRoutes(r)
	return r
}

func testUser(t *testing.T, password string) database.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	return database.User{
		ID:             uuid.New(),
		StoreID:        uuid.New(),
		Email:          "lupita@atelier.mx",
		HashedPassword: string(hashed),
		FullName:       "Lupita Hernández",
		Role:           enum.UserRoleVendedor,
		IsActive:       true,
	}
}

func TestLogin_Success(t *testing.T) {
	user := testUser(t, "secret123")
	store := &mockAuthStore{
		getUserByEmailFn: func(ctx context.Context, email string) (database.User, error) {
			if email == user.Email {
				return user, nil
			}
			return database.User{}, pgx.ErrNoRows
		},
	}
	router := newAuthRouter(store)

	body := `{"email": "lupita@atelier.mx", "password": "secret123"}`
	rr := doRequest(t, router, http.MethodPost, "/auth/login", strings.NewReader(body))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (body: %s)", rr.Code, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	accessToken, _ := resp["access_token"].(string)
	if accessToken == "" {
		t.Fatal("access_token missing")
	}
	if resp["refresh_token"] == "" {
		t.Fatal("refresh_token missing")
	}

	claims, err := auth.ValidateToken(testJWTSecret, accessToken)
	if err != nil {
		t.Fatalf("access token should validate: %v", err)
	}
	if claims.UserID != user.ID {
		t.Errorf("token user: got %s, want %s", claims.UserID, user.ID)
	}
	if claims.StoreID != user.StoreID {
		t.Errorf("token store: got %s, want %s", claims.StoreID, user.StoreID)
	}

	respUser, ok := resp["user"].(map[string]interface{})
	if !ok {
		t.Fatalf("user missing from response: %v", resp)
	}
	if respUser["nombre_completo"] != "Lupita Hernández" {
		t.Errorf("nombre_completo: got %v", respUser["nombre_completo"])
	}
	if respUser["rol"] != enum.UserRoleVendedor {
		t.Errorf("rol: got %v, want %s", respUser["rol"], enum.UserRoleVendedor)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	user := testUser(t, "secret123")
	store := &mockAuthStore{
		getUserByEmailFn: func(ctx context.Context, email string) (database.User, error) {
			return user, nil
		},
	}
	router := newAuthRouter(store)

	body := `{"email": "lupita@atelier.mx", "password": "wrong"}`
	rr := doRequest(t, router, http.MethodPost, "/auth/login", strings.NewReader(body))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rr.Code)
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	router := newAuthRouter(&mockAuthStore{})

	body := `{"email": "nadie@atelier.mx", "password": "secret123"}`
	rr := doRequest(t, router, http.MethodPost, "/auth/login", strings.NewReader(body))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rr.Code)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	router := newAuthRouter(&mockAuthStore{})

	for _, body := range []string{
		`{"email": "lupita@atelier.mx"}`,
		`{"password": "secret123"}`,
		`{}`,
	} {
		rr := doRequest(t, router, http.MethodPost, "/auth/login", strings.NewReader(body))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %s: got %d, want 400", body, rr.Code)
		}
	}
}

func TestPinLogin_Success(t *testing.T) {
	user := testUser(t, "unused")
	user.Pin = pgtype.Text{String: "4321", Valid: true}

	var gotParams database.GetUserByStoreAndPinParams
	store := &mockAuthStore{
		getUserByStoreAndPinFn: func(ctx context.Context, arg database.GetUserByStoreAndPinParams) (database.User, error) {
			gotParams = arg
			if arg.StoreID == user.StoreID && arg.Pin.String == "4321" {
				return user, nil
			}
			return database.User{}, pgx.ErrNoRows
		},
	}
	router := newAuthRouter(store)

	body := `{"tienda_id": "` + user.StoreID.String() + `", "pin": "4321"}`
	rr := doRequest(t, router, http.MethodPost, "/auth/pin-login", strings.NewReader(body))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (body: %s)", rr.Code, rr.Body.String())
	}
	if gotParams.StoreID != user.StoreID {
		t.Errorf("store: got %s, want %s", gotParams.StoreID, user.StoreID)
	}

	resp := decodeResponse(t, rr)
	if resp["access_token"] == "" {
		t.Error("access_token missing")
	}
}

func TestPinLogin_WrongPin(t *testing.T) {
	router := newAuthRouter(&mockAuthStore{})

	body := `{"tienda_id": "` + uuid.New().String() + `", "pin": "0000"}`
	rr := doRequest(t, router, http.MethodPost, "/auth/pin-login", strings.NewReader(body))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rr.Code)
	}
}

func TestPinLogin_InvalidStoreID(t *testing.T) {
	router := newAuthRouter(&mockAuthStore{})

	body := `{"tienda_id": "not-a-uuid", "pin": "4321"}`
	rr := doRequest(t, router, http.MethodPost, "/auth/pin-login", strings.NewReader(body))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rr.Code)
	}
}

func TestRefresh_Success(t *testing.T) {
	user := testUser(t, "secret123")
	store := &mockAuthStore{
		getUserByIDFn: func(ctx context.Context, id uuid.UUID) (database.User, error) {
			if id == user.ID {
				return user, nil
			}
			return database.User{}, pgx.ErrNoRows
		},
	}
	router := newAuthRouter(store)

	refreshToken, err := auth.GenerateRefreshToken(testJWTSecret, user.ID)
	if err != nil {
		t.Fatalf("failed to generate refresh token: %v", err)
	}

	body := `{"refresh_token": "` + refreshToken + `"}`
	rr := doRequest(t, router, http.MethodPost, "/auth/refresh", strings.NewReader(body))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (body: %s)", rr.Code, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	accessToken, _ := resp["access_token"].(string)
	claims, err := auth.ValidateToken(testJWTSecret, accessToken)
	if err != nil {
		t.Fatalf("new access token should validate: %v", err)
	}
	if claims.UserID != user.ID {
		t.Errorf("token user: got %s, want %s", claims.UserID, user.ID)
	}
}

func TestRefresh_GarbageToken(t *testing.T) {
	router := newAuthRouter(&mockAuthStore{})

	body := `{"refresh_token": "not.a.jwt"}`
	rr := doRequest(t, router, http.MethodPost, "/auth/refresh", strings.NewReader(body))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rr.Code)
	}
}

func TestRefresh_WrongSecret(t *testing.T) {
	router := newAuthRouter(&mockAuthStore{})

	refreshToken, err := auth.GenerateRefreshToken("other-secret", uuid.New())
	if err != nil {
		t.Fatalf("failed to generate refresh token: %v", err)
	}

	body := `{"refresh_token": "` + refreshToken + `"}`
	rr := doRequest(t, router, http.MethodPost, "/auth/refresh", strings.NewReader(body))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rr.Code)
	}
}
