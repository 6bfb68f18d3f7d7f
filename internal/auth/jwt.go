package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/atelier-pos/api/internal/enum"
)

type Claims struct {
	UserID  uuid.UUID `json:"user_id"`
	StoreID uuid.UUID `json:"tienda_id"`
	Role    string    `json:"role"`
	jwt.RegisteredClaims
}

// Capability checks are resolved here, once, instead of scattering
// role string comparisons through handlers.

// CanAssignOthers reports whether the actor may credit an abono or sale
// to a staff member other than themselves.
func (c *Claims) CanAssignOthers() bool {
	return c.Role == enum.UserRoleAdmin
}

// CanCrossStores reports whether the actor may operate on stores other
// than the one in their session.
func (c *Claims) CanCrossStores() bool {
	return c.Role == enum.UserRoleAdmin
}

// CanManageUsers reports whether the actor may administer staff accounts
// and stores.
func (c *Claims) CanManageUsers() bool {
	return c.Role == enum.UserRoleAdmin
}

func GenerateToken(secret string, userID, storeID uuid.UUID, role string) (string, error) {
	claims := Claims{
		UserID:  userID,
		StoreID: storeID,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func GenerateRefreshToken(secret string, userID uuid.UUID) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(7 * 24 * time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ValidateToken(secret, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
