// Package auth issues and verifies the HS256 bearer tokens that carry a
// participant's identity into the disclosure engine.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/avendale/dataroom/internal/common"
	"github.com/avendale/dataroom/internal/server/roles"
)

// Claims extends the registered JWT claims with the identity fields the
// engine needs on every request. Name and Email feed NDA personalization,
// Role drives authorization.
type Claims struct {
	jwt.RegisteredClaims
	UserID string     `json:"uid"`
	Name   string     `json:"name"`
	Email  string     `json:"email"`
	Role   roles.Role `json:"role"`
}

func GenerateToken(userID, name, email string, role roles.Role, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		UserID: userID,
		Name:   name,
		Email:  email,
		Role:   role,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies tokenString and returns its claims. Expired, forged,
// or malformed tokens all surface common.ErrInvalidToken so the boundary
// can answer uniformly.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	if claims.UserID == "" || !claims.Role.Valid() {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// IsExpired reports whether a parse failure was specifically an expiry.
func IsExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}
