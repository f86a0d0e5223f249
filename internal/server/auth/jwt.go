// Package auth issues and verifies the access tokens that carry a writer's
// external identity.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/relaytale/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the identity provider's subject in "sub" and an optional
// display name.
type Claims struct {
	jwt.RegisteredClaims
	UserName string `json:"user_name,omitempty"`
}

// Identity is what a verified token says about the caller.
type Identity struct {
	ExternalID string
	UserName   string
}

func GenerateToken(subject, userName string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		UserName: userName,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return tokenString, nil
}

// ParseIdentity verifies tokenString with secretKey. Expired tokens yield
// common.ErrTokenExpired, anything else unusable common.ErrInvalidToken.
func ParseIdentity(tokenString string, secretKey []byte) (*Identity, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return &Identity{ExternalID: claims.Subject, UserName: claims.UserName}, nil
}
