package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	accessTokenTTL  = time.Hour
	refreshTokenTTL = 7 * 24 * time.Hour
)

// TokenPair is the JWT pair issued at login alongside the opaque key.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// MintPair signs an HS256 access/refresh pair for the principal.
func MintPair(secret []byte, principalID uuid.UUID, role Role) (TokenPair, error) {
	now := time.Now().UTC()

	access, err := signToken(secret, principalID, role, "access", now, now.Add(accessTokenTTL))
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := signToken(secret, principalID, role, "refresh", now, now.Add(refreshTokenTTL))
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return TokenPair{Access: access, Refresh: refresh}, nil
}

// MintAccess signs a fresh access token only, used by the refresh flow.
func MintAccess(secret []byte, principalID uuid.UUID, role Role) (string, error) {
	now := time.Now().UTC()
	access, err := signToken(secret, principalID, role, "access", now, now.Add(accessTokenTTL))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return access, nil
}

func signToken(secret []byte, principalID uuid.UUID, role Role, use string, issuedAt, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":  principalID.String(),
		"role": string(role),
		"use":  use,
		"iat":  issuedAt.Unix(),
		"exp":  expiresAt.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken verifies signature and expiry and returns the principal ID and
// role encoded in the token.
func ParseToken(secret []byte, tokenString string) (uuid.UUID, Role, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return uuid.Nil, "", fmt.Errorf("invalid token claims")
	}

	sub, _ := claims["sub"].(string)
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("invalid subject: %w", err)
	}

	role, _ := claims["role"].(string)
	return id, Role(role), nil
}
