/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleHost   Role = "host"
	RolePlayer Role = "player"
)

// Claims bind a connection to a single player in a single room.
type Claims struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
	Role     Role   `json:"role"`
	jwt.RegisteredClaims
}

type TokenIssuer struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

func NewTokenIssuer(secretKey string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secretKey: []byte(secretKey),
		ttl:       ttl,
		now:       time.Now,
	}
}

func (ti *TokenIssuer) Issue(roomID, playerID string, role Role) (string, error) {
	now := ti.now()

	claims := Claims{
		RoomID:   roomID,
		PlayerID: playerID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secretKey)
}

func (ti *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, authError("invalid signing algorithm")
		}
		return ti.secretKey, nil
	}, jwt.WithTimeFunc(ti.now), jwt.WithExpirationRequired())

	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, authError("token expired")
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, authError("invalid token signature")
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return nil, authError("invalid signing algorithm")
	case errors.Is(err, jwt.ErrTokenInvalidClaims):
		return nil, authError("invalid token claims")
	default:
		return nil, authError("malformed token")
	}

	if !token.Valid || claims.RoomID == "" || claims.PlayerID == "" {
		return nil, authError("invalid token claims")
	}
	if claims.Role != RoleHost && claims.Role != RolePlayer {
		return nil, authError("invalid token claims")
	}

	return claims, nil
}
