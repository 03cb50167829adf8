package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"hubly/helpdesk-service/internal/models"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the payload of a session credential.
type Claims struct {
	AccountID string      `json:"accountId"`
	Role      models.Role `json:"role"`
	Workspace string      `json:"workspace"`
	jwt.RegisteredClaims
}

type JWTUtil struct {
	secret []byte
	ttl    time.Duration
}

func NewJWTUtil(secret string, ttl time.Duration) *JWTUtil {
	return &JWTUtil{secret: []byte(secret), ttl: ttl}
}

func (j *JWTUtil) GenerateToken(account *models.Account) (string, error) {
	now := time.Now()
	claims := Claims{
		AccountID: account.ID.Hex(),
		Role:      account.Role,
		Workspace: account.Workspace,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret)
}

// ValidateToken verifies signature and expiry. Any failure is ErrInvalidToken.
func (j *JWTUtil) ValidateToken(tokenString string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return j.secret, nil
	})
	if err != nil || !token.Valid || claims.AccountID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
