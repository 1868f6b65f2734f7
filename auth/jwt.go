package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/devkiraa/makeTicket-sub000/entity"
)

type Claims struct {
	AccountID string      `json:"account_id"`
	Email     string      `json:"email,omitempty"`
	Role      entity.Role `json:"role"`
	jwt.RegisteredClaims
}

// Validator verifies bearer tokens signed with a shared HMAC secret.
type Validator struct {
	secret []byte
}

func NewValidator(secret string) Validator {
	if secret == "" {
		panic("missing jwt secret")
	}

	return Validator{secret: []byte(secret)}
}

func (v Validator) Validate(token string) (entity.Caller, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return entity.Caller{}, entity.ErrAuthRequired
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return entity.Caller{}, fmt.Errorf("%w: %w", entity.ErrInvalidCredential, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return entity.Caller{}, entity.ErrInvalidCredential
	}
	if claims.AccountID == "" {
		return entity.Caller{}, fmt.Errorf("%w: token has no account", entity.ErrInvalidCredential)
	}

	role := claims.Role
	if role == "" {
		role = entity.RoleGuest
	}

	return entity.Caller{
		AccountID: claims.AccountID,
		Email:     entity.NormalizeEmail(claims.Email),
		Role:      role,
	}, nil
}

// Issue signs a token for caller. Tokens are normally issued by the account service.
func (v Validator) Issue(caller entity.Caller, ttl time.Duration) (string, error) {
	if caller.AccountID == "" {
		return "", errors.New("missing account id")
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		AccountID: caller.AccountID,
		Email:     caller.Email,
		Role:      caller.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.AccountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("could not sign token: %w", err)
	}

	return signed, nil
}
