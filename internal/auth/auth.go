package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrUnauthorized = errors.New("invalid or expired token")

// Identity is the resolved caller. Anonymous identities carry a nil user.
type Identity struct {
	UserID    uuid.UUID
	Anonymous bool
}

// Requester returns the identity as an optional requester reference.
func (i Identity) Requester() *uuid.UUID {
	if i.Anonymous {
		return nil
	}
	id := i.UserID
	return &id
}

// Verifier checks tokens issued by the external auth provider. Only HMAC
// verification happens here; session issuance is someone else's job.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Identify resolves a bearer token to a caller identity. An empty token is
// anonymous, not an error; a present but bad token is Unauthorized.
func (v *Verifier) Identify(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{Anonymous: true}, nil
	}
	if len(v.secret) == 0 {
		return Identity{}, ErrUnauthorized
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, ErrUnauthorized
	}

	userID, err := uuid.Parse(strings.TrimSpace(claims.Subject))
	if err != nil {
		return Identity{}, ErrUnauthorized
	}

	return Identity{UserID: userID}, nil
}
