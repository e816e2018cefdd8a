// Package auth implements the identity provider adapter: it verifies bearer
// tokens issued by the external identity provider and yields the caller
// identity. The service never issues tokens itself and holds no password
// state; verification is the whole contract.
package auth

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"quickai/internal/types"
)

// TokenVerifier verifies provider-issued JWTs with a shared HMAC secret.
// It implements core.Authenticator.
type TokenVerifier struct {
	secret []byte
	issuer string
}

// NewTokenVerifier creates a TokenVerifier for the given signing secret.
// issuer is optional; when non-empty, tokens must carry a matching iss claim.
func NewTokenVerifier(secret []byte, issuer string) *TokenVerifier {
	return &TokenVerifier{secret: secret, issuer: issuer}
}

// claims is the subset of provider claims the service consumes.
type claims struct {
	Email string `json:"email,omitempty"`
	Plan  string `json:"plan,omitempty"`
	jwt.RegisteredClaims
}

// ResolveToken verifies the raw bearer token and returns the caller identity.
//
// Any malformed, expired, or unverifiable token is rejected; the gate must
// not proceed to plan resolution for such requests. Distinct error codes:
//   - auth_token_expired when the signature is valid but the token is expired
//   - auth_token_invalid for every other failure
func (v *TokenVerifier) ResolveToken(ctx context.Context, token string) (*types.Actor, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}

	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, types.NewAppError(types.ErrCodeAuthTokenExpired, "authentication token has expired", err)
		}
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid authentication token", err)
	}

	if c.Subject == "" {
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "token is missing a subject claim", nil)
	}

	actor := &types.Actor{
		ID:           c.Subject,
		Email:        c.Email,
		DeclaredPlan: types.PlanTier(c.Plan),
	}
	return actor, nil
}
