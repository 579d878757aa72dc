package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"pository/pkg/models"
)

// ErrUnexpectedSigningMethod is returned when a token claims a signing
// algorithm other than RS256.
var ErrUnexpectedSigningMethod = errors.New("unexpected jwt signing method")

// Verifier verifies workload-identity bearer tokens against a JWKS-backed
// key set and extracts the claims the authorization policy needs.
type Verifier struct {
	keys     *KeySet
	issuer   string
	audience string
}

// NewVerifier creates a Verifier. issuer and audience, when non-empty, are
// checked against the token's "iss"/"aud" claims.
func NewVerifier(keys *KeySet, issuer, audience string) *Verifier {
	return &Verifier{keys: keys, issuer: issuer, audience: audience}
}

type workloadClaims struct {
	jwt.RegisteredClaims
	Repository           string `json:"repository"`
	RepositoryVisibility string `json:"repository_visibility"`
	EventName            string `json:"event_name"`
	Ref                  string `json:"ref"`
	Actor                string `json:"actor"`
	SHA                  string `json:"sha"`
	Workflow             string `json:"workflow"`
}

// Verify validates tokenString's signature against the JWKS, checks
// standard registered claims, and returns the workload claims the
// authorization policy needs.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*models.WorkloadClaims, error) {
	claims := &workloadClaims{}

	parserOpts := []jwt.ParserOption{jwt.WithValidMethods([]string{"RS256"})}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.audience))
	}

	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, ErrUnexpectedSigningMethod
		}
		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, ErrKeyNotFound
		}
		return v.keys.Lookup(ctx, kid)
	}, parserOpts...)
	if err != nil {
		return nil, fmt.Errorf("verifying workload identity token: %w", err)
	}

	return &models.WorkloadClaims{
		Repository:           claims.Repository,
		RepositoryVisibility: claims.RepositoryVisibility,
		EventName:            claims.EventName,
		Ref:                  claims.Ref,
		Actor:                claims.Actor,
		SHA:                  claims.SHA,
		Workflow:             claims.Workflow,
	}, nil
}
