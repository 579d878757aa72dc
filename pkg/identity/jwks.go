// Package identity verifies workload-identity JWTs (C5): short-lived
// RS256 tokens issued by a CI/CD OIDC provider, validated against that
// provider's published JWKS.
package identity

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"pository/pkg/log"
)

// ErrKeyNotFound is returned when a token's "kid" has no matching JWKS entry.
var ErrKeyNotFound = errors.New("signing key not found in jwks")

type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwksDocument struct {
	Keys []jwk `json:"keys"`
}

// KeySet fetches and caches a JWKS document, refetching at most once per
// refetchInterval to bound load on the identity provider even under a
// storm of tokens bearing unknown key IDs (e.g. right after a key
// rotation, before this cache has caught up).
type KeySet struct {
	jwksURL        string
	client         *retryablehttp.Client
	refetchLimiter *rate.Limiter

	mu   sync.RWMutex
	keys map[string]*rsa.PublicKey
}

// NewKeySet creates a KeySet that fetches from jwksURL, allowing at most
// one refetch per refetchInterval.
func NewKeySet(jwksURL string, refetchInterval time.Duration) *KeySet {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = 3

	return &KeySet{
		jwksURL:        jwksURL,
		client:         client,
		refetchLimiter: rate.NewLimiter(rate.Every(refetchInterval), 1),
		keys:           make(map[string]*rsa.PublicKey),
	}
}

// Lookup returns the RSA public key for kid, fetching (or refetching, if
// rate-limited headroom allows) the JWKS document as needed.
func (k *KeySet) Lookup(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	k.mu.RLock()
	key, ok := k.keys[kid]
	k.mu.RUnlock()
	if ok {
		return key, nil
	}

	if !k.refetchLimiter.Allow() {
		return nil, ErrKeyNotFound
	}

	if err := k.refresh(ctx); err != nil {
		return nil, err
	}

	k.mu.RLock()
	key, ok = k.keys[kid]
	k.mu.RUnlock()
	if !ok {
		return nil, ErrKeyNotFound
	}
	return key, nil
}

func (k *KeySet) refresh(ctx context.Context) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, k.jwksURL, nil)
	if err != nil {
		return err
	}
	resp, err := k.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching jwks: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks endpoint returned status %d", resp.StatusCode)
	}

	var doc jwksDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("decoding jwks: %w", err)
	}

	parsed := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, key := range doc.Keys {
		if key.Kty != "RSA" {
			continue
		}
		pub, err := rsaPublicKeyFromJWK(key)
		if err != nil {
			log.Warn().Err(err).Str("kid", key.Kid).Msg("Skipping unparseable JWKS entry")
			continue
		}
		parsed[key.Kid] = pub
	}

	k.mu.Lock()
	k.keys = parsed
	k.mu.Unlock()

	log.Info().Int("keyCount", len(parsed)).Str("url", k.jwksURL).Msg("Refreshed JWKS")
	return nil
}

func rsaPublicKeyFromJWK(key jwk) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(key.N)
	if err != nil {
		return nil, err
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(key.E)
	if err != nil {
		return nil, err
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}
