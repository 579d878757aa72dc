package identity

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"
)

type IdentityTestSuite struct {
	suite.Suite
	privateKey *rsa.PrivateKey
	server     *httptest.Server
}

func (s *IdentityTestSuite) SetupTest() {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	s.Require().NoError(err)
	s.privateKey = key

	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		doc := jwksDocument{Keys: []jwk{{
			Kid: "test-key",
			Kty: "RSA",
			N:   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(bigEndianUint(key.PublicKey.E)),
		}}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	}))
}

func (s *IdentityTestSuite) TearDownTest() {
	s.server.Close()
}

func bigEndianUint(n int) []byte {
	b := []byte{byte(n >> 16), byte(n >> 8), byte(n)}
	for len(b) > 1 && b[0] == 0 {
		b = b[1:]
	}
	return b
}

func (s *IdentityTestSuite) signToken(claims jwt.MapClaims) string {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "test-key"
	signed, err := token.SignedString(s.privateKey)
	s.Require().NoError(err)
	return signed
}

func (s *IdentityTestSuite) TestVerifyAcceptsValidToken() {
	keys := NewKeySet(s.server.URL, time.Minute)
	verifier := NewVerifier(keys, "", "")

	token := s.signToken(jwt.MapClaims{
		"repository":            "acme/widget",
		"repository_visibility": "private",
		"event_name":             "push",
		"ref":                    "refs/heads/main",
		"actor":                  "octocat",
		"sha":                    "deadbeef",
		"workflow":               "release.yml",
		"exp":                    time.Now().Add(time.Minute).Unix(),
	})

	claims, err := verifier.Verify(context.Background(), token)
	s.Require().NoError(err)
	s.Equal("acme/widget", claims.Repository)
	s.Equal("push", claims.EventName)
	s.Equal("octocat", claims.Actor)
}

func (s *IdentityTestSuite) TestVerifyRejectsExpiredToken() {
	keys := NewKeySet(s.server.URL, time.Minute)
	verifier := NewVerifier(keys, "", "")

	token := s.signToken(jwt.MapClaims{
		"repository": "acme/widget",
		"exp":        time.Now().Add(-time.Minute).Unix(),
	})

	_, err := verifier.Verify(context.Background(), token)
	s.Error(err)
}

func (s *IdentityTestSuite) TestVerifyRejectsUnknownKeyID() {
	keys := NewKeySet(s.server.URL, time.Minute)
	verifier := NewVerifier(keys, "", "")

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	token.Header["kid"] = "some-other-key"
	signed, err := token.SignedString(s.privateKey)
	s.Require().NoError(err)

	_, err = verifier.Verify(context.Background(), signed)
	s.Error(err)
}

func TestIdentitySuite(t *testing.T) {
	suite.Run(t, new(IdentityTestSuite))
}
