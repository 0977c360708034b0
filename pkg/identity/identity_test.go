package identity

import (
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUnverifiedExtractor(t *testing.T, cfg ExtractorConfig) *Extractor {
	t.Helper()
	e, err := NewExtractor(cfg)
	require.NoError(t, err)
	return e
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	// Unverified-parse mode ignores the signature; HMAC with a throwaway
	// key keeps the token well-formed.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte("test-key"))
	require.NoError(t, err)
	return s
}

func TestFromRequest_NoToken(t *testing.T) {
	e := newUnverifiedExtractor(t, ExtractorConfig{})
	r := httptest.NewRequest("POST", "/run", nil)
	assert.Nil(t, e.FromRequest(r))
}

func TestFromRequest_BearerClaims(t *testing.T) {
	e := newUnverifiedExtractor(t, ExtractorConfig{})
	r := httptest.NewRequest("POST", "/run", nil)
	r.Header.Set("Authorization", "Bearer "+signedToken(t, jwt.MapClaims{
		"sub":  "alice@example.com",
		"role": "admin",
	}))

	id := e.FromRequest(r)
	require.NotNil(t, id)
	assert.Equal(t, "alice@example.com", id.Actor)
	assert.Equal(t, "admin", id.Role)
	assert.Equal(t, AuthTypeJWT, id.AuthType)
}

func TestFromRequest_NestedRoleClaim(t *testing.T) {
	e := newUnverifiedExtractor(t, ExtractorConfig{RoleClaim: "realm_access.roles"})
	r := httptest.NewRequest("POST", "/run", nil)
	r.Header.Set("Authorization", "Bearer "+signedToken(t, jwt.MapClaims{
		"sub": "bob@example.com",
		"realm_access": map[string]any{
			"roles": []any{"reviewer", "user"},
		},
	}))

	id := e.FromRequest(r)
	require.NotNil(t, id)
	assert.Equal(t, "reviewer", id.Role)
}

func TestFromRequest_CustomActorClaim(t *testing.T) {
	e := newUnverifiedExtractor(t, ExtractorConfig{ActorClaim: "email"})
	r := httptest.NewRequest("POST", "/run", nil)
	r.Header.Set("Authorization", "Bearer "+signedToken(t, jwt.MapClaims{
		"email": "carol@example.com",
		"role":  "reviewer",
	}))

	id := e.FromRequest(r)
	require.NotNil(t, id)
	assert.Equal(t, "carol@example.com", id.Actor)
}

func TestFromRequest_MalformedToken(t *testing.T) {
	e := newUnverifiedExtractor(t, ExtractorConfig{})
	r := httptest.NewRequest("POST", "/run", nil)
	r.Header.Set("Authorization", "Bearer not.a.jwt")
	assert.Nil(t, e.FromRequest(r))
}

func TestFromRequest_MissingActorClaim(t *testing.T) {
	e := newUnverifiedExtractor(t, ExtractorConfig{})
	r := httptest.NewRequest("POST", "/run", nil)
	r.Header.Set("Authorization", "Bearer "+signedToken(t, jwt.MapClaims{"role": "admin"}))
	assert.Nil(t, e.FromRequest(r), "token without actor claim falls back to body identity")
}

func TestFromRequest_NonBearerScheme(t *testing.T) {
	e := newUnverifiedExtractor(t, ExtractorConfig{})
	r := httptest.NewRequest("POST", "/run", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	assert.Nil(t, e.FromRequest(r))
}

func TestNewExtractor_BadKeyPath(t *testing.T) {
	_, err := NewExtractor(ExtractorConfig{PublicKeyPath: "/nonexistent/key.pem"})
	require.Error(t, err)
}
