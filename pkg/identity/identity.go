// Package identity resolves who is acting on a request. When a Bearer
// token is present its claims win; otherwise the request body's actor
// fields are taken as-is. Verification is optional: with a configured
// RSA public key tokens are checked (RS256), without one they are
// parsed unverified for deployments behind a trusted auth proxy.
package identity

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// AuthTypeJWT marks identities established from a Bearer token.
const AuthTypeJWT = "jwt"

// Identity is the resolved actor for one request.
type Identity struct {
	Actor    string
	Role     string
	AuthType string
}

// ExtractorConfig configures the JWT identity extractor.
type ExtractorConfig struct {
	// ActorClaim is the claim holding the actor name. Default: "sub".
	ActorClaim string

	// RoleClaim is the claim path holding the role. Supports
	// dot-notation for nested claims. Default: "role".
	RoleClaim string

	// PublicKeyPath points at a PEM-encoded RSA public key for RS256
	// verification. Empty means trusted proxy mode: tokens are parsed
	// but not verified.
	PublicKeyPath string

	// Issuer, if set, is validated against the iss claim.
	Issuer string

	// Audience, if set, is validated against the aud claim.
	Audience string

	Logger *slog.Logger
}

// Extractor resolves identities from HTTP requests.
type Extractor struct {
	cfg       ExtractorConfig
	publicKey *rsa.PublicKey
}

// NewExtractor creates an Extractor. An unreadable or malformed key
// file is an error; an empty key path is not.
func NewExtractor(cfg ExtractorConfig) (*Extractor, error) {
	if cfg.ActorClaim == "" {
		cfg.ActorClaim = "sub"
	}
	if cfg.RoleClaim == "" {
		cfg.RoleClaim = "role"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	e := &Extractor{cfg: cfg}
	if cfg.PublicKeyPath != "" {
		keyData, err := os.ReadFile(cfg.PublicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read JWT public key %s: %w", cfg.PublicKeyPath, err)
		}
		block, _ := pem.Decode(keyData)
		if block == nil {
			return nil, fmt.Errorf("decode PEM block from %s", cfg.PublicKeyPath)
		}
		parsedKey, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse public key: %w", err)
		}
		rsaKey, ok := parsedKey.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("public key is not RSA (got %T)", parsedKey)
		}
		e.publicKey = rsaKey
		cfg.Logger.Info("identity extractor: RS256 verification enabled", "keyPath", cfg.PublicKeyPath)
	} else {
		cfg.Logger.Warn("identity extractor: no public key configured, tokens parsed without verification (trusted proxy mode)")
	}
	return e, nil
}

// FromRequest resolves the identity carried by a Bearer token, if any.
// Returns nil when no token is present or the token cannot be parsed;
// the caller then falls back to the request body's actor fields.
func (e *Extractor) FromRequest(r *http.Request) *Identity {
	token := bearerToken(r)
	if token == "" {
		return nil
	}

	claims, err := e.parseClaims(token)
	if err != nil {
		e.cfg.Logger.Debug("bearer token rejected, falling back to body identity", "error", err)
		return nil
	}

	actor, _ := claims[e.cfg.ActorClaim].(string)
	role := claimString(claims, e.cfg.RoleClaim)
	if actor == "" {
		return nil
	}
	return &Identity{Actor: actor, Role: role, AuthType: AuthTypeJWT}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func (e *Extractor) parseClaims(tokenString string) (jwt.MapClaims, error) {
	parserOpts := []jwt.ParserOption{}
	if e.cfg.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(e.cfg.Issuer))
	}
	if e.cfg.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(e.cfg.Audience))
	}

	var token *jwt.Token
	var err error
	if e.publicKey != nil {
		token, err = jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return e.publicKey, nil
		}, parserOpts...)
	} else {
		parser := jwt.NewParser(parserOpts...)
		token, _, err = parser.ParseUnverified(tokenString, jwt.MapClaims{})
	}
	if err != nil {
		return nil, fmt.Errorf("JWT parse error: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type")
	}
	return claims, nil
}

// claimString walks a dot-notation claim path and returns the string
// value found there, or the first string of an array claim.
func claimString(claims jwt.MapClaims, claimPath string) string {
	parts := strings.Split(claimPath, ".")
	var current interface{} = map[string]interface{}(claims)

	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return ""
		}
		current, ok = m[part]
		if !ok {
			return ""
		}
	}

	if s, ok := current.(string); ok {
		return s
	}
	if arr, ok := current.([]interface{}); ok {
		for _, v := range arr {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}
