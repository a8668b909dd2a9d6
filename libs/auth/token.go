package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingToken = errors.New("missing bearer token")
)

// Claims are the identity provider's access token claims. Role is one of
// customer, business or admin; BusinessID is set for business owners.
type Claims struct {
	Role       string `json:"role"`
	BusinessID string `json:"business_id,omitempty"`
	Email      string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller attached to a request context.
type Principal struct {
	UserID     string
	Role       string
	BusinessID string
	Email      string
}

type VerifierConfig struct {
	HMACSecret string
	JWKS       *JWKSClient
	Issuer     string
	Audience   string
}

// Verifier validates HS256 tokens with a shared secret and RS256 tokens
// against the JWKS endpoint. At least one of the two must be configured.
type Verifier struct {
	cfg    VerifierConfig
	parser *jwt.Parser
}

func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	if cfg.HMACSecret == "" && cfg.JWKS == nil {
		return nil, errors.New("auth: no verification key configured")
	}
	return &Verifier{
		cfg:    cfg,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "RS256"})),
	}, nil
}

func (v *Verifier) Verify(ctx context.Context, raw string) (Principal, error) {
	var claims Claims
	_, err := v.parser.ParseWithClaims(raw, &claims, func(tok *jwt.Token) (any, error) {
		switch tok.Method.Alg() {
		case "HS256":
			if v.cfg.HMACSecret == "" {
				return nil, fmt.Errorf("hs256 not accepted")
			}
			return []byte(v.cfg.HMACSecret), nil
		case "RS256":
			if v.cfg.JWKS == nil {
				return nil, fmt.Errorf("rs256 not accepted")
			}
			kid, _ := tok.Header["kid"].(string)
			return v.cfg.JWKS.Get(ctx, kid)
		}
		return nil, fmt.Errorf("unexpected alg %s", tok.Method.Alg())
	})
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.ExpiresAt == nil || !claims.VerifyExpiresAt(time.Now(), true) {
		return Principal{}, fmt.Errorf("%w: expired", ErrInvalidToken)
	}
	if v.cfg.Issuer != "" && !claims.VerifyIssuer(v.cfg.Issuer, true) {
		return Principal{}, fmt.Errorf("%w: issuer", ErrInvalidToken)
	}
	if v.cfg.Audience != "" && !claims.VerifyAudience(v.cfg.Audience, true) {
		return Principal{}, fmt.Errorf("%w: audience", ErrInvalidToken)
	}
	if claims.Subject == "" || claims.Role == "" {
		return Principal{}, fmt.Errorf("%w: subject and role required", ErrInvalidToken)
	}

	return Principal{
		UserID:     claims.Subject,
		Role:       strings.ToLower(claims.Role),
		BusinessID: claims.BusinessID,
		Email:      claims.Email,
	}, nil
}

// SignHS256 issues a token signed with secret. Used by local tooling and tests.
func SignHS256(claims Claims, secret string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}
