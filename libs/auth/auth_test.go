package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func claimsFor(sub, role string, ttl time.Duration) Claims {
	now := time.Now()
	return Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

func TestVerifyHS256(t *testing.T) {
	v, err := NewVerifier(VerifierConfig{HMACSecret: "s3cret"})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	c := claimsFor("user-1", "Business", time.Hour)
	c.BusinessID = "biz-1"
	tok, err := SignHS256(c, "s3cret")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	p, err := v.Verify(context.Background(), tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.UserID != "user-1" || p.Role != "business" || p.BusinessID != "biz-1" {
		t.Fatalf("unexpected principal %+v", p)
	}

	bad, _ := SignHS256(c, "other")
	if _, err := v.Verify(context.Background(), bad); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	v, _ := NewVerifier(VerifierConfig{HMACSecret: "k"})
	tok, _ := SignHS256(claimsFor("u", "customer", -time.Minute), "k")
	if _, err := v.Verify(context.Background(), tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token rejected, got %v", err)
	}
}

func TestVerifyRS256ViaJWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []map[string]string{{
			"kty": "RSA",
			"kid": "k1",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
	}))
	defer srv.Close()

	v, _ := NewVerifier(VerifierConfig{JWKS: NewJWKSClient(srv.URL, time.Minute)})
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claimsFor("user-2", "admin", time.Hour))
	tok.Header["kid"] = "k1"
	raw, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	p, err := v.Verify(context.Background(), raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.UserID != "user-2" || p.Role != "admin" {
		t.Fatalf("unexpected principal %+v", p)
	}

	// HS256 must not be accepted when only JWKS is configured.
	hs, _ := SignHS256(claimsFor("user-2", "admin", time.Hour), "whatever")
	if _, err := v.Verify(context.Background(), hs); err == nil {
		t.Fatal("expected hs256 rejected")
	}
}

func TestJWKSUnknownKidDoesNotRefetchImmediately(t *testing.T) {
	fetches := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fetches++
		_, _ = w.Write([]byte(`{"keys":[]}`))
	}))
	defer srv.Close()

	c := NewJWKSClient(srv.URL, time.Minute)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	for i := 0; i < 3; i++ {
		if _, err := c.Get(context.Background(), "forged"); !errors.Is(err, ErrKeyNotFound) {
			t.Fatalf("expected ErrKeyNotFound, got %v", err)
		}
	}
	if fetches != 1 {
		t.Fatalf("expected one fetch, got %d", fetches)
	}
	now = now.Add(minRefreshGap)
	_, _ = c.Get(context.Background(), "forged")
	if fetches != 2 {
		t.Fatalf("expected refetch after gap, got %d", fetches)
	}
}

func TestRequireMiddleware(t *testing.T) {
	v, _ := NewVerifier(VerifierConfig{HMACSecret: "k"})
	var got Principal
	h := v.Require("business")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"wrong role", "Bearer " + mustSign(t, "c1", "customer"), http.StatusForbidden},
		{"ok", "Bearer " + mustSign(t, "b1", "business"), http.StatusNoContent},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, req)
		if rw.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, rw.Code)
		}
	}
	if got.UserID != "b1" {
		t.Fatalf("principal not attached: %+v", got)
	}
}

func mustSign(t *testing.T, sub, role string) string {
	t.Helper()
	tok, err := SignHS256(claimsFor(sub, role, time.Hour), "k")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}
