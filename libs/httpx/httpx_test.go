package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}), mark("a"), mark("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if strings.Join(order, ",") != "a,b" {
		t.Fatalf("expected a,b got %v", order)
	}
}

func TestWithRequestIDGeneratesAndEchoes(t *testing.T) {
	var seen string
	h := WithRequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || rw.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("expected generated id echoed, got ctx=%q header=%q", seen, rw.Header().Get(RequestIDHeader))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "req-123" {
		t.Fatalf("expected inbound id kept, got %q", seen)
	}
}

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	allowed := func(at time.Time) Decision {
		d, err := rl.Allow(ctx, "ip", at)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		return d
	}
	if d := allowed(now); !d.Allowed || d.Remaining != 1 {
		t.Fatalf("first request: %+v", d)
	}
	if !allowed(now).Allowed {
		t.Fatal("second request should pass")
	}
	if d := allowed(now.Add(10 * time.Second)); d.Allowed || d.ResetIn != 50*time.Second {
		t.Fatalf("third request should be limited, got %+v", d)
	}
	if !allowed(now.Add(61 * time.Second)).Allowed {
		t.Fatal("request after window reset should pass")
	}
}

func TestRateLimitMiddlewareHeadersAndExemptions(t *testing.T) {
	mw := RateLimit(NewRateLimiter(1, time.Minute), RateLimitOptions{Exempt: []string{"/api/v1/payments/webhooks/"}})
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	call := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, req)
		return rw
	}
	if rw := call("/api/v1/public/slots"); rw.Code != http.StatusOK || rw.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("first call: %d remaining=%q", rw.Code, rw.Header().Get("X-RateLimit-Remaining"))
	}
	rw := call("/api/v1/public/slots")
	if rw.Code != http.StatusTooManyRequests || rw.Header().Get("Retry-After") == "" {
		t.Fatalf("second call: %d retry-after=%q", rw.Code, rw.Header().Get("Retry-After"))
	}
	if rw := call("/api/v1/payments/webhooks/stripe"); rw.Code != http.StatusOK {
		t.Fatalf("webhook must be exempt, got %d", rw.Code)
	}
}

func TestWithCORSPreflight(t *testing.T) {
	h := WithCORS(DefaultCORSPolicy([]string{"https://app.pointme.test"}))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/bookings", nil)
	req.Header.Set("Origin", "https://app.pointme.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", rw.Code)
	}
	if rw.Header().Get("Access-Control-Allow-Origin") != "https://app.pointme.test" {
		t.Fatalf("unexpected allow origin %q", rw.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestWithRecover(t *testing.T) {
	h := WithRecover(discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
	if rw.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rw.Code)
	}
}

func TestAccessLevel(t *testing.T) {
	cases := []struct {
		path   string
		status int
		want   string
	}{
		{"/api/v1/bookings", http.StatusCreated, "INFO"},
		{"/api/v1/bookings", http.StatusConflict, "WARN"},
		{"/api/v1/bookings", http.StatusBadGateway, "ERROR"},
		{"/readyz", http.StatusOK, "DEBUG"},
	}
	for _, tc := range cases {
		if got := accessLevel(tc.path, tc.status).String(); got != tc.want {
			t.Fatalf("accessLevel(%s, %d) = %s, want %s", tc.path, tc.status, got, tc.want)
		}
	}
}
