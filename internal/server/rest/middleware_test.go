package rest

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-shared-secret")

// signToken creates a signed HS256 JWT with the given claims.
func signToken(t *testing.T, secret []byte, claims jwt.Claims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

// freshClaims returns claims valid for the next hour.
func freshClaims(subject string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
}

// wrappedHandler records whether the inner handler was reached.
func wrappedHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	mw := JWTMiddleware(testSecret, nil)
	called := false
	h := mw(wrappedHandler(&called))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, freshClaims("dashboard")))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if !called {
		t.Error("inner handler was not reached")
	}
}

func TestJWTMiddleware_ClaimsInContext(t *testing.T) {
	mw := JWTMiddleware(testSecret, nil)

	var gotSubject string
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims, ok := ClaimsFromContext(r.Context()); ok {
			gotSubject = claims.Subject
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, freshClaims("dashboard")))
	h.ServeHTTP(httptest.NewRecorder(), req)

	if gotSubject != "dashboard" {
		t.Fatalf("subject from context = %q, want dashboard", gotSubject)
	}
}

func TestJWTMiddleware_Rejections(t *testing.T) {
	expired := jwt.RegisteredClaims{
		Subject:   "dashboard",
		IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc123"},
		{"empty bearer", "Bearer "},
		{"garbage token", "Bearer not.a.jwt"},
		{"wrong secret", "Bearer " + signToken(t, []byte("other-secret"), freshClaims("x"))},
		{"expired", "Bearer " + signToken(t, testSecret, expired)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := JWTMiddleware(testSecret, nil)
			called := false
			h := mw(wrappedHandler(&called))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			if called {
				t.Error("inner handler was reached on a rejected request")
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}
		})
	}
}

func TestJWTMiddleware_RejectsAlgorithmNone(t *testing.T) {
	// An unsigned token must never pass, even with plausible claims.
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, freshClaims("dashboard"))
	signed, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}

	mw := JWTMiddleware(testSecret, nil)
	called := false
	h := mw(wrappedHandler(&called))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized || called {
		t.Fatalf("status = %d called = %v, want 401 and not called", rec.Code, called)
	}
}

func TestClaimsFromContext_Absent(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := ClaimsFromContext(req.Context()); ok {
		t.Fatal("ClaimsFromContext = ok on a bare context, want false")
	}
}
