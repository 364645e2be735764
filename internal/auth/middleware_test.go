package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func defaultTestPolicy() DefaultPolicy {
	return NewDefaultPolicy(
		[]string{"/healthz", "/metrics", "/api/v1/auth/login"},
		[]string{"/api/v1/schemas", "/api/v1/sensor-types"},
	)
}

func TestAuthMiddleware_NoToken(t *testing.T) {
	secret := []byte("test-secret")
	mw := NewMiddleware(secret, defaultTestPolicy())
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/locations", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthMiddleware_ExemptPath(t *testing.T) {
	secret := []byte("test-secret")
	mw := NewMiddleware(secret, defaultTestPolicy())
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestAuthMiddleware_ViewerForbiddenCatalogPost(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "viewer@example.com", RoleViewer)
	mw := NewMiddleware(secret, defaultTestPolicy())
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/schemas", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestAuthMiddleware_OperatorForbiddenCatalogPost(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "operator@example.com", RoleOperator)
	mw := NewMiddleware(secret, defaultTestPolicy())
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sensor-types", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestAuthMiddleware_OperatorAllowedIngest(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "operator@example.com", RoleOperator)
	mw := NewMiddleware(secret, defaultTestPolicy())
	var gotSubject string
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject = SubjectFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sensors/readings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if gotSubject != "operator@example.com" {
		t.Fatalf("expected subject in context, got %q", gotSubject)
	}
}

func TestIssueAndParseJWT(t *testing.T) {
	secret := []byte("test-secret")
	token, err := IssueJWT("admin@example.com", RoleAdmin, secret, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := ParseJWT(token, secret)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "admin@example.com" || claims.Role != "admin" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := ParseJWT(token, []byte("wrong-secret")); err == nil {
		t.Fatal("expected signature error")
	}
}

func TestParseJWT_Expired(t *testing.T) {
	secret := []byte("test-secret")
	token, err := IssueJWT("admin@example.com", RoleAdmin, secret, -time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := ParseJWT(token, secret); err == nil {
		t.Fatal("expected expiry error")
	}
}

func mustToken(t *testing.T, secret []byte, email string, role Role) string {
	t.Helper()
	token, err := IssueJWT(email, role, secret, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}
