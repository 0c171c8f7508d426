package apitest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// dummyHandler is a placeholder that records if it was called and the context it received.
type dummyHandler struct {
	called bool
	ctx    context.Context
}

func (d *dummyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.called = true
	d.ctx = r.Context()
	w.WriteHeader(http.StatusOK)
}

func verifyFixed(token string) (int64, error) {
	if token == "good" {
		return 42, nil
	}
	return 0, errors.New("bad token")
}

func TestBearerAuth_PublicPathBypass(t *testing.T) {
	dummy := &dummyHandler{}
	h := bearerAuth(verifyFixed, "/auth/login")(dummy)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/auth/login", nil)
	h.ServeHTTP(rec, req)

	if !dummy.called {
		t.Error("expected next handler to be called for public path")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 OK, got %d", rec.Code)
	}
}

func TestBearerAuth_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{name: "no header", header: ""},
		{name: "wrong scheme", header: "Basic abc"},
		{name: "empty token", header: "Bearer "},
		{name: "invalid token", header: "Bearer nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dummy := &dummyHandler{}
			h := bearerAuth(verifyFixed)(dummy)
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/project", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			h.ServeHTTP(rec, req)

			if dummy.called {
				t.Error("did not expect next handler to be called")
			}
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401 Unauthorized, got %d", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), `"error"`) {
				t.Errorf("expected JSON error body, got %q", rec.Body.String())
			}
		})
	}
}

func TestBearerAuth_ValidToken(t *testing.T) {
	dummy := &dummyHandler{}
	h := bearerAuth(verifyFixed)(dummy)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/project", nil)
	req.Header.Set("Authorization", "Bearer good")
	h.ServeHTTP(rec, req)

	if !dummy.called {
		t.Fatal("expected next handler to be called with a valid token")
	}
	id, ok := userIDFromContext(dummy.ctx)
	if !ok || id != 42 {
		t.Errorf("expected context user 42, got %d (ok=%v)", id, ok)
	}
}

func TestUserIDFromContext(t *testing.T) {
	if _, ok := userIDFromContext(context.Background()); ok {
		t.Error("expected no user in empty context")
	}
	ctx := context.WithValue(context.Background(), userKey, int64(7))
	if id, ok := userIDFromContext(ctx); !ok || id != 7 {
		t.Errorf("expected 7, got %d", id)
	}
}
