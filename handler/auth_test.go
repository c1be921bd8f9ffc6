package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/Safi-ullah-majid/Molecular-Complex-Analysis/config"
	"github.com/Safi-ullah-majid/Molecular-Complex-Analysis/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testAuthRouterConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:        "test-secret",
			TokenExpireHours: 24,
		},
		Users: []config.User{
			{Username: "chemist", Password: "benzene!", Tenant: "lab-a"},
		},
	}
}

func newAuthRouter(cfg *config.Config) *gin.Engine {
	h := NewAuthHandler(cfg)
	router := gin.New()
	router.POST("/api/login", h.Login)
	router.GET("/api/me", middleware.AuthMiddleware(&cfg.Auth), h.GetCurrentUser)
	return router
}

func TestLogin(t *testing.T) {
	cfg := testAuthRouterConfig()
	router := newAuthRouter(cfg)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"valid credentials", `{"username":"chemist","password":"benzene!"}`, http.StatusOK},
		{"unknown user", `{"username":"ghost","password":"benzene!"}`, http.StatusUnauthorized},
		{"wrong password", `{"username":"chemist","password":"toluene?"}`, http.StatusUnauthorized},
		{"missing password", `{"username":"chemist"}`, http.StatusBadRequest},
		{"not json", `username=chemist`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/login", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
		})
	}
}

func TestLoginResponseFields(t *testing.T) {
	cfg := testAuthRouterConfig()
	router := newAuthRouter(cfg)

	req := httptest.NewRequest("POST", "/api/login", bytes.NewBufferString(`{"username":"chemist","password":"benzene!"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Login failed: %d %s", w.Code, w.Body.String())
	}

	var resp LoginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.Token == "" {
		t.Error("Expected non-empty token")
	}
	if resp.ExpiresAt == "" {
		t.Error("Expected expires_at to be set")
	}
	if resp.Username != "chemist" {
		t.Errorf("Expected username chemist, got %q", resp.Username)
	}
	if resp.Tenant != "lab-a" {
		t.Errorf("Expected tenant lab-a, got %q", resp.Tenant)
	}
}

func TestLoginRejectionsIdentical(t *testing.T) {
	// Unknown user and wrong password must be indistinguishable to the
	// caller, otherwise the endpoint enumerates usernames.
	cfg := testAuthRouterConfig()
	router := newAuthRouter(cfg)

	bodies := map[string]string{
		"unknown user":   `{"username":"ghost","password":"benzene!"}`,
		"wrong password": `{"username":"chemist","password":"toluene?"}`,
	}

	responses := make(map[string]string)
	for name, body := range bodies {
		req := httptest.NewRequest("POST", "/api/login", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, w.Code)
		}
		responses[name] = w.Body.String()
	}

	if responses["unknown user"] != responses["wrong password"] {
		t.Errorf("Rejection bodies differ: %q vs %q", responses["unknown user"], responses["wrong password"])
	}
}

func TestGetCurrentUser(t *testing.T) {
	cfg := testAuthRouterConfig()
	router := newAuthRouter(cfg)

	token, _, err := middleware.GenerateToken("chemist", "lab-a", &cfg.Auth)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["username"] != "chemist" {
		t.Errorf("Expected username chemist, got %q", resp["username"])
	}
	if resp["tenant"] != "lab-a" {
		t.Errorf("Expected tenant lab-a, got %q", resp["tenant"])
	}
}

func TestGetCurrentUserUnauthenticated(t *testing.T) {
	cfg := testAuthRouterConfig()
	router := newAuthRouter(cfg)

	req := httptest.NewRequest("GET", "/api/me", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", w.Code)
	}
}
