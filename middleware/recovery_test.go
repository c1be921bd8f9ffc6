package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))

	router := gin.New()
	router.Use(RequestID())
	router.Use(Recovery())
	router.GET("/panic", func(c *gin.Context) {
		panic("force evaluation blew up")
	})
	router.GET("/ok", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	t.Run("panic becomes 500 with request id", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/panic", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("Expected status 500, got %d", w.Code)
		}

		var resp map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp["error"] != "Internal server error" {
			t.Errorf("Unexpected error message %q", resp["error"])
		}
		// The response ID must match the one in the log line.
		if resp["request_id"] == "" {
			t.Error("Expected request_id in response")
		}
		logged := buf.String()
		if !strings.Contains(logged, "panic recovered") {
			t.Error("Expected panic to be logged")
		}
		if !strings.Contains(logged, resp["request_id"]) {
			t.Error("Log line does not carry the response's request id")
		}
		if !strings.Contains(logged, "force evaluation blew up") {
			t.Error("Log line does not carry the panic value")
		}
	})

	t.Run("normal request unaffected", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/ok", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}
	})
}
