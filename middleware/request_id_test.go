package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/Safi-ullah-majid/Molecular-Complex-Analysis/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestIDGenerated(t *testing.T) {
	var seenInContext string
	router := gin.New()
	router.Use(RequestID())
	router.GET("/status", func(c *gin.Context) {
		seenInContext, _ = c.Request.Context().Value(logger.RequestIDKey).(string)
		c.JSON(http.StatusOK, gin.H{"request_id": GetRequestID(c)})
	})

	req := httptest.NewRequest("GET", "/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	headerID := w.Header().Get("X-Request-ID")
	if headerID == "" {
		t.Fatal("Expected X-Request-ID header to be set")
	}
	// The same ID must reach the request context for the logger.
	if seenInContext != headerID {
		t.Errorf("Context ID %q differs from header ID %q", seenInContext, headerID)
	}
}

func TestRequestIDFromClient(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"request_id": GetRequestID(c)})
	})

	// A client correlating its submit and poll calls supplies its own ID.
	clientID := "poll-correlation-17"
	req := httptest.NewRequest("GET", "/status", nil)
	req.Header.Set("X-Request-ID", clientID)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != clientID {
		t.Errorf("Expected request ID %q echoed, got %q", clientID, got)
	}
}

func TestGetRequestIDEmpty(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if id := GetRequestID(c); id != "" {
		t.Errorf("Expected empty string without middleware, got %q", id)
	}
}
