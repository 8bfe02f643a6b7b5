package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func request(origins []string, method, origin string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(origins))
	r.GET("/work-orders", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, "/work-orders", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestCORSAllowsConfiguredOrigins(t *testing.T) {
	origins := []string{"https://console.rs-example.org/", "https://*.hospital.example"}

	w := request(origins, http.MethodGet, "https://console.rs-example.org")
	assert.Equal(t, "https://console.rs-example.org", w.Header().Get("Access-Control-Allow-Origin"))

	w = request(origins, http.MethodGet, "https://ward.hospital.example")
	assert.Equal(t, "https://ward.hospital.example", w.Header().Get("Access-Control-Allow-Origin"))

	w = request(origins, http.MethodGet, "http://ward.hospital.example")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = request(origins, http.MethodGet, "https://evil.example")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	w := request(nil, http.MethodOptions, "https://any.example")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://any.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Hospital-ID")
}
