package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestAllow_ExhaustsPerKeyBucket(t *testing.T) {
	l := NewSimpleTokenBucket(2, 2)

	assert.True(t, l.allow("1.2.3.4"))
	assert.True(t, l.allow("1.2.3.4"))
	assert.False(t, l.allow("1.2.3.4"))

	// A different client has its own bucket.
	assert.True(t, l.allow("5.6.7.8"))
}

func TestGinMiddleware_SkipsExemptPaths(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(NewSimpleTokenBucket(1, 1).GinMiddleware("/ws"))
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.GET("/ws", ok)
	r.GET("/limited", ok)

	// The exempt path never consumes tokens, however often it is hit.
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/limited", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/limited", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
