package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_UsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	r.GET("/api/subscriptions/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	counter := httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/subscriptions/:id", "200")
	before := testutil.ToFloat64(counter)
	unmatched := httpRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")
	beforeUnmatched := testutil.ToFloat64(unmatched)

	for _, path := range []string{"/api/subscriptions/a", "/api/subscriptions/b", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
	assert.Equal(t, beforeUnmatched+1, testutil.ToFloat64(unmatched))
}
