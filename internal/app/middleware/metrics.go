package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mutuelle_http_requests_total",
			Help: "Общее количество HTTP-запросов",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mutuelle_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Metrics считает запросы в Prometheus. Метка route - шаблон маршрута gin, а не путь
func Metrics() gin.HandlerFunc {
	return func(gCtx *gin.Context) {
		start := time.Now()
		gCtx.Next()

		route := gCtx.FullPath()
		if route == "" {
			route = "unmatched"
		}

		httpRequestsTotal.WithLabelValues(gCtx.Request.Method, route, strconv.Itoa(gCtx.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(gCtx.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
