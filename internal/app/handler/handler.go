package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"mutuelle/internal/app/carrier"
	"mutuelle/internal/app/dto"
	"mutuelle/internal/app/redis"
	"mutuelle/internal/app/repository"
)

// Pinger объектное хранилище документов
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler служебные эндпоинты: ping, health, metrics
type Handler struct {
	Repository  *repository.Repository
	RedisClient *redis.Client
	Carrier     *carrier.Client
	Storage     Pinger // nil, если MinIO не настроен
}

func NewHandler(r *repository.Repository, redisClient *redis.Client, carrierClient *carrier.Client, storage Pinger) *Handler {
	return &Handler{
		Repository:  r,
		RedisClient: redisClient,
		Carrier:     carrierClient,
		Storage:     storage,
	}
}

// Регистрация служебных маршрутов
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/ping", h.Ping)
	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Ping проверяет работоспособность API
// @Summary Проверка работоспособности
// @Description Возвращает простой ответ для проверки работы сервера
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /ping [get]
func (h *Handler) Ping(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"message": "pong"})
}

// Health состояние зависимостей
// @Summary Состояние зависимостей
// @Description БД, Redis, API страховщика и хранилище документов. 503, если недоступна БД или Redis.
// @Tags Health
// @Produce json
// @Success 200 {object} dto.HealthResponse
// @Failure 503 {object} dto.HealthResponse
// @Router /health [get]
func (h *Handler) Health(ctx *gin.Context) {
	reqCtx := ctx.Request.Context()
	resp := dto.HealthResponse{Status: "ok", Storage: "database"}

	if err := h.Repository.Ping(); err != nil {
		logrus.Errorf("health: database: %v", err)
	} else {
		resp.Database = true
	}

	if err := h.RedisClient.Ping(reqCtx); err != nil {
		logrus.Errorf("health: redis: %v", err)
	} else {
		resp.Redis = true
	}

	// Недоступность страховщика не делает сервис нерабочим
	resp.Carrier = h.Carrier.HealthCheck(reqCtx)

	if h.Storage != nil {
		resp.Storage = "minio"
		if err := h.Storage.Ping(reqCtx); err != nil {
			logrus.Errorf("health: minio: %v", err)
			resp.Storage = "minio-unavailable"
		}
	}

	status := http.StatusOK
	switch {
	case !resp.Database || !resp.Redis:
		resp.Status = "fail"
		status = http.StatusServiceUnavailable
	case !resp.Carrier || resp.Storage == "minio-unavailable":
		resp.Status = "degraded"
	}
	ctx.JSON(status, resp)
}
