package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "mutuelle/docs"
	"mutuelle/internal/app/carrier"
	"mutuelle/internal/app/config"
	"mutuelle/internal/app/document"
	"mutuelle/internal/app/handler"
	"mutuelle/internal/app/middleware"
	"mutuelle/internal/app/redis"
	"mutuelle/internal/app/repository"
)

// Dependencies всё, что нужно для сборки роутера
type Dependencies struct {
	Config     *config.Config
	Repository *repository.Repository
	Redis      *redis.Client
	Carrier    *carrier.Client
	Documents  *document.Service
	Storage    handler.Pinger // nil без MinIO
}

// NewRouter собирает gin с middleware и всеми маршрутами
func NewRouter(d Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), middleware.Metrics())
	r.Use(cors.New(corsConfig(d.Config.CORSOrigins)))

	authHandler := handler.NewAuthHandler(d.Repository, d.Redis, d.Config)
	apiHandler := handler.NewAPIHandler(d.Repository, d.Redis, d.Carrier, d.Documents, authHandler, d.Config)
	systemHandler := handler.NewHandler(d.Repository, d.Redis, d.Carrier, d.Storage)
	authMiddleware := middleware.NewAuthMiddleware(d.Redis, d.Config)

	systemHandler.RegisterRoutes(r)
	apiHandler.RegisterAPIRoutes(r, authMiddleware)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}
