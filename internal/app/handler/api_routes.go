package handler

import (
	"github.com/gin-gonic/gin"

	"mutuelle/internal/app/middleware"
	"mutuelle/internal/app/role"
)

// RegisterAPIRoutes регистрирует все REST API маршруты с авторизацией
func (h *APIHandler) RegisterAPIRoutes(router *gin.Engine, authMiddleware *middleware.AuthMiddleware) {
	api := router.Group("/api")

	anyUser := authMiddleware.WithAuthCheck(role.Customer, role.Broker, role.Admin)

	// ============ Котировки - публичные ============
	api.POST("/quotes", h.CreateQuote)
	api.GET("/quotes/:id", h.GetQuote)
	api.GET("/products", h.GetProducts)
	api.GET("/products/:id/documents", h.GetSaleDocuments)

	// ============ Подписки и мастер оформления ============
	subscriptions := api.Group("/subscriptions")
	subscriptions.Use(anyUser)
	{
		subscriptions.POST("", h.StartSubscription)
		subscriptions.GET("", h.GetSubscriptions)
		subscriptions.GET("/:id", h.GetSubscription)

		subscriptions.PUT("/:id/steps/concern", h.SubmitConcern)
		subscriptions.PUT("/:id/steps/bank", h.SubmitBank)
		subscriptions.PUT("/:id/steps/funeral", h.SubmitFuneral)
		subscriptions.PUT("/:id/steps/cancellation", h.SubmitCancellation)
		subscriptions.PUT("/:id/back", h.BackStep)
		subscriptions.PUT("/:id/complete", h.CompleteSubscription)
		subscriptions.PUT("/:id/cancel", h.CancelSubscription)

		subscriptions.POST("/:id/documents", h.UploadDocument)
		subscriptions.GET("/:id/documents", h.GetDocuments)
	}
	// Только администратор подтверждает активацию у страховщика
	api.PUT("/subscriptions/:id/activate", authMiddleware.WithAuthCheck(role.Admin), h.ActivateSubscription)

	documents := api.Group("/documents")
	documents.Use(anyUser)
	{
		documents.GET("/:id", h.DownloadDocument)
		documents.GET("/:id/url", h.GetDocumentURL)
		documents.DELETE("/:id", h.DeleteDocument)
	}

	// ============ Аутентификация ============
	auth := api.Group("/auth")
	{
		auth.POST("/register", h.AuthHandler.RegisterUser)
		auth.POST("/login", h.AuthHandler.LoginUser)

		auth.GET("/profile", anyUser, h.AuthHandler.GetUserProfile)
		auth.PUT("/profile", anyUser, h.AuthHandler.UpdateProfile)
		auth.POST("/logout", anyUser, h.AuthHandler.LogoutUser)
	}
}
