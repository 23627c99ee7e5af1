package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"mutuelle/internal/app/carrier"
	"mutuelle/internal/app/config"
	"mutuelle/internal/app/document"
	"mutuelle/internal/app/ds"
	"mutuelle/internal/app/dto"
	"mutuelle/internal/app/middleware"
	"mutuelle/internal/app/pricing"
	"mutuelle/internal/app/redis"
	"mutuelle/internal/app/repository"
	"mutuelle/internal/app/role"
	"mutuelle/internal/app/wizard"
)

// APIHandler содержит обработчики для REST API
type APIHandler struct {
	Repository  *repository.Repository
	RedisClient *redis.Client
	Carrier     *carrier.Client
	Wizard      *wizard.Service
	Documents   *document.Service
	AuthHandler *AuthHandler
	Config      *config.Config

	now func() time.Time
}

func NewAPIHandler(
	r *repository.Repository,
	redisClient *redis.Client,
	carrierClient *carrier.Client,
	documents *document.Service,
	authHandler *AuthHandler,
	cfg *config.Config,
) *APIHandler {
	return &APIHandler{
		Repository:  r,
		RedisClient: redisClient,
		Carrier:     carrierClient,
		Wizard:      wizard.NewService(carrierClient, r, documents),
		Documents:   documents,
		AuthHandler: authHandler,
		Config:      cfg,
		now:         time.Now,
	}
}

// Получение текущего пользователя из контекста
func (h *APIHandler) getUserFromContext(c *gin.Context) (uint, role.Role, error) {
	userID, exists := c.Get(middleware.ContextUserID)
	if !exists {
		logrus.Warn("userID not found in context")
		return 0, role.Customer, fmt.Errorf("user not authenticated")
	}

	userRole, _ := c.Get(middleware.ContextUserRole)
	r, _ := userRole.(role.Role)

	id, ok := userID.(uint)
	if !ok {
		logrus.Errorf("getUserFromContext: invalid userID type: %T", userID)
		return 0, r, fmt.Errorf("invalid user ID")
	}

	return id, r, nil
}

// canSeeAll сотрудники брокера видят подписки всех клиентов
func canSeeAll(r role.Role) bool {
	return r == role.Broker || r == role.Admin
}

// loadSubscription подписка из пути с проверкой владельца
func (h *APIHandler) loadSubscription(c *gin.Context, id string) (*ds.Subscription, bool) {
	userID, userRole, err := h.getUserFromContext(c)
	if err != nil {
		h.errorResponse(c, http.StatusUnauthorized, "Ошибка авторизации")
		return nil, false
	}

	sub, err := h.Repository.GetSubscription(id)
	if err != nil {
		h.handleError(c, err)
		return nil, false
	}
	if sub.UserID != userID && !canSeeAll(userRole) {
		// Чужую подписку не раскрываем
		h.errorResponse(c, http.StatusNotFound, "Подписка не найдена")
		return nil, false
	}
	return sub, true
}

// ============ Вспомогательные функции ============

func (h *APIHandler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, dto.ErrorResponse{
		Status:  "fail",
		Message: message,
	})
}

func (h *APIHandler) successResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	response := dto.SuccessResponse{
		Status:  "success",
		Message: message,
	}
	if data != nil {
		response.Data = data
	}
	c.JSON(statusCode, response)
}

// handleError переводит ошибки доменных пакетов в HTTP ответ.
// Сообщения страховщика отдаются как есть.
func (h *APIHandler) handleError(c *gin.Context, err error) {
	var validation pricing.ValidationErrors
	var apiErr *carrier.APIError

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, dto.ValidationErrorResponse{
			Status:  "fail",
			Message: validation.Error(),
			Errors:  validation,
		})
	case errors.Is(err, repository.ErrNotFound):
		h.errorResponse(c, http.StatusNotFound, "Запись не найдена")
	case errors.Is(err, redis.ErrQuoteNotFound):
		h.errorResponse(c, http.StatusNotFound, "Котировка не найдена или устарела")
	case errors.Is(err, document.ErrEmpty),
		errors.Is(err, document.ErrTooLarge),
		errors.Is(err, document.ErrInvalidType):
		h.errorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, wizard.ErrStepOutOfOrder),
		errors.Is(err, wizard.ErrCannotGoBack),
		errors.Is(err, wizard.ErrNotEditable),
		errors.Is(err, wizard.ErrDocumentsMissing),
		errors.Is(err, wizard.ErrContractNotValidated),
		errors.Is(err, repository.ErrInvalidStatus),
		errors.Is(err, repository.ErrStaleWizardState),
		errors.Is(err, document.ErrNoURL):
		h.errorResponse(c, http.StatusConflict, err.Error())
	case errors.As(err, &apiErr):
		status := http.StatusBadGateway
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusUnauthorized {
			status = http.StatusUnprocessableEntity
		}
		h.errorResponse(c, status, apiErr.Message)
	case errors.Is(err, carrier.ErrTransport):
		logrus.Error(err)
		h.errorResponse(c, http.StatusBadGateway, err.Error())
	case errors.Is(err, wizard.ErrUnknownStep), errors.Is(err, wizard.ErrInvalidPlan):
		logrus.Error(err)
		h.errorResponse(c, http.StatusBadGateway, err.Error())
	default:
		logrus.Error(err)
		h.errorResponse(c, http.StatusInternalServerError, "Внутренняя ошибка сервера")
	}
}

func toSubscriptionResponse(sub *ds.Subscription) dto.SubscriptionResponse {
	return dto.SubscriptionResponse{
		ID:                    sub.ID,
		UserID:                sub.UserID,
		Status:                string(sub.Status),
		ProductName:           sub.ProductName,
		FormulaName:           sub.FormulaName,
		Tier:                  sub.Tier,
		MonthlyPrice:          sub.MonthlyPrice,
		EffectiveDate:         sub.EffectiveDate.Format(time.DateOnly),
		CurrentStep:           sub.CurrentStep,
		StepCount:             sub.StepCount,
		LeadID:                sub.LeadID,
		CarrierSubscriptionID: sub.CarrierSubscriptionID,
		ContractIDs:           sub.ContractIDs,
		ContractsValidatedAt:  sub.ContractsValidatedAt,
		CreatedAt:             sub.CreatedAt,
		UpdatedAt:             sub.UpdatedAt,
	}
}

func toDocumentResponse(doc *ds.Document) dto.DocumentResponse {
	return dto.DocumentResponse{
		ID:             doc.ID,
		SubscriptionID: doc.SubscriptionID,
		Type:           string(doc.Type),
		Filename:       doc.Filename,
		ContentType:    doc.ContentType,
		Size:           doc.Size,
		CreatedAt:      doc.CreatedAt,
	}
}
