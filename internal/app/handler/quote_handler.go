package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"mutuelle/internal/app/dto"
	"mutuelle/internal/app/pricing"
)

// quoteSession запрос котировки между страницами котировки и подписки
type quoteSession struct {
	Request   pricing.QuoteRequest `json:"request"`
	CreatedAt time.Time            `json:"created_at"`
}

// CreateQuote рассчитывает котировку
// @Summary Расчёт котировки
// @Description Проверяет данные страхуемых и возвращает три формулы с ценой в месяц. Запрос сохраняется для оформления подписки.
// @Tags Quotes
// @Accept json
// @Produce json
// @Param request body pricing.QuoteRequest true "Данные для расчёта"
// @Success 201 {object} dto.QuoteResponse
// @Failure 400 {object} dto.ValidationErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/quotes [post]
func (h *APIHandler) CreateQuote(c *gin.Context) {
	var req pricing.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "Неверные данные: "+err.Error())
		return
	}

	now := h.now()
	offers, err := pricing.Calculate(req, now)
	if err != nil {
		h.handleError(c, err)
		return
	}

	quoteID := uuid.NewString()
	ttl := h.Config.Quote.TTL
	if err := h.RedisClient.SaveQuote(c.Request.Context(), quoteID, quoteSession{Request: req, CreatedAt: now}, ttl); err != nil {
		logrus.Error("Error saving quote: ", err)
		h.errorResponse(c, http.StatusInternalServerError, "Ошибка сохранения котировки")
		return
	}

	c.JSON(http.StatusCreated, dto.QuoteResponse{
		QuoteID:   quoteID,
		ExpiresAt: now.Add(ttl),
		Offers:    offers,
	})
}

// GetQuote возвращает сохранённую котировку с пересчётом цен
// @Summary Получение котировки
// @Tags Quotes
// @Produce json
// @Param id path string true "ID котировки"
// @Success 200 {object} dto.QuoteResponse
// @Failure 400 {object} dto.ValidationErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/quotes/{id} [get]
func (h *APIHandler) GetQuote(c *gin.Context) {
	session, ok := h.loadQuote(c, c.Param("id"))
	if !ok {
		return
	}

	offers, err := pricing.Calculate(session.Request, h.now())
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.QuoteResponse{
		QuoteID:   c.Param("id"),
		ExpiresAt: session.CreatedAt.Add(h.Config.Quote.TTL),
		Offers:    offers,
	})
}

func (h *APIHandler) loadQuote(c *gin.Context, id string) (*quoteSession, bool) {
	if _, err := uuid.Parse(id); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "Неверный ID котировки")
		return nil, false
	}

	var session quoteSession
	if err := h.RedisClient.LoadQuote(c.Request.Context(), id, &session); err != nil {
		h.handleError(c, err)
		return nil, false
	}
	return &session, true
}

// GetProducts список продуктов страховщика
// @Summary Продукты страховщика
// @Tags Quotes
// @Produce json
// @Success 200 {object} dto.ProductListResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /api/products [get]
func (h *APIHandler) GetProducts(c *gin.Context) {
	products, err := h.Carrier.ListProducts(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ProductListResponse{
		Products: products,
		Total:    len(products),
	})
}

// GetSaleDocuments документы продажи продукта (условия, формы для подписи)
// @Summary Документы продажи
// @Tags Quotes
// @Produce json
// @Param id path string true "ID продукта"
// @Success 200 {object} dto.SaleDocumentListResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /api/products/{id}/documents [get]
func (h *APIHandler) GetSaleDocuments(c *gin.Context) {
	productID := c.Param("id")
	docs, err := h.Carrier.SaleDocuments(c.Request.Context(), productID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SaleDocumentListResponse{
		ProductID: productID,
		Documents: docs,
	})
}
