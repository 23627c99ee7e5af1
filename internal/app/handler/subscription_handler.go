package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mutuelle/internal/app/ds"
	"mutuelle/internal/app/dto"
	"mutuelle/internal/app/pricing"
	"mutuelle/internal/app/wizard"
)

// StartSubscription создаёт подписку по сохранённой котировке
// @Summary Начало оформления подписки
// @Description Шаги cart и subscription: создаёт лид и подписку у страховщика и сохраняет черновик
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.StartSubscriptionRequest true "Котировка и выбранная формула"
// @Success 201 {object} dto.WizardStateResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /api/subscriptions [post]
func (h *APIHandler) StartSubscription(c *gin.Context) {
	userID, _, err := h.getUserFromContext(c)
	if err != nil {
		h.errorResponse(c, http.StatusUnauthorized, "Ошибка авторизации")
		return
	}

	var req dto.StartSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "Неверные данные: "+err.Error())
		return
	}

	session, ok := h.loadQuote(c, req.QuoteID)
	if !ok {
		return
	}

	sub, err := h.Wizard.Start(c.Request.Context(), wizard.StartRequest{
		UserID:           userID,
		QuoteID:          req.QuoteID,
		Quote:            session.Request,
		Tier:             pricing.Tier(req.Tier),
		WithFuneral:      req.WithFuneral,
		WithCancellation: req.WithCancellation,
		Email:            req.Email,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Phone:            req.Phone,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	h.respondState(c, http.StatusCreated, sub.ID)
}

// GetSubscriptions личный кабинет: список подписок
// @Summary Список подписок
// @Description Клиент видит свои подписки, сотрудники брокера все
// @Tags Subscriptions
// @Produce json
// @Security BearerAuth
// @Param status query string false "Фильтр по статусу (draft, pending, active, cancelled)"
// @Success 200 {object} dto.SubscriptionListResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/subscriptions [get]
func (h *APIHandler) GetSubscriptions(c *gin.Context) {
	userID, userRole, err := h.getUserFromContext(c)
	if err != nil {
		h.errorResponse(c, http.StatusUnauthorized, "Ошибка авторизации")
		return
	}

	status := ds.SubscriptionStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		h.errorResponse(c, http.StatusBadRequest, "Неверный статус")
		return
	}

	var owner *uint
	if !canSeeAll(userRole) {
		owner = &userID
	}

	subs, err := h.Repository.ListSubscriptions(owner, status)
	if err != nil {
		h.handleError(c, err)
		return
	}

	resp := dto.SubscriptionListResponse{
		Subscriptions: make([]dto.SubscriptionResponse, 0, len(subs)),
		Total:         len(subs),
	}
	for i := range subs {
		resp.Subscriptions = append(resp.Subscriptions, toSubscriptionResponse(&subs[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// GetSubscription подписка и состояние мастера
// @Summary Подписка
// @Tags Subscriptions
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID подписки"
// @Success 200 {object} dto.WizardStateResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/subscriptions/{id} [get]
func (h *APIHandler) GetSubscription(c *gin.Context) {
	sub, ok := h.loadSubscription(c, c.Param("id"))
	if !ok {
		return
	}
	h.respondState(c, http.StatusOK, sub.ID)
}

// SubmitConcern шаг «страхуемый»
// @Summary Шаг stepconcern
// @Tags Wizard
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID подписки"
// @Param request body wizard.ConcernInput true "Данные страхуемого"
// @Success 200 {object} dto.WizardStateResponse
// @Failure 400 {object} dto.ValidationErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /api/subscriptions/{id}/steps/concern [put]
func (h *APIHandler) SubmitConcern(c *gin.Context) {
	var in wizard.ConcernInput
	submitStep(h, c, &in, func(id string) (*ds.Subscription, error) {
		return h.Wizard.SubmitConcern(c.Request.Context(), id, in)
	})
}

// SubmitBank шаг «банковские реквизиты»
// @Summary Шаг stepbank
// @Tags Wizard
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID подписки"
// @Param request body wizard.BankInput true "IBAN и BIC"
// @Success 200 {object} dto.WizardStateResponse
// @Failure 400 {object} dto.ValidationErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /api/subscriptions/{id}/steps/bank [put]
func (h *APIHandler) SubmitBank(c *gin.Context) {
	var in wizard.BankInput
	submitStep(h, c, &in, func(id string) (*ds.Subscription, error) {
		return h.Wizard.SubmitBank(c.Request.Context(), id, in)
	})
}

// SubmitFuneral шаг похоронной гарантии
// @Summary Шаг stepfuneral
// @Tags Wizard
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID подписки"
// @Param request body wizard.FuneralInput true "Бенефициар и капитал"
// @Success 200 {object} dto.WizardStateResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/subscriptions/{id}/steps/funeral [put]
func (h *APIHandler) SubmitFuneral(c *gin.Context) {
	var in wizard.FuneralInput
	submitStep(h, c, &in, func(id string) (*ds.Subscription, error) {
		return h.Wizard.SubmitFuneral(c.Request.Context(), id, in)
	})
}

// SubmitCancellation шаг расторжения прежнего контракта
// @Summary Шаг stepcancellation
// @Tags Wizard
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID подписки"
// @Param request body wizard.CancellationInput true "Прежний страховщик"
// @Success 200 {object} dto.WizardStateResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/subscriptions/{id}/steps/cancellation [put]
func (h *APIHandler) SubmitCancellation(c *gin.Context) {
	var in wizard.CancellationInput
	submitStep(h, c, &in, func(id string) (*ds.Subscription, error) {
		return h.Wizard.SubmitCancellation(c.Request.Context(), id, in)
	})
}

func submitStep[T any](h *APIHandler, c *gin.Context, in *T, submit func(id string) (*ds.Subscription, error)) {
	sub, ok := h.loadSubscription(c, c.Param("id"))
	if !ok {
		return
	}
	if err := c.ShouldBindJSON(in); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "Неверные данные: "+err.Error())
		return
	}

	if _, err := submit(sub.ID); err != nil {
		h.handleError(c, err)
		return
	}
	h.respondState(c, http.StatusOK, sub.ID)
}

// BackStep возврат на предыдущий шаг
// @Summary Предыдущий шаг мастера
// @Tags Wizard
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID подписки"
// @Success 200 {object} dto.WizardStateResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/subscriptions/{id}/back [put]
func (h *APIHandler) BackStep(c *gin.Context) {
	sub, ok := h.loadSubscription(c, c.Param("id"))
	if !ok {
		return
	}
	if _, err := h.Wizard.Back(sub.ID); err != nil {
		h.handleError(c, err)
		return
	}
	h.respondState(c, http.StatusOK, sub.ID)
}

// CompleteSubscription завершение оформления
// @Summary Завершение оформления
// @Description Валидирует контракты у страховщика и переводит подписку в статус pending. Нужны загруженные обязательные документы.
// @Tags Wizard
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID подписки"
// @Success 200 {object} dto.WizardStateResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /api/subscriptions/{id}/complete [put]
func (h *APIHandler) CompleteSubscription(c *gin.Context) {
	sub, ok := h.loadSubscription(c, c.Param("id"))
	if !ok {
		return
	}
	if _, err := h.Wizard.Complete(c.Request.Context(), sub.ID); err != nil {
		h.handleError(c, err)
		return
	}
	h.respondState(c, http.StatusOK, sub.ID)
}

// CancelSubscription отмена подписки
// @Summary Отмена подписки
// @Tags Subscriptions
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID подписки"
// @Success 200 {object} dto.SuccessResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/subscriptions/{id}/cancel [put]
func (h *APIHandler) CancelSubscription(c *gin.Context) {
	h.changeStatus(c, ds.StatusCancelled, "Подписка отменена")
}

// ActivateSubscription активация подписки после подтверждения страховщиком
// @Summary Активация подписки
// @Tags Subscriptions
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID подписки"
// @Success 200 {object} dto.SuccessResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/subscriptions/{id}/activate [put]
func (h *APIHandler) ActivateSubscription(c *gin.Context) {
	h.changeStatus(c, ds.StatusActive, "Подписка активирована")
}

func (h *APIHandler) changeStatus(c *gin.Context, to ds.SubscriptionStatus, message string) {
	sub, ok := h.loadSubscription(c, c.Param("id"))
	if !ok {
		return
	}
	if err := h.Repository.UpdateSubscriptionStatus(sub.ID, to); err != nil {
		h.handleError(c, err)
		return
	}

	updated, err := h.Repository.GetSubscription(sub.ID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	h.successResponse(c, http.StatusOK, message, toSubscriptionResponse(updated))
}

func (h *APIHandler) respondState(c *gin.Context, status int, id string) {
	state, err := h.Wizard.State(id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	resp := dto.WizardStateResponse{
		Subscription:      toSubscriptionResponse(state.Subscription),
		CurrentStep:       string(state.Current),
		StepIndex:         state.StepIndex,
		StepCount:         state.StepCount,
		Steps:             make([]string, len(state.Steps)),
		RequiredDocuments: make([]string, len(state.RequiredDocuments)),
		UploadedDocuments: make([]string, len(state.UploadedDocuments)),
	}
	for i, s := range state.Steps {
		resp.Steps[i] = string(s)
	}
	for i, t := range state.RequiredDocuments {
		resp.RequiredDocuments[i] = string(t)
	}
	for i, t := range state.UploadedDocuments {
		resp.UploadedDocuments[i] = string(t)
	}
	c.JSON(status, resp)
}
