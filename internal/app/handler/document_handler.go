package handler

import (
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"mutuelle/internal/app/document"
	"mutuelle/internal/app/ds"
	"mutuelle/internal/app/dto"
)

// UploadDocument загрузка подписанного документа
// @Summary Загрузка документа
// @Description Документ отправляется страховщику и сохраняется в MinIO (или в БД, если MinIO не настроен)
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID подписки"
// @Param type formData string true "Тип документа (bulletin_adhesion, mandat_sepa, mandat_resiliation, documents_preremplis)"
// @Param file formData file true "Файл документа"
// @Success 201 {object} dto.DocumentResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /api/subscriptions/{id}/documents [post]
func (h *APIHandler) UploadDocument(c *gin.Context) {
	sub, ok := h.loadSubscription(c, c.Param("id"))
	if !ok {
		return
	}

	docType := ds.DocumentType(c.PostForm("type"))
	if !docType.Valid() {
		h.errorResponse(c, http.StatusBadRequest, "Неверный тип документа")
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, "Файл не найден в запросе")
		return
	}
	if file.Size > document.MaxSize {
		h.errorResponse(c, http.StatusBadRequest, "Файл больше 10 МБ")
		return
	}

	openedFile, err := file.Open()
	if err != nil {
		h.errorResponse(c, http.StatusInternalServerError, "Ошибка чтения файла")
		return
	}
	defer openedFile.Close()

	fileData, err := io.ReadAll(io.LimitReader(openedFile, document.MaxSize+1))
	if err != nil {
		h.errorResponse(c, http.StatusInternalServerError, "Ошибка чтения файла")
		return
	}

	doc, err := h.Wizard.UploadDocument(c.Request.Context(), sub.ID, docType, file.Filename, fileData)
	if err != nil {
		h.handleError(c, err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"subscription": sub.ID,
		"type":         docType,
		"size":         doc.Size,
	}).Info("document uploaded")

	c.JSON(http.StatusCreated, toDocumentResponse(doc))
}

// GetDocuments документы подписки
// @Summary Список документов подписки
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID подписки"
// @Success 200 {object} dto.DocumentListResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/subscriptions/{id}/documents [get]
func (h *APIHandler) GetDocuments(c *gin.Context) {
	sub, ok := h.loadSubscription(c, c.Param("id"))
	if !ok {
		return
	}

	docs, err := h.Documents.List(sub.ID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	resp := dto.DocumentListResponse{
		Documents: make([]dto.DocumentResponse, 0, len(docs)),
		Total:     len(docs),
	}
	for i := range docs {
		resp.Documents = append(resp.Documents, toDocumentResponse(&docs[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// DownloadDocument скачивание документа
// @Summary Скачивание документа
// @Tags Documents
// @Produce octet-stream
// @Security BearerAuth
// @Param id path string true "ID документа"
// @Success 200 {file} file
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/documents/{id} [get]
func (h *APIHandler) DownloadDocument(c *gin.Context) {
	meta, ok := h.loadDocument(c)
	if !ok {
		return
	}

	_, data, err := h.Documents.Open(c.Request.Context(), meta.ID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": meta.Filename})
	if disposition == "" {
		disposition = "attachment"
	}
	c.Header("Content-Disposition", disposition)
	c.Data(http.StatusOK, meta.ContentType, data)
}

// GetDocumentURL временная ссылка на документ в MinIO
// @Summary Ссылка на документ
// @Description Только для документов в MinIO; ссылка действует час
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID документа"
// @Success 200 {object} dto.DocumentURLResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/documents/{id}/url [get]
func (h *APIHandler) GetDocumentURL(c *gin.Context) {
	meta, ok := h.loadDocument(c)
	if !ok {
		return
	}

	url, err := h.Documents.URL(c.Request.Context(), meta.ID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.DocumentURLResponse{
		URL:       url,
		ExpiresAt: h.now().Add(time.Hour),
	})
}

// DeleteDocument удаление документа
// @Summary Удаление документа
// @Description Документ удаляется только по действию пользователя и только пока подписка в черновике
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID документа"
// @Success 200 {object} dto.SuccessResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/documents/{id} [delete]
func (h *APIHandler) DeleteDocument(c *gin.Context) {
	meta, ok := h.loadDocument(c)
	if !ok {
		return
	}

	sub, err := h.Repository.GetSubscription(meta.SubscriptionID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	if sub.Status != ds.StatusDraft {
		h.errorResponse(c, http.StatusConflict, "Документы завершённой подписки нельзя удалить")
		return
	}

	if err := h.Documents.Delete(c.Request.Context(), meta.ID); err != nil {
		h.handleError(c, err)
		return
	}
	h.successResponse(c, http.StatusOK, "Документ удалён", nil)
}

// loadDocument документ из пути с проверкой владельца подписки
func (h *APIHandler) loadDocument(c *gin.Context) (*ds.Document, bool) {
	meta, err := h.Documents.Get(c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return nil, false
	}
	if _, ok := h.loadSubscription(c, meta.SubscriptionID); !ok {
		return nil, false
	}
	return meta, true
}
