package handler

import (
	"bytes"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mutuelle/internal/app/auth"
	"mutuelle/internal/app/carrier"
	"mutuelle/internal/app/config"
	"mutuelle/internal/app/document"
	"mutuelle/internal/app/dto"
	"mutuelle/internal/app/middleware"
	"mutuelle/internal/app/redis"
	"mutuelle/internal/app/repository"
	"mutuelle/internal/app/role"
)

type testServer struct {
	router *gin.Engine
	repo   *repository.Repository
	redis  *miniredis.Miniredis
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithCarrier(t, carrier.New(carrier.Config{SimulationMode: true}))
}

func newTestServerWithCarrier(t *testing.T, carrierClient *carrier.Client) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	repo, err := repository.NewWithDB(db)
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	redisClient := redis.NewFromClient(rdb)

	cfg := &config.Config{
		Quote: config.QuoteConfig{TTL: time.Hour},
		JWT: config.JWTConfig{
			Token:         "test-secret",
			ExpiresIn:     time.Hour,
			SigningMethod: jwt.SigningMethodHS256,
		},
	}

	documents := document.NewService(repo, nil)

	r := gin.New()
	authHandler := NewAuthHandler(repo, redisClient, cfg)
	apiHandler := NewAPIHandler(repo, redisClient, carrierClient, documents, authHandler, cfg)
	NewHandler(repo, redisClient, carrierClient, nil).RegisterRoutes(r)
	apiHandler.RegisterAPIRoutes(r, middleware.NewAuthMiddleware(redisClient, cfg))

	return &testServer{router: r, repo: repo, redis: mr}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) upload(t *testing.T, subID, token, docType string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	return s.uploadNamed(t, subID, token, docType, docType+".pdf", content)
}

func (s *testServer) uploadNamed(t *testing.T, subID, token, docType, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("type", docType))
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/subscriptions/"+subID+"/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *testServer) register(t *testing.T, email string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/auth/register", "", dto.RegisterRequest{
		Email:    email,
		Password: "motdepasse",
		FullName: "Jean Martin",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeBody[dto.LoginResponse](t, w).Token
}

func (s *testServer) seedStaff(t *testing.T, email string, r role.Role) string {
	t.Helper()
	hash, err := auth.HashPassword("motdepasse")
	require.NoError(t, err)
	_, err = s.repo.CreateUser(email, hash, "Staff", r)
	require.NoError(t, err)

	w := s.do(t, http.MethodPost, "/api/auth/login", "", dto.LoginRequest{Email: email, Password: "motdepasse"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decodeBody[dto.LoginResponse](t, w).Token
}

func effectiveDate() string {
	return time.Now().AddDate(0, 1, 0).Format(time.DateOnly)
}

func (s *testServer) createQuote(t *testing.T) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/quotes", "", map[string]any{
		"birth_year":     1990,
		"postal_code":    "75011",
		"regime":         "Salarié",
		"effective_date": effectiveDate(),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeBody[dto.QuoteResponse](t, w).QuoteID
}

func (s *testServer) start(t *testing.T, token, quoteID, tier string) dto.WizardStateResponse {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/subscriptions", token, dto.StartSubscriptionRequest{
		QuoteID:   quoteID,
		Tier:      tier,
		Email:     "jean.martin@example.fr",
		FirstName: "Jean",
		LastName:  "Martin",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeBody[dto.WizardStateResponse](t, w)
}

var (
	concernBody = map[string]any{
		"civility":               "M",
		"first_name":             "Jean",
		"last_name":              "Martin",
		"birth_date":             "1990-05-12",
		"social_security_number": "190057512345678",
		"address":                "12 rue Oberkampf",
		"postal_code":            "75011",
		"city":                   "Paris",
		"email":                  "jean.martin@example.fr",
	}
	bankBody = map[string]any{
		"account_holder": "Jean Martin",
		"iban":           "FR7630006000011234567890189",
		"bic":            "AGRIFRPP",
	}
)

func TestQuotes(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/quotes", "", map[string]any{
		"birth_year":     1990,
		"postal_code":    "7501",
		"regime":         "Salarié",
		"effective_date": effectiveDate(),
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	verr := decodeBody[dto.ValidationErrorResponse](t, w)
	assert.Equal(t, "fail", verr.Status)
	require.Len(t, verr.Errors, 1)
	assert.Equal(t, "postal_code", verr.Errors[0].Field)

	quoteID := s.createQuote(t)
	w = s.do(t, http.MethodGet, "/api/quotes/"+quoteID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	quote := decodeBody[dto.QuoteResponse](t, w)
	assert.Equal(t, quoteID, quote.QuoteID)
	assert.Len(t, quote.Offers, 3)

	// Котировка живёт в Redis ограниченное время
	s.redis.FastForward(2 * time.Hour)
	w = s.do(t, http.MethodGet, "/api/quotes/"+quoteID, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/quotes/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProducts(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/products", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[dto.ProductListResponse](t, w)
	assert.NotZero(t, resp.Total)

	w = s.do(t, http.MethodGet, "/api/products/sante-particuliers/documents", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decodeBody[dto.SaleDocumentListResponse](t, w).Documents)

	w = s.do(t, http.MethodGet, "/api/products/unknown/documents", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestCarrierUnavailable(t *testing.T) {
	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	s := newTestServerWithCarrier(t, carrier.New(carrier.Config{BaseURL: closedURL, Timeout: time.Second}))
	hook := logtest.NewGlobal()
	t.Cleanup(hook.Reset)

	w := s.do(t, http.MethodGet, "/api/products", "", nil)
	require.Equal(t, http.StatusBadGateway, w.Code)
	resp := decodeBody[dto.ErrorResponse](t, w)
	assert.Equal(t, "fail", resp.Status)
	assert.Contains(t, resp.Message, "carrier unavailable")
	assert.Contains(t, resp.Message, "/auth/token")

	errorEntries := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel {
			errorEntries++
		}
	}
	assert.Equal(t, 1, errorEntries, "transport failure is logged once")

	// Оформление подписки тоже получает 502 с текстом ошибки
	token := s.register(t, "jean@example.fr")
	w = s.do(t, http.MethodPost, "/api/subscriptions", token, dto.StartSubscriptionRequest{
		QuoteID:   s.createQuote(t),
		Tier:      "confort",
		Email:     "jean.martin@example.fr",
		FirstName: "Jean",
		LastName:  "Martin",
	})
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, decodeBody[dto.ErrorResponse](t, w).Message, "carrier unavailable")
}

func TestAuth_RegisterLoginLogout(t *testing.T) {
	s := newTestServer(t)

	token := s.register(t, "jean@example.fr")

	w := s.do(t, http.MethodPost, "/api/auth/register", "", dto.RegisterRequest{
		Email: "jean@example.fr", Password: "motdepasse", FullName: "Jean",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/api/auth/login", "", dto.LoginRequest{Email: "jean@example.fr", Password: "mauvais"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/auth/profile", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	profile := decodeBody[dto.UserResponse](t, w)
	assert.Equal(t, "jean@example.fr", profile.Email)
	assert.Equal(t, role.Customer.String(), profile.Role)

	w = s.do(t, http.MethodPut, "/api/auth/profile", token, dto.UpdateUserRequest{Phone: "0612345678"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0612345678", decodeBody[dto.UserResponse](t, w).Phone)

	w = s.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Отозванный токен больше не принимается
	w = s.do(t, http.MethodGet, "/api/auth/profile", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/subscriptions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSubscription_FullFlow(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "jean@example.fr")
	quoteID := s.createQuote(t)

	state := s.start(t, token, quoteID, "confort")
	subID := state.Subscription.ID
	assert.Equal(t, "draft", state.Subscription.Status)
	assert.Equal(t, "stepconcern", state.CurrentStep)

	// Шаг не по порядку
	w := s.do(t, http.MethodPut, "/api/subscriptions/"+subID+"/steps/bank", token, bankBody)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Ошибки полей приходят до обращения к страховщику
	w = s.do(t, http.MethodPut, "/api/subscriptions/"+subID+"/steps/concern", token, map[string]any{"civility": "X"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, decodeBody[dto.ValidationErrorResponse](t, w).Errors)

	w = s.do(t, http.MethodPut, "/api/subscriptions/"+subID+"/steps/concern", token, concernBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "stepbank", decodeBody[dto.WizardStateResponse](t, w).CurrentStep)

	w = s.do(t, http.MethodPut, "/api/subscriptions/"+subID+"/back", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stepconcern", decodeBody[dto.WizardStateResponse](t, w).CurrentStep)

	w = s.do(t, http.MethodPut, "/api/subscriptions/"+subID+"/steps/concern", token, concernBody)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPut, "/api/subscriptions/"+subID+"/steps/bank", token, bankBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	state = decodeBody[dto.WizardStateResponse](t, w)
	assert.Equal(t, "documents", state.CurrentStep)
	assert.Equal(t, []string{"bulletin_adhesion", "mandat_sepa"}, state.RequiredDocuments)

	w = s.do(t, http.MethodPut, "/api/subscriptions/"+subID+"/complete", token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.upload(t, subID, token, "bulletin_adhesion", []byte("%PDF-1.4 bulletin"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	bulletin := decodeBody[dto.DocumentResponse](t, w)
	assert.Equal(t, "application/pdf", bulletin.ContentType)

	w = s.uploadNamed(t, subID, token, "mandat_sepa", `mandat "sepa"; signé.pdf`, []byte("%PDF-1.4 sepa"))
	require.Equal(t, http.StatusCreated, w.Code)
	sepa := decodeBody[dto.DocumentResponse](t, w)

	w = s.upload(t, subID, token, "unknown", []byte("x"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/subscriptions/"+subID+"/documents", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decodeBody[dto.DocumentListResponse](t, w).Total)

	w = s.do(t, http.MethodGet, "/api/documents/"+bulletin.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "%PDF-1.4 bulletin", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "bulletin_adhesion.pdf")

	// Кавычки и не-ASCII в имени файла не ломают заголовок
	w = s.do(t, http.MethodGet, "/api/documents/"+sepa.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	disposition, params, err := mime.ParseMediaType(w.Header().Get("Content-Disposition"))
	require.NoError(t, err)
	assert.Equal(t, "attachment", disposition)
	assert.Equal(t, `mandat "sepa"; signé.pdf`, params["filename"])

	// Без MinIO ссылки нет
	w = s.do(t, http.MethodGet, "/api/documents/"+bulletin.ID+"/url", token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPut, "/api/subscriptions/"+subID+"/complete", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	state = decodeBody[dto.WizardStateResponse](t, w)
	assert.Equal(t, "completed", state.CurrentStep)
	assert.Equal(t, "pending", state.Subscription.Status)
	assert.NotNil(t, state.Subscription.ContractsValidatedAt)

	// Завершённую подписку не редактируют
	w = s.do(t, http.MethodPut, "/api/subscriptions/"+subID+"/back", token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = s.do(t, http.MethodDelete, "/api/documents/"+bulletin.ID, token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Клиент не может активировать подписку
	w = s.do(t, http.MethodPut, "/api/subscriptions/"+subID+"/activate", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := s.seedStaff(t, "admin@mutuelle.local", role.Admin)
	w = s.do(t, http.MethodPut, "/api/subscriptions/"+subID+"/activate", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/subscriptions?status=active", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeBody[dto.SubscriptionListResponse](t, w)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, subID, list.Subscriptions[0].ID)

	w = s.do(t, http.MethodGet, "/api/subscriptions?status=unknown", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubscription_Ownership(t *testing.T) {
	s := newTestServer(t)
	owner := s.register(t, "jean@example.fr")
	other := s.register(t, "paul@example.fr")
	broker := s.seedStaff(t, "courtier@mutuelle.local", role.Broker)

	state := s.start(t, owner, s.createQuote(t), "essentielle")
	subID := state.Subscription.ID

	w := s.do(t, http.MethodGet, "/api/subscriptions/"+subID, other, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPut, "/api/subscriptions/"+subID+"/steps/concern", other, concernBody)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/subscriptions", other, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, decodeBody[dto.SubscriptionListResponse](t, w).Total)

	w = s.do(t, http.MethodGet, "/api/subscriptions/"+subID, broker, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/subscriptions", broker, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decodeBody[dto.SubscriptionListResponse](t, w).Total)
}

func TestSubscription_StartErrors(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "jean@example.fr")

	w := s.do(t, http.MethodPost, "/api/subscriptions", token, dto.StartSubscriptionRequest{
		QuoteID:   "6f1c1d5e-2b43-4d7e-9a55-0d6a1f3b9c11",
		Tier:      "confort",
		Email:     "jean.martin@example.fr",
		FirstName: "Jean",
		LastName:  "Martin",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/subscriptions", token, dto.StartSubscriptionRequest{
		QuoteID: s.createQuote(t),
		Tier:    "platine",
		Email:   "jean.martin@example.fr",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubscription_CancelDraft(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "jean@example.fr")
	subID := s.start(t, token, s.createQuote(t), "confort").Subscription.ID

	w := s.do(t, http.MethodPut, "/api/subscriptions/"+subID+"/cancel", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPut, "/api/subscriptions/"+subID+"/cancel", token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPut, "/api/subscriptions/"+subID+"/steps/concern", token, concernBody)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[dto.HealthResponse](t, w)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Database)
	assert.True(t, resp.Redis)
	assert.True(t, resp.Carrier)
	assert.Equal(t, "database", resp.Storage)

	s.redis.Close()
	w = s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleError_Conflicts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &APIHandler{}

	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: expected draft at documents", repository.ErrStaleWizardState), http.StatusConflict},
		{fmt.Errorf("%w: GET /products: dial tcp: refused", carrier.ErrTransport), http.StatusBadGateway},
		{&carrier.APIError{StatusCode: 400, Message: "IBAN invalide"}, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		h.handleError(c, tc.err)
		assert.Equal(t, tc.code, w.Code, tc.err.Error())
	}
}
