package carrier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

// Config параметры клиента страховщика
type Config struct {
	BaseURL          string
	Username         string
	Password         string
	SimulationMode   bool
	Timeout          time.Duration
	ProductCacheSize int
	ProductCacheTTL  time.Duration
}

var (
	productCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "carrier_product_cache_hits_total",
		Help: "Попадания в кэш списка продуктов страховщика",
	})
	productCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "carrier_product_cache_misses_total",
		Help: "Промахи кэша списка продуктов страховщика",
	})
)

const productsCacheKey = "products"

// Client клиент API страховщика. Токен хранится в самом клиенте, а не глобально.
type Client struct {
	cfg      Config
	http     *http.Client
	products *expirable.LRU[string, []Product]

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// New создаёт клиента. В режиме симуляции запросы обслуживает встроенный симулятор.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.ProductCacheSize <= 0 {
		cfg.ProductCacheSize = 64
	}
	if cfg.ProductCacheTTL <= 0 {
		cfg.ProductCacheTTL = 10 * time.Minute
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.SimulationMode {
		httpClient.Transport = NewSimulator()
		cfg.BaseURL = simulatedBaseURL
	}

	return &Client{
		cfg:      cfg,
		http:     httpClient,
		products: expirable.NewLRU[string, []Product](cfg.ProductCacheSize, nil, cfg.ProductCacheTTL),
	}
}

// Simulated клиент работает с симулятором
func (c *Client) Simulated() bool {
	return c.cfg.SimulationMode
}

// Authenticate получает новый токен и сохраняет его в клиенте
func (c *Client) Authenticate(ctx context.Context) error {
	var resp tokenResponse
	err := c.do(ctx, http.MethodPost, "/auth/token", tokenRequest{
		Username: c.cfg.Username,
		Password: c.cfg.Password,
	}, &resp, false)
	if err != nil {
		return err
	}
	if resp.AccessToken == "" {
		return errors.New("carrier api: empty access token")
	}

	c.mu.Lock()
	c.token = resp.AccessToken
	c.tokenExp = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	c.mu.Unlock()

	return nil
}

// HealthCheck проверка доступности по аутентификации. Ошибку не возвращает.
func (c *Client) HealthCheck(ctx context.Context) bool {
	if err := c.Authenticate(ctx); err != nil {
		logrus.Warnf("carrier health check failed: %v", err)
		return false
	}
	return true
}

// ListProducts список продуктов (кэшируется)
func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	if products, ok := c.products.Get(productsCacheKey); ok {
		productCacheHits.Inc()
		return products, nil
	}
	productCacheMisses.Inc()

	var resp productsResponse
	if err := c.do(ctx, http.MethodGet, "/products", nil, &resp, true); err != nil {
		return nil, err
	}

	c.products.Add(productsCacheKey, resp.Products)
	return resp.Products, nil
}

// SaleDocuments документы продажи по продукту
func (c *Client) SaleDocuments(ctx context.Context, productID string) ([]SaleDocument, error) {
	var resp documentsResponse
	path := "/products/" + url.PathEscape(productID) + "/documents"
	if err := c.do(ctx, http.MethodGet, path, nil, &resp, true); err != nil {
		return nil, err
	}
	return resp.Documents, nil
}

func (c *Client) CreateCart(ctx context.Context, req CartRequest) (*Cart, error) {
	var cart Cart
	if err := c.do(ctx, http.MethodPost, "/cart", req, &cart, true); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (c *Client) CreateSubscription(ctx context.Context, req SubscriptionRequest) (*Subscription, error) {
	var sub Subscription
	if err := c.do(ctx, http.MethodPost, "/subscriptions", req, &sub, true); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (c *Client) SubmitConcern(ctx context.Context, subscriptionID string, req ConcernRequest) (*StepResult, error) {
	return c.submitStep(ctx, subscriptionID, StepConcern, req)
}

func (c *Client) SubmitBank(ctx context.Context, subscriptionID string, req BankRequest) (*StepResult, error) {
	return c.submitStep(ctx, subscriptionID, StepBank, req)
}

func (c *Client) SubmitFuneral(ctx context.Context, subscriptionID string, req FuneralRequest) (*StepResult, error) {
	return c.submitStep(ctx, subscriptionID, StepFuneral, req)
}

func (c *Client) SubmitCancellation(ctx context.Context, subscriptionID string, req CancellationRequest) (*StepResult, error) {
	return c.submitStep(ctx, subscriptionID, StepCancellation, req)
}

func (c *Client) submitStep(ctx context.Context, subscriptionID string, kind StepKind, body any) (*StepResult, error) {
	var result StepResult
	path := "/subscriptions/" + url.PathEscape(subscriptionID) + "/steps/" + string(kind)
	if err := c.do(ctx, http.MethodPut, path, body, &result, true); err != nil {
		return nil, err
	}
	if !result.Accepted {
		return nil, &APIError{StatusCode: http.StatusUnprocessableEntity, Message: fmt.Sprintf("step %s rejected", kind)}
	}
	return &result, nil
}

// GetSubscriptionState авторитетное состояние подписки
func (c *Client) GetSubscriptionState(ctx context.Context, subscriptionID string) (*SubscriptionState, error) {
	var state SubscriptionState
	path := "/subscriptions/" + url.PathEscape(subscriptionID)
	if err := c.do(ctx, http.MethodGet, path, nil, &state, true); err != nil {
		return nil, err
	}
	for _, step := range state.Steps {
		if !step.Kind.Valid() {
			return nil, fmt.Errorf("carrier api: unknown step kind %q", step.Kind)
		}
	}
	return &state, nil
}

func (c *Client) UploadDocument(ctx context.Context, subscriptionID string, doc DocumentUpload) (*UploadedDocument, error) {
	var uploaded UploadedDocument
	path := "/subscriptions/" + url.PathEscape(subscriptionID) + "/documents"
	if err := c.do(ctx, http.MethodPost, path, doc, &uploaded, true); err != nil {
		return nil, err
	}
	return &uploaded, nil
}

func (c *Client) ValidateContract(ctx context.Context, contractID string) (*ContractValidation, error) {
	var validation ContractValidation
	path := "/contracts/" + url.PathEscape(contractID) + "/validate"
	if err := c.do(ctx, http.MethodPost, path, nil, &validation, true); err != nil {
		return nil, err
	}
	return &validation, nil
}

// bearer возвращает действующий токен, при необходимости получая новый
func (c *Client) bearer(ctx context.Context) (string, error) {
	c.mu.Lock()
	token, exp := c.token, c.tokenExp
	c.mu.Unlock()

	if token != "" && time.Now().Before(exp) {
		return token, nil
	}
	if err := c.Authenticate(ctx); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, auth bool) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("carrier %s %s: marshal: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.cfg.BaseURL, "/")+path, reader)
	if err != nil {
		return fmt.Errorf("carrier %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		token, err := c.bearer(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s %s: read body: %w", ErrTransport, method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		if resp.StatusCode == http.StatusUnauthorized {
			c.resetToken()
		}
		logrus.WithFields(logrus.Fields{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
		}).Error(apiErr.Message)
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s %s: decode: %w", ErrTransport, method, path, err)
	}
	return nil
}

func (c *Client) resetToken() {
	c.mu.Lock()
	c.token = ""
	c.tokenExp = time.Time{}
	c.mu.Unlock()
}
