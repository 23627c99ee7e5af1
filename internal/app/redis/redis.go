package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"mutuelle/internal/app/config"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
)

const (
	servicePrefix = "mutuelle."
	jwtPrefix     = servicePrefix + "jwt."
	quotePrefix   = servicePrefix + "quote."
)

var ErrQuoteNotFound = errors.New("quote not found or expired")

type Client struct {
	cfg    config.RedisConfig
	client *redis.Client
}

func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	client := &Client{cfg: cfg}

	client.client = redis.NewClient(&redis.Options{
		Password:    cfg.Password,
		Username:    cfg.User,
		Addr:        cfg.Host + ":" + strconv.Itoa(cfg.Port),
		DB:          0,
		DialTimeout: cfg.DialTimeout,
		ReadTimeout: cfg.ReadTimeout,
	})

	if _, err := client.client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("cant ping redis: %w", err)
	}

	return client, nil
}

// NewFromClient используется в тестах и там, где клиент уже создан
func NewFromClient(rdb *redis.Client) *Client {
	return &Client{client: rdb}
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.client.Close()
}

// WriteJWTToBlacklist помещает токен в чёрный список до истечения его срока
func (c *Client) WriteJWTToBlacklist(ctx context.Context, jwtStr string, jwtTTL time.Duration) error {
	return c.client.Set(ctx, jwtPrefix+jwtStr, true, jwtTTL).Err()
}

// CheckJWTInBlacklist возвращает nil, если токен в чёрном списке, и redis.Nil, если нет
func (c *Client) CheckJWTInBlacklist(ctx context.Context, jwtStr string) error {
	return c.client.Get(ctx, jwtPrefix+jwtStr).Err()
}

// IsBlacklisted удобная обёртка над CheckJWTInBlacklist
func (c *Client) IsBlacklisted(ctx context.Context, jwtStr string) (bool, error) {
	err := c.CheckJWTInBlacklist(ctx, jwtStr)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	return false, err
}

// SaveQuote сохраняет запрос котировки между страницами котировки и подписки
func (c *Client) SaveQuote(ctx context.Context, id string, quote any, ttl time.Duration) error {
	payload, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("marshal quote: %w", err)
	}
	return c.client.Set(ctx, quotePrefix+id, payload, ttl).Err()
}

func (c *Client) LoadQuote(ctx context.Context, id string, dst any) error {
	payload, err := c.client.Get(ctx, quotePrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrQuoteNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, dst)
}
