package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	ServiceHost string   `mapstructure:"service_host"`
	ServicePort int      `mapstructure:"service_port"`
	LogLevel    string   `mapstructure:"log_level"`
	LogFormat   string   `mapstructure:"log_format"` // text, json
	CORSOrigins []string `mapstructure:"cors_origins"`

	Quote   QuoteConfig   `mapstructure:"quote"`
	Carrier CarrierConfig `mapstructure:"carrier"`

	JWT   JWTConfig   `mapstructure:"-"`
	Redis RedisConfig `mapstructure:"-"`
	MinIO MinIOConfig `mapstructure:"-"`
}

type QuoteConfig struct {
	TTL time.Duration `mapstructure:"ttl"` // сколько живёт запрос котировки в Redis
}

// CarrierConfig параметры API страховщика
type CarrierConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	SimulationMode   bool          `mapstructure:"simulation_mode"`
	Timeout          time.Duration `mapstructure:"timeout"`
	ProductCacheSize int           `mapstructure:"product_cache_size"`
	ProductCacheTTL  time.Duration `mapstructure:"product_cache_ttl"`
	Username         string        `mapstructure:"-"`
	Password         string        `mapstructure:"-"`
}

type JWTConfig struct {
	Token         string
	ExpiresIn     time.Duration
	SigningMethod jwt.SigningMethod
}

type RedisConfig struct {
	Host        string
	Password    string
	Port        int
	User        string
	DialTimeout time.Duration
	ReadTimeout time.Duration
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Enabled MinIO настроен, если задан endpoint
func (m MinIOConfig) Enabled() bool {
	return m.Endpoint != ""
}

const (
	envConfigName = "CONFIG_NAME"

	envJWTSecret  = "JWT_SECRET"
	envJWTExpires = "JWT_EXPIRES_IN"

	envRedisHost = "REDIS_HOST"
	envRedisPort = "REDIS_PORT"
	envRedisUser = "REDIS_USER"
	envRedisPass = "REDIS_PASSWORD"

	envMinIOEndpoint  = "MINIO_ENDPOINT"
	envMinIOAccessKey = "MINIO_ACCESS_KEY"
	envMinIOSecretKey = "MINIO_SECRET_KEY"
	envMinIOBucket    = "MINIO_BUCKET"
	envMinIOUseSSL    = "MINIO_USE_SSL"

	envCarrierBaseURL  = "CARRIER_API_URL"
	envCarrierUser     = "CARRIER_USERNAME"
	envCarrierPassword = "CARRIER_PASSWORD"
)

func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	configName := "config"
	if os.Getenv(envConfigName) != "" {
		configName = os.Getenv(envConfigName)
	}

	return Load(configName, "config", ".")
}

// Load читает toml конфиг с указанным именем из списка каталогов
// и дополняет его секретами из переменных окружения
func Load(configName string, paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType("toml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	log.Info("config parsed")

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_host", "0.0.0.0")
	v.SetDefault("service_port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("quote.ttl", 24*time.Hour)
	v.SetDefault("carrier.simulation_mode", true)
	v.SetDefault("carrier.timeout", 15*time.Second)
	v.SetDefault("carrier.product_cache_size", 64)
	v.SetDefault("carrier.product_cache_ttl", 10*time.Minute)
}

func (cfg *Config) loadEnv() error {
	var err error

	// JWT: секрет только из окружения
	cfg.JWT = JWTConfig{
		Token:         os.Getenv(envJWTSecret),
		ExpiresIn:     time.Hour,
		SigningMethod: jwt.SigningMethodHS256,
	}
	if cfg.JWT.Token == "" {
		return fmt.Errorf("%s must be set", envJWTSecret)
	}
	if raw := os.Getenv(envJWTExpires); raw != "" {
		cfg.JWT.ExpiresIn, err = time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("jwt expiration must be a duration: %w", err)
		}
	}

	// Redis
	cfg.Redis.Host = os.Getenv(envRedisHost)
	cfg.Redis.Port = 6379
	if raw := os.Getenv(envRedisPort); raw != "" {
		cfg.Redis.Port, err = strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("redis port must be int value: %w", err)
		}
	}
	cfg.Redis.Password = os.Getenv(envRedisPass)
	cfg.Redis.User = os.Getenv(envRedisUser)
	cfg.Redis.DialTimeout = 10 * time.Second
	cfg.Redis.ReadTimeout = 10 * time.Second

	// MinIO (необязателен: без него документы хранятся в БД)
	cfg.MinIO = MinIOConfig{
		Endpoint:  os.Getenv(envMinIOEndpoint),
		AccessKey: os.Getenv(envMinIOAccessKey),
		SecretKey: os.Getenv(envMinIOSecretKey),
		Bucket:    os.Getenv(envMinIOBucket),
		UseSSL:    strings.EqualFold(os.Getenv(envMinIOUseSSL), "true"),
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = "documents"
	}

	// Страховщик
	if url := os.Getenv(envCarrierBaseURL); url != "" {
		cfg.Carrier.BaseURL = url
	}
	cfg.Carrier.Username = os.Getenv(envCarrierUser)
	cfg.Carrier.Password = os.Getenv(envCarrierPassword)
	if !cfg.Carrier.SimulationMode && cfg.Carrier.BaseURL == "" {
		return fmt.Errorf("carrier base_url is required when simulation_mode is off")
	}

	return nil
}

// SetupLogger настраивает logrus по уровню и формату из конфига
func (cfg *Config) SetupLogger() {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
