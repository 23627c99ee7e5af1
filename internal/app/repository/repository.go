package repository

import (
	"errors"
	"fmt"

	"mutuelle/internal/app/ds"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrInvalidStatus    = errors.New("invalid status transition")
	ErrStaleWizardState = errors.New("subscription changed concurrently")
)

type Repository struct {
	db *gorm.DB
}

func New(dsn string) (*Repository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	return NewWithDB(db)
}

// NewWithDB оборачивает уже открытое соединение и мигрирует таблицы
func NewWithDB(db *gorm.DB) (*Repository, error) {
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

// Migrate автоматическая миграция всех таблиц
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&ds.User{},
		&ds.Subscription{},
		&ds.Document{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Ping проверка соединения с БД
func (r *Repository) Ping() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
