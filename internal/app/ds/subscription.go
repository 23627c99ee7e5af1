package ds

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SubscriptionStatus статус подписки
type SubscriptionStatus string

const (
	StatusDraft     SubscriptionStatus = "draft"
	StatusPending   SubscriptionStatus = "pending"
	StatusActive    SubscriptionStatus = "active"
	StatusCancelled SubscriptionStatus = "cancelled"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusActive, StatusCancelled:
		return true
	}
	return false
}

// Subscription подписка и состояние мастера оформления. Никогда не удаляется.
type Subscription struct {
	ID            string             `gorm:"type:varchar(36);primaryKey"`
	UserID        uint               `gorm:"not null;index"`
	QuoteID       string             `gorm:"type:varchar(36)"`
	ProductID     string             `gorm:"type:varchar(50);not null"`
	ProductName   string             `gorm:"type:varchar(100);not null"`
	FormulaID     string             `gorm:"type:varchar(50)"`
	FormulaName   string             `gorm:"type:varchar(100);not null"`
	Tier          string             `gorm:"type:varchar(20);not null"`
	MonthlyPrice  float64            `gorm:"type:decimal(10,2);not null"`
	Status        SubscriptionStatus `gorm:"type:varchar(20);not null;default:'draft';index"`
	EffectiveDate time.Time          `gorm:"type:date;not null"`

	// Состояние мастера
	CurrentStep           string                      `gorm:"type:varchar(30);not null"`
	LeadID                string                      `gorm:"type:varchar(64)"`
	CarrierSubscriptionID string                      `gorm:"type:varchar(64);index"`
	StepCount             int                         `gorm:"type:int;default:0"`
	Steps                 datatypes.JSONSlice[string] `gorm:"type:json"` // шаги, объявленные страховщиком
	ContractIDs           datatypes.JSONSlice[string] `gorm:"type:json"`
	ContractsValidatedAt  *time.Time                  `gorm:"default:null"`

	CreatedAt time.Time
	UpdatedAt time.Time

	User User `gorm:"foreignKey:UserID"`
}

func (s *Subscription) BeforeCreate(_ *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
