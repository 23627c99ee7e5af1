package dto

import (
	"time"

	"mutuelle/internal/app/carrier"
	"mutuelle/internal/app/pricing"
)

// ============ Общие структуры ============

type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ValidationErrorResponse ошибка проверки с разбором по полям
type ValidationErrorResponse struct {
	Status  string               `json:"status"`
	Message string               `json:"message"`
	Errors  []pricing.FieldError `json:"errors"`
}

type SuccessResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// ============ Котировки ============

type QuoteResponse struct {
	QuoteID   string          `json:"quote_id"`
	ExpiresAt time.Time       `json:"expires_at"`
	Offers    []pricing.Offer `json:"offers"`
}

type ProductListResponse struct {
	Products []carrier.Product `json:"products"`
	Total    int               `json:"total"`
}

type SaleDocumentListResponse struct {
	ProductID string                 `json:"product_id"`
	Documents []carrier.SaleDocument `json:"documents"`
}

// ============ Подписки ============

type StartSubscriptionRequest struct {
	QuoteID          string `json:"quote_id" binding:"required,uuid"`
	Tier             string `json:"tier" binding:"required,oneof=essentielle confort premium"`
	WithFuneral      bool   `json:"with_funeral"`
	WithCancellation bool   `json:"with_cancellation"`
	Email            string `json:"email" binding:"required,email"`
	FirstName        string `json:"first_name" binding:"required"`
	LastName         string `json:"last_name" binding:"required"`
	Phone            string `json:"phone"`
}

type SubscriptionResponse struct {
	ID                    string     `json:"id"`
	UserID                uint       `json:"user_id"`
	Status                string     `json:"status"`
	ProductName           string     `json:"product_name"`
	FormulaName           string     `json:"formula_name"`
	Tier                  string     `json:"tier"`
	MonthlyPrice          float64    `json:"monthly_price"`
	EffectiveDate         string     `json:"effective_date"`
	CurrentStep           string     `json:"current_step"`
	StepCount             int        `json:"step_count"`
	LeadID                string     `json:"lead_id,omitempty"`
	CarrierSubscriptionID string     `json:"carrier_subscription_id,omitempty"`
	ContractIDs           []string   `json:"contract_ids,omitempty"`
	ContractsValidatedAt  *time.Time `json:"contracts_validated_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

type SubscriptionListResponse struct {
	Subscriptions []SubscriptionResponse `json:"subscriptions"`
	Total         int                    `json:"total"`
}

// WizardStateResponse подписка и её положение в мастере оформления
type WizardStateResponse struct {
	Subscription      SubscriptionResponse `json:"subscription"`
	CurrentStep       string               `json:"current_step"`
	Steps             []string             `json:"steps"`
	StepIndex         int                  `json:"step_index"`
	StepCount         int                  `json:"step_count"`
	RequiredDocuments []string             `json:"required_documents"`
	UploadedDocuments []string             `json:"uploaded_documents"`
}

// ============ Документы ============

type DocumentResponse struct {
	ID             string    `json:"id"`
	SubscriptionID string    `json:"subscription_id"`
	Type           string    `json:"type"`
	Filename       string    `json:"filename"`
	ContentType    string    `json:"content_type"`
	Size           int64     `json:"size"`
	CreatedAt      time.Time `json:"created_at"`
}

type DocumentURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type DocumentListResponse struct {
	Documents []DocumentResponse `json:"documents"`
	Total     int                `json:"total"`
}

// ============ Пользователи (Users) ============

type UserResponse struct {
	ID       uint   `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone,omitempty"`
	Role     string `json:"role"`
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email,max=100"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name" binding:"required"`
	Phone    string `json:"phone" binding:"omitempty,max=20"`
}

type UpdateUserRequest struct {
	FullName string `json:"full_name"`
	Password string `json:"password" binding:"omitempty,min=8"`
	Phone    string `json:"phone" binding:"omitempty,max=20"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	ExpiresIn int          `json:"expires_in"`
	User      UserResponse `json:"user"`
}

// ============ Состояние сервиса ============

type HealthResponse struct {
	Status   string `json:"status"`
	Database bool   `json:"database"`
	Redis    bool   `json:"redis"`
	Carrier  bool   `json:"carrier"`
	Storage  string `json:"storage"` // minio, database
}
