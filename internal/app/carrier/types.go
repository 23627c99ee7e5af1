package carrier

import (
	"errors"
	"fmt"
)

// StepKind шаг оформления, объявленный страховщиком. Закрытый набор значений.
type StepKind string

const (
	StepConcern      StepKind = "concern"
	StepBank         StepKind = "bank"
	StepFuneral      StepKind = "funeral"
	StepCancellation StepKind = "cancellation"
	StepDocuments    StepKind = "documents"
)

// Valid значение из известного набора шагов
func (k StepKind) Valid() bool {
	switch k {
	case StepConcern, StepBank, StepFuneral, StepCancellation, StepDocuments:
		return true
	}
	return false
}

// StepDescriptor описание одного шага в ответе страховщика
type StepDescriptor struct {
	Kind StepKind `json:"kind"`
	Done bool     `json:"done"`
}

type Product struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Type     string    `json:"type"` // sante, obseques
	Formulas []Formula `json:"formulas"`
}

type Formula struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SaleDocument документ продажи, который нужно подписать и загрузить
type SaleDocument struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	URL      string `json:"url,omitempty"`
	Required bool   `json:"required"`
}

type CartRequest struct {
	ProductID        string `json:"product_id"`
	FormulaID        string `json:"formula_id"`
	PostalCode       string `json:"postal_code"`
	EffectiveDate    string `json:"effective_date"`
	BirthYear        int    `json:"birth_year"`
	Regime           string `json:"regime"`
	Beneficiaries    int    `json:"beneficiaries"`
	WithFuneral      bool   `json:"with_funeral"`
	WithCancellation bool   `json:"with_cancellation"`
}

type Cart struct {
	LeadID    string  `json:"lead_id"`
	ProductID string  `json:"product_id"`
	FormulaID string  `json:"formula_id"`
	Price     float64 `json:"price,omitempty"`
}

type SubscriptionRequest struct {
	LeadID    string `json:"lead_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone,omitempty"`
}

type Subscription struct {
	SubscriptionID string           `json:"subscription_id"`
	LeadID         string           `json:"lead_id"`
	ContractIDs    []string         `json:"contract_ids"`
	Steps          []StepDescriptor `json:"steps"`
}

type ConcernRequest struct {
	Civility             string `json:"civility"`
	FirstName            string `json:"first_name"`
	LastName             string `json:"last_name"`
	BirthDate            string `json:"birth_date"`
	SocialSecurityNumber string `json:"social_security_number"`
	Address              string `json:"address"`
	PostalCode           string `json:"postal_code"`
	City                 string `json:"city"`
	Phone                string `json:"phone"`
	Email                string `json:"email"`
}

type BankRequest struct {
	AccountHolder string `json:"account_holder"`
	IBAN          string `json:"iban"`
	BIC           string `json:"bic"`
	DebitDay      int    `json:"debit_day"`
}

type FuneralRequest struct {
	Beneficiary string  `json:"beneficiary"`
	Capital     float64 `json:"capital"`
}

type CancellationRequest struct {
	PreviousInsurer        string `json:"previous_insurer"`
	PreviousContractNumber string `json:"previous_contract_number"`
	EndDate                string `json:"end_date"`
}

// StepResult ответ на отправку шага
type StepResult struct {
	Accepted bool     `json:"accepted"`
	Step     StepKind `json:"step"`
}

// SubscriptionState авторитетное состояние подписки у страховщика
type SubscriptionState struct {
	SubscriptionID string           `json:"subscription_id"`
	Status         string           `json:"status"`
	Steps          []StepDescriptor `json:"steps"`
	ContractIDs    []string         `json:"contract_ids"`
}

type DocumentUpload struct {
	Type     string `json:"type"`
	Filename string `json:"filename"`
	Content  string `json:"content"` // base64
}

type UploadedDocument struct {
	DocumentID string `json:"document_id"`
	Type       string `json:"type"`
}

type ContractValidation struct {
	ContractID string `json:"contract_id"`
	Status     string `json:"status"`
}

// ErrTransport страховщик недоступен или ответил нечитаемым телом
var ErrTransport = errors.New("carrier unavailable")

// APIError ответ страховщика с кодом не 2xx
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("carrier api: %d %s", e.StatusCode, e.Message)
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type productsResponse struct {
	Products []Product `json:"products"`
}

type documentsResponse struct {
	Documents []SaleDocument `json:"documents"`
}
