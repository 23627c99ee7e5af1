package wizard

import (
	"math/big"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"mutuelle/internal/app/carrier"
	"mutuelle/internal/app/pricing"
)

// ConcernInput данные страхуемого
type ConcernInput struct {
	Civility             string `json:"civility" validate:"required,oneof=M Mme"`
	FirstName            string `json:"first_name" validate:"required,max=100"`
	LastName             string `json:"last_name" validate:"required,max=100"`
	BirthDate            string `json:"birth_date" validate:"required,datetime=2006-01-02"`
	SocialSecurityNumber string `json:"social_security_number" validate:"required,nir"`
	Address              string `json:"address" validate:"required"`
	PostalCode           string `json:"postal_code" validate:"required,postalcode"`
	City                 string `json:"city" validate:"required"`
	Phone                string `json:"phone" validate:"omitempty,e164|numeric"`
	Email                string `json:"email" validate:"required,email"`
}

// BankInput реквизиты для прямого дебета
type BankInput struct {
	AccountHolder string `json:"account_holder" validate:"required"`
	IBAN          string `json:"iban" validate:"required,iban"`
	BIC           string `json:"bic" validate:"required,bic"`
	DebitDay      int    `json:"debit_day" validate:"omitempty,oneof=5 10 15"`
}

// FuneralInput параметры похоронной гарантии
type FuneralInput struct {
	Beneficiary string  `json:"beneficiary" validate:"required"`
	Capital     float64 `json:"capital" validate:"gte=0,lte=20000"`
}

// CancellationInput данные для расторжения предыдущего контракта
type CancellationInput struct {
	PreviousInsurer        string `json:"previous_insurer" validate:"required"`
	PreviousContractNumber string `json:"previous_contract_number" validate:"required"`
	EndDate                string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

var (
	postalCodeRe = regexp.MustCompile(`^\d{5}$`)
	nirRe        = regexp.MustCompile(`^[12]\d{12}(\d{2})?$`)
	ibanRe       = regexp.MustCompile(`^[A-Z]{2}\d{2}[A-Z0-9]{11,30}$`)
	bicRe        = regexp.MustCompile(`^[A-Z]{4}[A-Z]{2}[A-Z0-9]{2}([A-Z0-9]{3})?$`)
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func stepValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			return name
		})
		_ = validate.RegisterValidation("postalcode", func(fl validator.FieldLevel) bool {
			return postalCodeRe.MatchString(fl.Field().String())
		})
		_ = validate.RegisterValidation("nir", func(fl validator.FieldLevel) bool {
			return nirRe.MatchString(compact(fl.Field().String()))
		})
		_ = validate.RegisterValidation("iban", func(fl validator.FieldLevel) bool {
			return ValidIBAN(fl.Field().String())
		})
		_ = validate.RegisterValidation("bic", func(fl validator.FieldLevel) bool {
			return bicRe.MatchString(strings.ToUpper(compact(fl.Field().String())))
		})
	})
	return validate
}

// ValidIBAN проверка формата и контрольной суммы ISO 13616 (mod 97)
func ValidIBAN(raw string) bool {
	iban := strings.ToUpper(compact(raw))
	if !ibanRe.MatchString(iban) {
		return false
	}

	rearranged := iban[4:] + iban[:4]
	var digits strings.Builder
	for _, r := range rearranged {
		if r >= 'A' && r <= 'Z' {
			digits.WriteString(strconv.Itoa(int(r-'A') + 10))
			continue
		}
		digits.WriteRune(r)
	}

	n, ok := new(big.Int).SetString(digits.String(), 10)
	if !ok {
		return false
	}
	return new(big.Int).Mod(n, big.NewInt(97)).Int64() == 1
}

func compact(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), " ", "")
}

var stepMessages = map[string]string{
	"required":   "champ obligatoire",
	"email":      "adresse e-mail invalide",
	"postalcode": "le code postal doit contenir 5 chiffres",
	"nir":        "numéro de sécurité sociale invalide",
	"iban":       "IBAN invalide",
	"bic":        "BIC invalide",
	"datetime":   "date invalide (AAAA-MM-JJ)",
	"oneof":      "valeur non autorisée",
}

// validateInput проверяет данные шага и возвращает pricing.ValidationErrors
func validateInput(input any) error {
	err := stepValidator().Struct(input)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	out := make(pricing.ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		msg, known := stepMessages[fe.Tag()]
		if !known {
			msg = "valeur invalide"
		}
		out = append(out, pricing.FieldError{Field: fe.Field(), Message: msg})
	}
	return out
}

func (in ConcernInput) request() carrier.ConcernRequest {
	return carrier.ConcernRequest{
		Civility:             in.Civility,
		FirstName:            in.FirstName,
		LastName:             in.LastName,
		BirthDate:            in.BirthDate,
		SocialSecurityNumber: compact(in.SocialSecurityNumber),
		Address:              in.Address,
		PostalCode:           in.PostalCode,
		City:                 in.City,
		Phone:                in.Phone,
		Email:                in.Email,
	}
}

func (in BankInput) request() carrier.BankRequest {
	debitDay := in.DebitDay
	if debitDay == 0 {
		debitDay = 5
	}
	return carrier.BankRequest{
		AccountHolder: in.AccountHolder,
		IBAN:          strings.ToUpper(compact(in.IBAN)),
		BIC:           strings.ToUpper(compact(in.BIC)),
		DebitDay:      debitDay,
	}
}

func (in FuneralInput) request() carrier.FuneralRequest {
	return carrier.FuneralRequest{Beneficiary: in.Beneficiary, Capital: in.Capital}
}

func (in CancellationInput) request() carrier.CancellationRequest {
	return carrier.CancellationRequest{
		PreviousInsurer:        in.PreviousInsurer,
		PreviousContractNumber: in.PreviousContractNumber,
		EndDate:                in.EndDate,
	}
}
