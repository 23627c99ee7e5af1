package pricing

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	adultMinAge = 18
	adultMaxAge = 99
	childMinAge = 0
	childMaxAge = 25
)

var postalCodeRe = regexp.MustCompile(`^\d{5}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Имена полей в ошибках как в JSON
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("postalcode", func(fl validator.FieldLevel) bool {
		return postalCodeRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("birthyear", func(fl validator.FieldLevel) bool {
		year := fl.Field().Int()
		return year >= 1000 && year <= 9999
	})

	return v
}

// FieldError ошибка одного поля запроса
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors все ошибки проверки запроса котировки
type ValidationErrors []FieldError

func (ve ValidationErrors) Error() string {
	parts := make([]string, len(ve))
	for i, fe := range ve {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return strings.Join(parts, "; ")
}

// IsValidationError ошибка пришла из проверки входных данных
func IsValidationError(err error) bool {
	var ve ValidationErrors
	return errors.As(err, &ve)
}

var tagMessages = map[string]string{
	"required":   "champ obligatoire",
	"postalcode": "le code postal doit contenir 5 chiffres",
	"birthyear":  "l'année de naissance doit contenir 4 chiffres",
	"datetime":   "date attendue au format AAAA-MM-JJ",
	"max":        "trop d'éléments",
}

// Validate проверяет запрос до любого расчёта цены
func Validate(req QuoteRequest, now time.Time) error {
	var errs ValidationErrors

	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			msg, ok := tagMessages[fe.Tag()]
			if !ok {
				msg = "valeur invalide"
			}
			errs = append(errs, FieldError{Field: fieldPath(fe.Namespace()), Message: msg})
		}
		// Возраст и дату проверяем только на синтаксически корректных данных
		return errs
	}

	if age := AgeAt(req.BirthYear, now); age < adultMinAge || age > adultMaxAge {
		errs = append(errs, FieldError{Field: "birth_year", Message: ageMessage(adultMinAge, adultMaxAge)})
	}
	if req.Spouse != nil {
		if age := AgeAt(req.Spouse.BirthYear, now); age < adultMinAge || age > adultMaxAge {
			errs = append(errs, FieldError{Field: "spouse.birth_year", Message: ageMessage(adultMinAge, adultMaxAge)})
		}
	}
	for i, child := range req.Children {
		if age := AgeAt(child.BirthYear, now); age < childMinAge || age > childMaxAge {
			errs = append(errs, FieldError{Field: fmt.Sprintf("children[%d].birth_year", i), Message: ageMessage(childMinAge, childMaxAge)})
		}
	}

	effective, _ := time.Parse(time.DateOnly, req.EffectiveDate)
	if !dateOnly(effective).After(dateOnly(now)) {
		errs = append(errs, FieldError{Field: "effective_date", Message: "la date d'effet doit être dans le futur"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// EffectiveTime дата начала действия договора из запроса
func (r QuoteRequest) EffectiveTime() (time.Time, error) {
	return time.Parse(time.DateOnly, r.EffectiveDate)
}

func ageMessage(lo, hi int) string {
	return fmt.Sprintf("l'âge doit être compris entre %d et %d ans", lo, hi)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fieldPath убирает имя корневой структуры: QuoteRequest.spouse.birth_year -> spouse.birth_year
func fieldPath(namespace string) string {
	if idx := strings.Index(namespace, "."); idx >= 0 {
		return namespace[idx+1:]
	}
	return namespace
}
