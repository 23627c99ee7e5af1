package pricing

import (
	"math"
	"strings"
	"time"
)

// BasePrice стартовая месячная цена до всех коэффициентов
const BasePrice = 35.0

// QuoteRequest запрос котировки. Живёт только между страницами котировки и подписки.
type QuoteRequest struct {
	BirthYear     int     `json:"birth_year" validate:"birthyear"`
	PostalCode    string  `json:"postal_code" validate:"required,postalcode"`
	Regime        string  `json:"regime" validate:"required"`
	EffectiveDate string  `json:"effective_date" validate:"required,datetime=2006-01-02"`
	Spouse        *Spouse `json:"spouse,omitempty"`
	Children      []Child `json:"children,omitempty" validate:"omitempty,max=10,dive"`
}

type Spouse struct {
	BirthYear int    `json:"birth_year" validate:"birthyear"`
	Regime    string `json:"regime,omitempty"`
}

type Child struct {
	BirthYear int `json:"birth_year" validate:"birthyear"`
}

// Offer предложение по одной из трёх формул
type Offer struct {
	Tier         Tier        `json:"tier"`
	Name         string      `json:"name"`
	MonthlyPrice float64     `json:"monthly_price"`
	Guarantees   []Guarantee `json:"guarantees"`
	ProductID    string      `json:"product_id,omitempty"`
	FormulaID    string      `json:"formula_id,omitempty"`
}

// Коэффициенты по режиму (regime). Ключи в нижнем регистре.
var regimeMultipliers = map[string]float64{
	"salarié":             1.0,
	"salarie":             1.0,
	"tns":                 1.15,
	"fonctionnaire":       0.95,
	"retraité":            1.1,
	"retraite":            1.1,
	"étudiant":            0.85,
	"etudiant":            0.85,
	"exploitant agricole": 1.05,
	"sans emploi":         1.0,
}

// Regimes режимы, которые знает калькулятор (для справочника на фронте)
var Regimes = []string{"Salarié", "TNS", "Fonctionnaire", "Retraité", "Étudiant", "Exploitant agricole", "Sans emploi"}

// AgeAt возраст как разница календарных лет, без учёта дня рождения
func AgeAt(birthYear int, now time.Time) int {
	return now.Year() - birthYear
}

func AgeMultiplier(age int) float64 {
	switch {
	case age < 25:
		return 0.8
	case age < 35:
		return 0.9
	case age < 45:
		return 1.0
	case age < 55:
		return 1.2
	case age < 65:
		return 1.5
	default:
		return 2.0
	}
}

// RegimeMultiplier неизвестный режим даёт 1.0
func RegimeMultiplier(regime string) float64 {
	if m, ok := regimeMultipliers[strings.ToLower(strings.TrimSpace(regime))]; ok {
		return m
	}
	return 1.0
}

func SpouseMultiplier(age int) float64 {
	switch {
	case age < 35:
		return 0.8
	case age < 55:
		return 0.9
	default:
		return 1.0
	}
}

func ChildMultiplier(age int) float64 {
	if age < 18 {
		return 0.3
	}
	return 0.5
}

// ApplicantBase базовая цена для основного застрахованного
func ApplicantBase(req QuoteRequest, now time.Time) float64 {
	return BasePrice * AgeMultiplier(AgeAt(req.BirthYear, now)) * RegimeMultiplier(req.Regime)
}

// HouseholdBase базовая цена семьи до коэффициентов формул
func HouseholdBase(req QuoteRequest, now time.Time) float64 {
	base := ApplicantBase(req, now)
	household := base

	if req.Spouse != nil {
		household += base * SpouseMultiplier(AgeAt(req.Spouse.BirthYear, now))
	}
	for _, child := range req.Children {
		household += base * ChildMultiplier(AgeAt(child.BirthYear, now))
	}

	return household
}

// Calculate проверяет запрос и возвращает три предложения (Essentielle, Confort, Premium)
func Calculate(req QuoteRequest, now time.Time) ([]Offer, error) {
	if err := Validate(req, now); err != nil {
		return nil, err
	}

	household := HouseholdBase(req, now)

	offers := make([]Offer, 0, len(Tiers))
	for _, spec := range Tiers {
		guarantees := make([]Guarantee, len(spec.Guarantees))
		copy(guarantees, spec.Guarantees)

		offers = append(offers, Offer{
			Tier:         spec.Tier,
			Name:         spec.Name,
			MonthlyPrice: round2(household * spec.Multiplier),
			Guarantees:   guarantees,
			ProductID:    ProductID,
			FormulaID:    spec.FormulaID,
		})
	}

	return offers, nil
}

// OfferFor пересчитывает одну формулу (используется при старте подписки)
func OfferFor(req QuoteRequest, tier Tier, now time.Time) (Offer, error) {
	offers, err := Calculate(req, now)
	if err != nil {
		return Offer{}, err
	}
	for _, o := range offers {
		if o.Tier == tier {
			return o, nil
		}
	}
	return Offer{}, ValidationErrors{{Field: "tier", Message: "formule inconnue"}}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
