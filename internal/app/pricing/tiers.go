package pricing

// Tier уровень покрытия (формула)
type Tier string

const (
	TierEssentielle Tier = "essentielle"
	TierConfort     Tier = "confort"
	TierPremium     Tier = "premium"
)

// ProductID продукт страховщика, под которым продаются все три формулы
const (
	ProductID   = "sante-particuliers"
	ProductName = "Santé Particuliers"
)

// Guarantee гарантия формулы: название и уровень возмещения
type Guarantee struct {
	Name  string `json:"name"`
	Level string `json:"level"`
}

// TierSpec описание формулы: коэффициент, гарантии и идентификатор у страховщика
type TierSpec struct {
	Tier       Tier
	Name       string
	Multiplier float64
	FormulaID  string
	// Funeral формула включает гарантию obsèques (отдельный шаг мастера)
	Funeral    bool
	Guarantees []Guarantee
}

// Tiers единственная таблица формул: tier -> коэффициент -> гарантии
var Tiers = []TierSpec{
	{
		Tier:       TierEssentielle,
		Name:       "Essentielle",
		Multiplier: 0.7,
		FormulaID:  "F-ESS",
		Guarantees: []Guarantee{
			{Name: "Hospitalisation", Level: "100% BR"},
			{Name: "Soins courants", Level: "100% BR"},
			{Name: "Optique", Level: "100 € / an"},
			{Name: "Dentaire", Level: "100% BR"},
		},
	},
	{
		Tier:       TierConfort,
		Name:       "Confort",
		Multiplier: 1.0,
		FormulaID:  "F-CONF",
		Guarantees: []Guarantee{
			{Name: "Hospitalisation", Level: "200% BR"},
			{Name: "Soins courants", Level: "150% BR"},
			{Name: "Optique", Level: "250 € / an"},
			{Name: "Dentaire", Level: "200% BR"},
			{Name: "Médecines douces", Level: "100 € / an"},
		},
	},
	{
		Tier:       TierPremium,
		Name:       "Premium",
		Multiplier: 1.4,
		FormulaID:  "F-PREM",
		Funeral:    true,
		Guarantees: []Guarantee{
			{Name: "Hospitalisation", Level: "300% BR"},
			{Name: "Soins courants", Level: "250% BR"},
			{Name: "Optique", Level: "450 € / an"},
			{Name: "Dentaire", Level: "350% BR"},
			{Name: "Médecines douces", Level: "250 € / an"},
			{Name: "Assistance obsèques", Level: "Incluse"},
		},
	},
}

// LookupTier ищет формулу по ее коду
func LookupTier(t Tier) (TierSpec, bool) {
	for _, spec := range Tiers {
		if spec.Tier == t {
			return spec, true
		}
	}
	return TierSpec{}, false
}
