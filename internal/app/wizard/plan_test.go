package wizard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mutuelle/internal/app/carrier"
	"mutuelle/internal/app/ds"
	"mutuelle/internal/app/pricing"
)

func descriptors(kinds ...carrier.StepKind) []carrier.StepDescriptor {
	out := make([]carrier.StepDescriptor, len(kinds))
	for i, k := range kinds {
		out[i] = carrier.StepDescriptor{Kind: k}
	}
	return out
}

func fullPlan(t *testing.T) Plan {
	t.Helper()
	plan, err := NewPlan(descriptors(carrier.StepConcern, carrier.StepBank, carrier.StepFuneral, carrier.StepCancellation, carrier.StepDocuments))
	require.NoError(t, err)
	return plan
}

func TestNewPlan(t *testing.T) {
	plan, err := NewPlan(descriptors(carrier.StepConcern, carrier.StepBank, carrier.StepDocuments))
	require.NoError(t, err)

	assert.Equal(t, []Step{StepCart, StepSubscription, StepConcern, StepBank, StepDocuments, StepCompleted}, plan.Steps())
	assert.Equal(t, 3, plan.StepCount())
	assert.Equal(t, []string{"concern", "bank", "documents"}, plan.Declared())
	assert.Equal(t, StepConcern, plan.First())
	assert.False(t, plan.Contains(StepFuneral))
}

func TestNewPlan_Rejects(t *testing.T) {
	cases := map[string][]carrier.StepDescriptor{
		"unknown kind":     descriptors(carrier.StepConcern, "stepmystery", carrier.StepBank, carrier.StepDocuments),
		"duplicate":        descriptors(carrier.StepConcern, carrier.StepBank, carrier.StepBank, carrier.StepDocuments),
		"missing bank":     descriptors(carrier.StepConcern, carrier.StepDocuments),
		"missing concern":  descriptors(carrier.StepBank, carrier.StepDocuments),
		"out of order":     descriptors(carrier.StepBank, carrier.StepConcern, carrier.StepDocuments),
		"documents first":  descriptors(carrier.StepDocuments, carrier.StepConcern, carrier.StepBank),
		"nothing declared": nil,
	}

	for name, steps := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewPlan(steps)
			require.Error(t, err)
		})
	}
}

func TestPlan_NextAndPrev(t *testing.T) {
	plan := fullPlan(t)

	next, err := plan.Next(StepBank)
	require.NoError(t, err)
	assert.Equal(t, StepFuneral, next)

	next, err = plan.Next(StepDocuments)
	require.NoError(t, err)
	assert.Equal(t, StepCompleted, next)

	_, err = plan.Next(StepCompleted)
	assert.ErrorIs(t, err, ErrStepOutOfOrder)

	prev, err := plan.Prev(StepBank)
	require.NoError(t, err)
	assert.Equal(t, StepConcern, prev)

	_, err = plan.Prev(StepConcern)
	assert.ErrorIs(t, err, ErrCannotGoBack)
	_, err = plan.Prev(StepCompleted)
	assert.ErrorIs(t, err, ErrCannotGoBack)
}

func TestPlan_CanTransition(t *testing.T) {
	plan := fullPlan(t)
	all := []ds.DocumentType{ds.DocBulletinAdhesion, ds.DocMandatSEPA, ds.DocMandatResiliation}

	assert.NoError(t, plan.CanTransition(StepConcern, StepBank, nil))
	assert.NoError(t, plan.CanTransition(StepBank, StepConcern, nil))
	assert.NoError(t, plan.CanTransition(StepDocuments, StepCompleted, all))

	assert.ErrorIs(t, plan.CanTransition(StepConcern, StepSubscription, nil), ErrCannotGoBack)
	assert.ErrorIs(t, plan.CanTransition(StepDocuments, StepCart, nil), ErrCannotGoBack)
	assert.ErrorIs(t, plan.CanTransition(StepSubscription, StepSubscription, nil), ErrCannotGoBack)
	assert.ErrorIs(t, plan.CanTransition(StepConcern, StepDocuments, nil), ErrStepOutOfOrder)
	assert.ErrorIs(t, plan.CanTransition(StepBank, StepCompleted, all), ErrStepOutOfOrder)
	assert.ErrorIs(t, plan.CanTransition(StepDocuments, StepCompleted, nil), ErrDocumentsMissing)
	assert.ErrorIs(t, plan.CanTransition(StepDocuments, StepCompleted, all[:2]), ErrDocumentsMissing)
	assert.ErrorIs(t, plan.CanTransition(StepDocuments, "nowhere", nil), ErrUnknownStep)
}

func TestPlan_RequiredDocuments(t *testing.T) {
	assert.Equal(t,
		[]ds.DocumentType{ds.DocBulletinAdhesion, ds.DocMandatSEPA, ds.DocMandatResiliation},
		fullPlan(t).RequiredDocuments())

	short, err := PlanFromStored([]string{"concern", "bank", "documents"})
	require.NoError(t, err)
	assert.Equal(t, []ds.DocumentType{ds.DocBulletinAdhesion, ds.DocMandatSEPA}, short.RequiredDocuments())

	// Без шага расторжения mandat_resiliation не нужен
	assert.NoError(t, short.CanTransition(StepDocuments, StepCompleted, []ds.DocumentType{ds.DocMandatSEPA, ds.DocBulletinAdhesion}))
}

func TestValidIBAN(t *testing.T) {
	assert.True(t, ValidIBAN("FR7630006000011234567890189"))
	assert.True(t, ValidIBAN("fr76 3000 6000 0112 3456 7890 189"))
	assert.True(t, ValidIBAN("DE89370400440532013000"))
	assert.False(t, ValidIBAN("FR7630006000011234567890188"))
	assert.False(t, ValidIBAN("FR76"))
	assert.False(t, ValidIBAN(""))
}

func TestValidateInput(t *testing.T) {
	err := validateInput(BankInput{AccountHolder: "Jean Martin", IBAN: "FR7630006000011234567890188", BIC: "AGR"})
	require.Error(t, err)

	require.True(t, pricing.IsValidationError(err))
	assert.Contains(t, err.Error(), "iban: IBAN invalide")
	assert.Contains(t, err.Error(), "bic: BIC invalide")

	assert.NoError(t, validateInput(BankInput{AccountHolder: "Jean Martin", IBAN: "FR7630006000011234567890189", BIC: "AGRIFRPP"}))
}
