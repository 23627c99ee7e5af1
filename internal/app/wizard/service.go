package wizard

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"mutuelle/internal/app/carrier"
	"mutuelle/internal/app/document"
	"mutuelle/internal/app/ds"
	"mutuelle/internal/app/pricing"
)

var (
	ErrNotEditable          = errors.New("subscription is no longer editable")
	ErrContractNotValidated = errors.New("contract was not validated by the carrier")
)

// Carrier операции страховщика, нужные мастеру
type Carrier interface {
	CreateCart(ctx context.Context, req carrier.CartRequest) (*carrier.Cart, error)
	CreateSubscription(ctx context.Context, req carrier.SubscriptionRequest) (*carrier.Subscription, error)
	SubmitConcern(ctx context.Context, subscriptionID string, req carrier.ConcernRequest) (*carrier.StepResult, error)
	SubmitBank(ctx context.Context, subscriptionID string, req carrier.BankRequest) (*carrier.StepResult, error)
	SubmitFuneral(ctx context.Context, subscriptionID string, req carrier.FuneralRequest) (*carrier.StepResult, error)
	SubmitCancellation(ctx context.Context, subscriptionID string, req carrier.CancellationRequest) (*carrier.StepResult, error)
	GetSubscriptionState(ctx context.Context, subscriptionID string) (*carrier.SubscriptionState, error)
	UploadDocument(ctx context.Context, subscriptionID string, doc carrier.DocumentUpload) (*carrier.UploadedDocument, error)
	ValidateContract(ctx context.Context, contractID string) (*carrier.ContractValidation, error)
}

// Store хранение подписок
type Store interface {
	CreateSubscription(sub *ds.Subscription) error
	GetSubscription(id string) (*ds.Subscription, error)
	UpdateWizardState(sub *ds.Subscription, fromStep string) error
	CompleteWizard(sub *ds.Subscription, fromStep string) error
}

// Documents хранение загруженных документов
type Documents interface {
	Save(ctx context.Context, subscriptionID string, docType ds.DocumentType, filename string, data []byte, carrierDocumentID string) (*ds.Document, error)
	Types(subscriptionID string) ([]ds.DocumentType, error)
}

type Service struct {
	carrier   Carrier
	store     Store
	documents Documents
	now       func() time.Time
}

func NewService(c Carrier, store Store, documents Documents) *Service {
	return &Service{carrier: c, store: store, documents: documents, now: time.Now}
}

// StartRequest выбор клиента на странице котировки
type StartRequest struct {
	UserID           uint
	QuoteID          string
	Quote            pricing.QuoteRequest
	Tier             pricing.Tier
	WithFuneral      bool
	WithCancellation bool
	Email            string
	FirstName        string
	LastName         string
	Phone            string
}

// State подписка и положение в мастере
type State struct {
	Subscription      *ds.Subscription
	Current           Step
	Steps             []Step
	StepIndex         int
	StepCount         int
	RequiredDocuments []ds.DocumentType
	UploadedDocuments []ds.DocumentType
}

// Start шаги cart и subscription: создаёт лид и подписку у страховщика,
// затем сохраняет черновик подписки.
func (s *Service) Start(ctx context.Context, req StartRequest) (*ds.Subscription, error) {
	now := s.now()
	offer, err := pricing.OfferFor(req.Quote, req.Tier, now)
	if err != nil {
		return nil, err
	}
	spec, _ := pricing.LookupTier(req.Tier)
	effective, err := req.Quote.EffectiveTime()
	if err != nil {
		return nil, err
	}

	beneficiaries := 1 + len(req.Quote.Children)
	if req.Quote.Spouse != nil {
		beneficiaries++
	}

	cart, err := s.carrier.CreateCart(ctx, carrier.CartRequest{
		ProductID:        offer.ProductID,
		FormulaID:        offer.FormulaID,
		PostalCode:       req.Quote.PostalCode,
		EffectiveDate:    req.Quote.EffectiveDate,
		BirthYear:        req.Quote.BirthYear,
		Regime:           req.Quote.Regime,
		Beneficiaries:    beneficiaries,
		WithFuneral:      spec.Funeral || req.WithFuneral,
		WithCancellation: req.WithCancellation,
	})
	if err != nil {
		return nil, err
	}

	remote, err := s.carrier.CreateSubscription(ctx, carrier.SubscriptionRequest{
		LeadID:    cart.LeadID,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		return nil, err
	}

	plan, err := NewPlan(remote.Steps)
	if err != nil {
		return nil, err
	}

	sub := &ds.Subscription{
		UserID:                req.UserID,
		QuoteID:               req.QuoteID,
		ProductID:             offer.ProductID,
		ProductName:           pricing.ProductName,
		FormulaID:             offer.FormulaID,
		FormulaName:           offer.Name,
		Tier:                  string(offer.Tier),
		MonthlyPrice:          offer.MonthlyPrice,
		Status:                ds.StatusDraft,
		EffectiveDate:         effective,
		CurrentStep:           string(plan.First()),
		LeadID:                cart.LeadID,
		CarrierSubscriptionID: remote.SubscriptionID,
		StepCount:             plan.StepCount(),
		Steps:                 plan.Declared(),
		ContractIDs:           remote.ContractIDs,
	}
	if err := s.store.CreateSubscription(sub); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"subscription": sub.ID,
		"lead":         sub.LeadID,
		"steps":        sub.StepCount,
	}).Info("subscription started")

	return sub, nil
}

func (s *Service) SubmitConcern(ctx context.Context, id string, in ConcernInput) (*ds.Subscription, error) {
	return s.submit(ctx, id, StepConcern, in, func(remoteID string) error {
		_, err := s.carrier.SubmitConcern(ctx, remoteID, in.request())
		return err
	})
}

func (s *Service) SubmitBank(ctx context.Context, id string, in BankInput) (*ds.Subscription, error) {
	return s.submit(ctx, id, StepBank, in, func(remoteID string) error {
		_, err := s.carrier.SubmitBank(ctx, remoteID, in.request())
		return err
	})
}

func (s *Service) SubmitFuneral(ctx context.Context, id string, in FuneralInput) (*ds.Subscription, error) {
	return s.submit(ctx, id, StepFuneral, in, func(remoteID string) error {
		_, err := s.carrier.SubmitFuneral(ctx, remoteID, in.request())
		return err
	})
}

func (s *Service) SubmitCancellation(ctx context.Context, id string, in CancellationInput) (*ds.Subscription, error) {
	return s.submit(ctx, id, StepCancellation, in, func(remoteID string) error {
		_, err := s.carrier.SubmitCancellation(ctx, remoteID, in.request())
		return err
	})
}

// submit проверка -> вызов страховщика -> перечитывание состояния -> следующий шаг.
// При ошибке страховщика локальное состояние не меняется.
func (s *Service) submit(ctx context.Context, id string, step Step, input any, call func(remoteID string) error) (*ds.Subscription, error) {
	sub, plan, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if !plan.Contains(step) || Step(sub.CurrentStep) != step {
		return nil, fmt.Errorf("%w: current %s, got %s", ErrStepOutOfOrder, sub.CurrentStep, step)
	}

	if err := validateInput(input); err != nil {
		return nil, err
	}

	if err := call(sub.CarrierSubscriptionID); err != nil {
		return nil, err
	}

	state, err := s.carrier.GetSubscriptionState(ctx, sub.CarrierSubscriptionID)
	if err != nil {
		return nil, err
	}
	remotePlan, err := NewPlan(state.Steps)
	if err != nil {
		return nil, err
	}
	next, err := remotePlan.Next(step)
	if err != nil {
		return nil, err
	}

	from := sub.CurrentStep
	sub.CurrentStep = string(next)
	sub.StepCount = remotePlan.StepCount()
	sub.Steps = remotePlan.Declared()
	if len(state.ContractIDs) > 0 {
		sub.ContractIDs = state.ContractIDs
	}
	if err := s.store.UpdateWizardState(sub, from); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"subscription": sub.ID,
		"step":         step,
		"next":         next,
	}).Info("wizard step submitted")

	return sub, nil
}

// UploadDocument отправляет документ страховщику и сохраняет его у себя
func (s *Service) UploadDocument(ctx context.Context, id string, docType ds.DocumentType, filename string, data []byte) (*ds.Document, error) {
	sub, _, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if Step(sub.CurrentStep) != StepDocuments {
		return nil, fmt.Errorf("%w: current %s, got %s", ErrStepOutOfOrder, sub.CurrentStep, StepDocuments)
	}
	if err := document.Check(docType, data); err != nil {
		return nil, err
	}

	uploaded, err := s.carrier.UploadDocument(ctx, sub.CarrierSubscriptionID, carrier.DocumentUpload{
		Type:     string(docType),
		Filename: filename,
		Content:  base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return nil, err
	}

	return s.documents.Save(ctx, sub.ID, docType, filename, data, uploaded.DocumentID)
}

// Complete валидирует контракты у страховщика и переводит подписку в pending
func (s *Service) Complete(ctx context.Context, id string) (*ds.Subscription, error) {
	sub, plan, err := s.load(id)
	if err != nil {
		return nil, err
	}

	uploaded, err := s.documents.Types(sub.ID)
	if err != nil {
		return nil, err
	}
	if err := plan.CanTransition(Step(sub.CurrentStep), StepCompleted, uploaded); err != nil {
		return nil, err
	}

	for _, contractID := range sub.ContractIDs {
		validation, err := s.carrier.ValidateContract(ctx, contractID)
		if err != nil {
			return nil, err
		}
		if validation.Status != "validated" {
			return nil, fmt.Errorf("%w: %s is %s", ErrContractNotValidated, contractID, validation.Status)
		}
	}

	validatedAt := s.now()
	from := sub.CurrentStep
	sub.CurrentStep = string(StepCompleted)
	sub.ContractsValidatedAt = &validatedAt
	if err := s.store.CompleteWizard(sub, from); err != nil {
		return nil, err
	}
	sub.Status = ds.StatusPending

	logrus.WithField("subscription", sub.ID).Info("subscription completed")
	return sub, nil
}

// Back возврат на предыдущий шаг без обращения к страховщику
func (s *Service) Back(id string) (*ds.Subscription, error) {
	sub, plan, err := s.load(id)
	if err != nil {
		return nil, err
	}

	prev, err := plan.Prev(Step(sub.CurrentStep))
	if err != nil {
		return nil, err
	}
	if err := plan.CanTransition(Step(sub.CurrentStep), prev, nil); err != nil {
		return nil, err
	}

	from := sub.CurrentStep
	sub.CurrentStep = string(prev)
	if err := s.store.UpdateWizardState(sub, from); err != nil {
		return nil, err
	}
	return sub, nil
}

// State текущее положение подписки в мастере
func (s *Service) State(id string) (*State, error) {
	sub, err := s.store.GetSubscription(id)
	if err != nil {
		return nil, err
	}
	plan, err := PlanFromStored(sub.Steps)
	if err != nil {
		return nil, err
	}
	uploaded, err := s.documents.Types(sub.ID)
	if err != nil {
		return nil, err
	}

	current := Step(sub.CurrentStep)
	return &State{
		Subscription:      sub,
		Current:           current,
		Steps:             plan.Steps(),
		StepIndex:         plan.Index(current),
		StepCount:         plan.StepCount(),
		RequiredDocuments: plan.RequiredDocuments(),
		UploadedDocuments: uploaded,
	}, nil
}

// load черновик подписки и его план
func (s *Service) load(id string) (*ds.Subscription, Plan, error) {
	sub, err := s.store.GetSubscription(id)
	if err != nil {
		return nil, Plan{}, err
	}
	if sub.Status != ds.StatusDraft {
		return nil, Plan{}, fmt.Errorf("%w: status %s", ErrNotEditable, sub.Status)
	}
	plan, err := PlanFromStored(sub.Steps)
	if err != nil {
		return nil, Plan{}, err
	}
	return sub, plan, nil
}
