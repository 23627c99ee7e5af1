package wizard

import (
	"errors"
	"fmt"

	"mutuelle/internal/app/carrier"
	"mutuelle/internal/app/ds"
)

// Step шаг мастера оформления подписки
type Step string

const (
	StepCart         Step = "cart"
	StepSubscription Step = "subscription"
	StepConcern      Step = "stepconcern"
	StepBank         Step = "stepbank"
	StepFuneral      Step = "stepfuneral"
	StepCancellation Step = "stepcancellation"
	StepDocuments    Step = "documents"
	StepCompleted    Step = "completed"
)

var (
	ErrUnknownStep      = errors.New("unknown wizard step")
	ErrInvalidPlan      = errors.New("invalid step plan")
	ErrStepOutOfOrder   = errors.New("step is not the current wizard step")
	ErrCannotGoBack     = errors.New("cannot go back from this step")
	ErrDocumentsMissing = errors.New("required documents are missing")
)

// stepForKind сопоставляет шаг страховщика шагу мастера. Перечисление закрытое.
func stepForKind(kind carrier.StepKind) (Step, error) {
	switch kind {
	case carrier.StepConcern:
		return StepConcern, nil
	case carrier.StepBank:
		return StepBank, nil
	case carrier.StepFuneral:
		return StepFuneral, nil
	case carrier.StepCancellation:
		return StepCancellation, nil
	case carrier.StepDocuments:
		return StepDocuments, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStep, kind)
	}
}

// Канонический порядок шагов; страховщик может опустить только необязательные
var canonicalOrder = []Step{StepConcern, StepBank, StepFuneral, StepCancellation, StepDocuments}

var optionalSteps = map[Step]bool{StepFuneral: true, StepCancellation: true}

// Plan полная последовательность шагов: cart, subscription, объявленные шаги, completed
type Plan struct {
	steps    []Step
	declared []carrier.StepKind
}

// NewPlan строит план по шагам, объявленным страховщиком
func NewPlan(descriptors []carrier.StepDescriptor) (Plan, error) {
	declared := make(map[Step]carrier.StepKind, len(descriptors))
	for _, d := range descriptors {
		step, err := stepForKind(d.Kind)
		if err != nil {
			return Plan{}, err
		}
		if _, dup := declared[step]; dup {
			return Plan{}, fmt.Errorf("%w: duplicate step %s", ErrInvalidPlan, d.Kind)
		}
		declared[step] = d.Kind
	}

	plan := Plan{steps: []Step{StepCart, StepSubscription}}
	pos := 0
	for _, step := range canonicalOrder {
		kind, ok := declared[step]
		if !ok {
			if !optionalSteps[step] {
				return Plan{}, fmt.Errorf("%w: missing required step %s", ErrInvalidPlan, step)
			}
			continue
		}
		// Порядок объявления должен совпадать с каноническим
		if descriptors[pos].Kind != kind {
			return Plan{}, fmt.Errorf("%w: step %s out of order", ErrInvalidPlan, kind)
		}
		pos++
		plan.steps = append(plan.steps, step)
		plan.declared = append(plan.declared, kind)
	}
	plan.steps = append(plan.steps, StepCompleted)

	return plan, nil
}

// PlanFromStored восстанавливает план из сохранённых в БД шагов
func PlanFromStored(kinds []string) (Plan, error) {
	descriptors := make([]carrier.StepDescriptor, len(kinds))
	for i, k := range kinds {
		descriptors[i] = carrier.StepDescriptor{Kind: carrier.StepKind(k)}
	}
	return NewPlan(descriptors)
}

// Steps копия последовательности шагов
func (p Plan) Steps() []Step {
	out := make([]Step, len(p.steps))
	copy(out, p.steps)
	return out
}

// Declared шаги страховщика для сохранения в БД
func (p Plan) Declared() []string {
	out := make([]string, len(p.declared))
	for i, k := range p.declared {
		out[i] = string(k)
	}
	return out
}

// StepCount количество объявленных страховщиком шагов
func (p Plan) StepCount() int {
	return len(p.declared)
}

func (p Plan) Index(step Step) int {
	for i, s := range p.steps {
		if s == step {
			return i
		}
	}
	return -1
}

func (p Plan) Contains(step Step) bool {
	return p.Index(step) >= 0
}

// First первый шаг после создания подписки
func (p Plan) First() Step {
	return p.steps[p.Index(StepSubscription)+1]
}

// Next следующий шаг по индексу текущего
func (p Plan) Next(step Step) (Step, error) {
	idx := p.Index(step)
	if idx < 0 {
		return "", fmt.Errorf("%w: %s", ErrUnknownStep, step)
	}
	if idx == len(p.steps)-1 {
		return "", fmt.Errorf("%w: %s is terminal", ErrStepOutOfOrder, step)
	}
	return p.steps[idx+1], nil
}

// Prev предыдущий шаг; вернуться к cart и subscription нельзя, из completed тоже
func (p Plan) Prev(step Step) (Step, error) {
	idx := p.Index(step)
	if idx < 0 {
		return "", fmt.Errorf("%w: %s", ErrUnknownStep, step)
	}
	if step == StepCompleted || idx <= p.Index(StepSubscription)+1 {
		return "", fmt.Errorf("%w: %s", ErrCannotGoBack, step)
	}
	return p.steps[idx-1], nil
}

// RequiredDocuments типы документов, без которых нельзя завершить оформление
func (p Plan) RequiredDocuments() []ds.DocumentType {
	required := []ds.DocumentType{ds.DocBulletinAdhesion, ds.DocMandatSEPA}
	if p.Contains(StepCancellation) {
		required = append(required, ds.DocMandatResiliation)
	}
	return required
}

// CanTransition проверяет переход from -> to с учётом загруженных документов
func (p Plan) CanTransition(from, to Step, uploaded []ds.DocumentType) error {
	fromIdx, toIdx := p.Index(from), p.Index(to)
	if fromIdx < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownStep, from)
	}
	if toIdx < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownStep, to)
	}

	if (to == StepCart || to == StepSubscription) && fromIdx >= toIdx {
		return fmt.Errorf("%w: %s", ErrCannotGoBack, to)
	}

	if to == StepCompleted {
		if from != StepDocuments {
			return fmt.Errorf("%w: %s -> %s", ErrStepOutOfOrder, from, to)
		}
		if missing := missingDocuments(p.RequiredDocuments(), uploaded); len(uploaded) == 0 || len(missing) > 0 {
			return fmt.Errorf("%w: %v", ErrDocumentsMissing, missing)
		}
		return nil
	}

	switch toIdx {
	case fromIdx + 1:
		return nil
	case fromIdx - 1:
		_, err := p.Prev(from)
		return err
	default:
		return fmt.Errorf("%w: %s -> %s", ErrStepOutOfOrder, from, to)
	}
}

func missingDocuments(required, uploaded []ds.DocumentType) []ds.DocumentType {
	have := make(map[ds.DocumentType]bool, len(uploaded))
	for _, t := range uploaded {
		have[t] = true
	}
	var missing []ds.DocumentType
	for _, t := range required {
		if !have[t] {
			missing = append(missing, t)
		}
	}
	return missing
}
