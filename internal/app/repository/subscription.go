package repository

import (
	"fmt"
	"time"

	"mutuelle/internal/app/ds"
)

// Методы для работы с подписками

func (r *Repository) CreateSubscription(sub *ds.Subscription) error {
	if sub.Status == "" {
		sub.Status = ds.StatusDraft
	}
	return r.db.Create(sub).Error
}

func (r *Repository) GetSubscription(id string) (*ds.Subscription, error) {
	var sub ds.Subscription
	err := r.db.Where("id = ?", id).First(&sub).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &sub, nil
}

// ListSubscriptions подписки для личного кабинета. При userID == nil все пользователи.
func (r *Repository) ListSubscriptions(userID *uint, status ds.SubscriptionStatus) ([]ds.Subscription, error) {
	query := r.db.Model(&ds.Subscription{})
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var subs []ds.Subscription
	err := query.Order("created_at DESC").Find(&subs).Error
	return subs, err
}

// UpdateWizardState сохраняет состояние мастера оформления.
// Запись проходит, только если подписка всё ещё черновик на шаге fromStep.
func (r *Repository) UpdateWizardState(sub *ds.Subscription, fromStep string) error {
	return r.updateWizard(sub.ID, fromStep, wizardColumns(sub))
}

// CompleteWizard закрывает мастер и переводит draft -> pending одним UPDATE
func (r *Repository) CompleteWizard(sub *ds.Subscription, fromStep string) error {
	values := wizardColumns(sub)
	values["status"] = ds.StatusPending
	values["updated_at"] = time.Now()
	return r.updateWizard(sub.ID, fromStep, values)
}

func wizardColumns(sub *ds.Subscription) map[string]interface{} {
	return map[string]interface{}{
		"current_step":            sub.CurrentStep,
		"lead_id":                 sub.LeadID,
		"carrier_subscription_id": sub.CarrierSubscriptionID,
		"step_count":              sub.StepCount,
		"steps":                   sub.Steps,
		"contract_ids":            sub.ContractIDs,
		"contracts_validated_at":  sub.ContractsValidatedAt,
	}
}

func (r *Repository) updateWizard(id, fromStep string, values map[string]interface{}) error {
	result := r.db.Model(&ds.Subscription{}).
		Where("id = ? AND status = ? AND current_step = ?", id, ds.StatusDraft, fromStep).
		Updates(values)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		if _, err := r.GetSubscription(id); err != nil {
			return err
		}
		return fmt.Errorf("%w: expected draft at %s", ErrStaleWizardState, fromStep)
	}
	return nil
}

// Допустимые переходы статусов: откуда -> куда
var statusTransitions = map[ds.SubscriptionStatus][]ds.SubscriptionStatus{
	ds.StatusPending:   {ds.StatusDraft},
	ds.StatusActive:    {ds.StatusPending},
	ds.StatusCancelled: {ds.StatusDraft, ds.StatusPending, ds.StatusActive},
}

// UpdateSubscriptionStatus меняет статус, если переход допустим
func (r *Repository) UpdateSubscriptionStatus(id string, to ds.SubscriptionStatus) error {
	from, ok := statusTransitions[to]
	if !ok {
		return fmt.Errorf("%w: to %s", ErrInvalidStatus, to)
	}

	result := r.db.Model(&ds.Subscription{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		// Отличаем отсутствующую подписку от неверного статуса
		if _, err := r.GetSubscription(id); err != nil {
			return err
		}
		return fmt.Errorf("%w: to %s", ErrInvalidStatus, to)
	}

	return nil
}

// StatusCount количество подписок в статусе
type StatusCount struct {
	Status ds.SubscriptionStatus
	Count  int64
}

// CountSubscriptionsByStatus сводка по статусам для cmd/migrate status
func (r *Repository) CountSubscriptionsByStatus() ([]StatusCount, error) {
	var counts []StatusCount
	err := r.db.Model(&ds.Subscription{}).
		Select("status, count(*) as count").
		Group("status").
		Order("status").
		Scan(&counts).Error
	return counts, err
}
