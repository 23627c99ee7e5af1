package repository

import (
	"mutuelle/internal/app/ds"
)

// Методы для документов

func (r *Repository) CreateDocument(doc *ds.Document) error {
	return r.db.Create(doc).Error
}

func (r *Repository) GetDocument(id string) (*ds.Document, error) {
	var doc ds.Document
	err := r.db.Where("id = ?", id).First(&doc).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &doc, nil
}

// ListDocuments документы подписки без содержимого
func (r *Repository) ListDocuments(subscriptionID string) ([]ds.Document, error) {
	var docs []ds.Document
	err := r.db.Omit("content").
		Where("subscription_id = ?", subscriptionID).
		Order("created_at").
		Find(&docs).Error
	return docs, err
}

func (r *Repository) DeleteDocument(id string) error {
	result := r.db.Where("id = ?", id).Delete(&ds.Document{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UploadedDocumentTypes различные типы загруженных документов подписки
func (r *Repository) UploadedDocumentTypes(subscriptionID string) ([]ds.DocumentType, error) {
	var types []ds.DocumentType
	err := r.db.Model(&ds.Document{}).
		Where("subscription_id = ?", subscriptionID).
		Distinct("type").
		Order("type").
		Pluck("type", &types).Error
	return types, err
}
