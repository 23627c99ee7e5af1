package document

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"mutuelle/internal/app/ds"
	"mutuelle/internal/app/storage"
)

// MaxSize предельный размер одного документа
const MaxSize = 10 << 20

var (
	ErrEmpty       = errors.New("document is empty")
	ErrTooLarge    = errors.New("document exceeds 10 MB")
	ErrInvalidType = errors.New("unknown document type")
	ErrNoURL       = errors.New("document has no download url")
)

// Store доступ к таблице документов
type Store interface {
	CreateDocument(doc *ds.Document) error
	GetDocument(id string) (*ds.Document, error)
	ListDocuments(subscriptionID string) ([]ds.Document, error)
	DeleteDocument(id string) error
	UploadedDocumentTypes(subscriptionID string) ([]ds.DocumentType, error)
}

// Blobs объектное хранилище содержимого
type Blobs interface {
	UploadFile(ctx context.Context, key string, data []byte, contentType string) error
	DownloadFile(ctx context.Context, key string) ([]byte, error)
	DeleteFile(ctx context.Context, key string) error
}

// Presigner хранилище, умеющее выдавать временные ссылки
type Presigner interface {
	GetFileURL(ctx context.Context, key string) (string, error)
}

// Service хранит документы в MinIO, а без него в базе в base64
type Service struct {
	store Store
	blobs Blobs
}

// NewService blobs может быть nil
func NewService(store Store, blobs Blobs) *Service {
	return &Service{store: store, blobs: blobs}
}

// Check проверка документа до отправки страховщику
func Check(docType ds.DocumentType, data []byte) error {
	if !docType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, docType)
	}
	if len(data) == 0 {
		return ErrEmpty
	}
	if len(data) > MaxSize {
		return ErrTooLarge
	}
	return nil
}

// Save сохраняет содержимое и создаёт запись документа
func (s *Service) Save(ctx context.Context, subscriptionID string, docType ds.DocumentType, filename string, data []byte, carrierDocumentID string) (*ds.Document, error) {
	if err := Check(docType, data); err != nil {
		return nil, err
	}

	doc := &ds.Document{
		SubscriptionID:    subscriptionID,
		Type:              docType,
		Filename:          filename,
		ContentType:       storage.ContentTypeFor(filename),
		Size:              int64(len(data)),
		CarrierDocumentID: carrierDocumentID,
	}

	if s.blobs != nil {
		key := storage.ObjectKey(subscriptionID, string(docType), filename)
		if err := s.blobs.UploadFile(ctx, key, data, doc.ContentType); err != nil {
			return nil, err
		}
		doc.ObjectKey = &key
	} else {
		// Fallback если MinIO не настроен
		encoded := base64.StdEncoding.EncodeToString(data)
		doc.Content = &encoded
	}

	if err := s.store.CreateDocument(doc); err != nil {
		if doc.ObjectKey != nil {
			if delErr := s.blobs.DeleteFile(ctx, *doc.ObjectKey); delErr != nil {
				logrus.Warnf("failed to remove orphan object %s: %v", *doc.ObjectKey, delErr)
			}
		}
		return nil, err
	}

	return doc, nil
}

// Open запись документа и его содержимое
func (s *Service) Open(ctx context.Context, id string) (*ds.Document, []byte, error) {
	doc, err := s.store.GetDocument(id)
	if err != nil {
		return nil, nil, err
	}

	switch {
	case doc.ObjectKey != nil:
		if s.blobs == nil {
			return nil, nil, fmt.Errorf("document %s is stored in object storage, which is not configured", id)
		}
		data, err := s.blobs.DownloadFile(ctx, *doc.ObjectKey)
		if err != nil {
			return nil, nil, err
		}
		return doc, data, nil
	case doc.Content != nil:
		data, err := base64.StdEncoding.DecodeString(*doc.Content)
		if err != nil {
			return nil, nil, fmt.Errorf("decode document %s: %w", id, err)
		}
		return doc, data, nil
	default:
		return doc, nil, ErrEmpty
	}
}

// URL временная ссылка на объект в MinIO. Для документов в БД ErrNoURL.
func (s *Service) URL(ctx context.Context, id string) (string, error) {
	doc, err := s.store.GetDocument(id)
	if err != nil {
		return "", err
	}
	presigner, ok := s.blobs.(Presigner)
	if doc.ObjectKey == nil || !ok {
		return "", ErrNoURL
	}
	return presigner.GetFileURL(ctx, *doc.ObjectKey)
}

// Get запись документа без содержимого
func (s *Service) Get(id string) (*ds.Document, error) {
	return s.store.GetDocument(id)
}

func (s *Service) List(subscriptionID string) ([]ds.Document, error) {
	return s.store.ListDocuments(subscriptionID)
}

// Types различные загруженные типы документов
func (s *Service) Types(subscriptionID string) ([]ds.DocumentType, error) {
	return s.store.UploadedDocumentTypes(subscriptionID)
}

// Delete удаляет запись; объект в хранилище удаляется без ошибки для вызывающего
func (s *Service) Delete(ctx context.Context, id string) error {
	doc, err := s.store.GetDocument(id)
	if err != nil {
		return err
	}

	if err := s.store.DeleteDocument(id); err != nil {
		return err
	}

	if doc.ObjectKey != nil && s.blobs != nil {
		if err := s.blobs.DeleteFile(ctx, *doc.ObjectKey); err != nil {
			logrus.Warnf("Failed to delete object %s: %v", *doc.ObjectKey, err)
		}
	}
	return nil
}
