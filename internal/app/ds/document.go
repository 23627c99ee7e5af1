package ds

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DocumentType тип документа подписки
type DocumentType string

const (
	DocBulletinAdhesion    DocumentType = "bulletin_adhesion"
	DocMandatSEPA          DocumentType = "mandat_sepa"
	DocMandatResiliation   DocumentType = "mandat_resiliation"
	DocDocumentsPreremplis DocumentType = "documents_preremplis"
)

func (t DocumentType) Valid() bool {
	switch t {
	case DocBulletinAdhesion, DocMandatSEPA, DocMandatResiliation, DocDocumentsPreremplis:
		return true
	}
	return false
}

// Document загруженный документ. Содержимое лежит в MinIO (ObjectKey)
// или, если хранилище не настроено, в Content в base64.
type Document struct {
	ID                string       `gorm:"type:varchar(36);primaryKey"`
	SubscriptionID    string       `gorm:"type:varchar(36);not null;index"`
	Type              DocumentType `gorm:"type:varchar(30);not null"`
	Filename          string       `gorm:"type:varchar(255);not null"`
	ContentType       string       `gorm:"type:varchar(100)"`
	Size              int64        `gorm:"not null"`
	ObjectKey         *string      `gorm:"type:varchar(255)"`
	Content           *string      `gorm:"type:text"`
	CarrierDocumentID string       `gorm:"type:varchar(64)"`
	CreatedAt         time.Time

	Subscription Subscription `gorm:"foreignKey:SubscriptionID"`
}

func (d *Document) BeforeCreate(_ *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}
