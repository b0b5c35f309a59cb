package models

import (
	"time"

	"github.com/google/uuid"
)

// PresentationTitleMaxLength bounds Presentation.Title
const PresentationTitleMaxLength = 200

// Presentation is an ordered, user owned set of records
type Presentation struct {
	ID          uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Name        string    `json:"name" gorm:"size:50;index"`
	Title       string    `json:"title" gorm:"size:200" validate:"required,max=200"`
	OwnerID     uuid.UUID `json:"owner_id" gorm:"type:uuid;index"`
	Hidden      bool      `json:"hidden"`
	Description string    `json:"description,omitempty" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EditURL returns the presentation edit path.
func (p *Presentation) EditURL() string {
	return objectURL("presentation", p.ID, p.Name) + "/edit"
}

// PresentationItem places a record in a presentation
type PresentationItem struct {
	ID             uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	PresentationID uuid.UUID `json:"presentation_id" gorm:"type:uuid;index"`
	RecordID       uuid.UUID `json:"record_id" gorm:"type:uuid;index"`
	Record         *Record   `json:"record,omitempty"`
	Order          int       `json:"order" gorm:"column:sort_order"`
	CreatedAt      time.Time `json:"created_at"`
}
