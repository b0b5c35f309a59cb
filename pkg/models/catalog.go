package models

import (
	"time"

	"github.com/google/uuid"
)

// Collection is an access-controlled container of records
type Collection struct {
	ID          uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	Name        string     `json:"name" gorm:"uniqueIndex;size:50" validate:"required,max=50"`
	Title       string     `json:"title" gorm:"size:100" validate:"required,max=100"`
	Description string     `json:"description" gorm:"type:text"`
	Hidden      bool       `json:"hidden"`
	OwnerID     *uuid.UUID `json:"owner_id,omitempty" gorm:"type:uuid;index"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// URL returns the collection detail path.
func (c *Collection) URL() string {
	return objectURL("data/collection", c.ID, c.Name)
}

// CollectionItem places a record in a collection
type CollectionItem struct {
	CollectionID uuid.UUID `json:"collection_id" gorm:"primaryKey;type:uuid"`
	RecordID     uuid.UUID `json:"record_id" gorm:"primaryKey;type:uuid;index"`
	Hidden       bool      `json:"hidden"`
}

// Record is a described item
type Record struct {
	ID         uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	Name       string     `json:"name" gorm:"size:50;index" validate:"required,max=50"`
	OwnerID    *uuid.UUID `json:"owner_id,omitempty" gorm:"type:uuid;index"`
	FieldsetID *uuid.UUID `json:"fieldset_id,omitempty" gorm:"type:uuid"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// URL returns the record detail path.
func (r *Record) URL() string {
	return objectURL("data/record", r.ID, r.Name)
}

// EditURL returns the record edit path for the default context.
func (r *Record) EditURL() string {
	return r.URL() + "/edit"
}

// Standard is a metadata standard such as Dublin Core
type Standard struct {
	ID     uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Name   string    `json:"name" gorm:"uniqueIndex;size:50"`
	Title  string    `json:"title" gorm:"size:100"`
	Prefix string    `json:"prefix" gorm:"size:16"`
}

// Field is a metadata field, optionally part of a standard
type Field struct {
	ID         uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	Name       string     `json:"name" gorm:"size:100;index" validate:"required,max=100"`
	Label      string     `json:"label" gorm:"size:100" validate:"required,max=100"`
	StandardID *uuid.UUID `json:"standard_id,omitempty" gorm:"type:uuid;index"`
	Standard   *Standard  `json:"standard,omitempty"`
}

// FieldSet is a named ordering of fields, either user owned or a shared standard set
type FieldSet struct {
	ID       uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	Name     string     `json:"name" gorm:"uniqueIndex;size:50" validate:"required,max=50"`
	Title    string     `json:"title" gorm:"size:100" validate:"required,max=100"`
	OwnerID  *uuid.UUID `json:"owner_id,omitempty" gorm:"type:uuid;index"`
	Standard bool       `json:"standard"`
}

// FieldSetField places a field in a fieldset
type FieldSetField struct {
	FieldSetID uuid.UUID `json:"fieldset_id" gorm:"primaryKey;type:uuid"`
	FieldID    uuid.UUID `json:"field_id" gorm:"primaryKey;type:uuid"`
	Order      int       `json:"order" gorm:"column:sort_order"`
	Label      string    `json:"label,omitempty" gorm:"size:100"`
}

// FieldValue types
const (
	ValueTypeText   = "text"
	ValueTypeDate   = "date"
	ValueTypeNumber = "number"
	ValueTypeHTML   = "html"
)

// FieldValue is one metadata value of a record.
// Values with an owner and/or collection are contextual; a contextual value
// may point at the global value it overrides.
type FieldValue struct {
	ID           uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	RecordID     uuid.UUID  `json:"record_id" gorm:"type:uuid;index"`
	FieldID      uuid.UUID  `json:"field_id" gorm:"type:uuid;index"`
	Field        *Field     `json:"field,omitempty"`
	OwnerID      *uuid.UUID `json:"owner_id,omitempty" gorm:"type:uuid;index"`
	CollectionID *uuid.UUID `json:"collection_id,omitempty" gorm:"type:uuid;index"`
	OverrideID   *uuid.UUID `json:"override_id,omitempty" gorm:"type:uuid;index"`
	Hidden       bool       `json:"hidden"`
	Order        int        `json:"order" gorm:"column:sort_order"`
	Label        string     `json:"label,omitempty" gorm:"size:100" validate:"max=100"`
	Value        string     `json:"value" gorm:"type:text"`
	Type         string     `json:"type" gorm:"size:16" validate:"omitempty,oneof=text date number html"`
	Language     string     `json:"language,omitempty" gorm:"size:5" validate:"max=5"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// DisplayLabel returns the explicit label or the field's label.
func (v *FieldValue) DisplayLabel() string {
	if v.Label != "" || v.Field == nil {
		return v.Label
	}
	return v.Field.Label
}

// Storage is an access-controlled media location
type Storage struct {
	ID     uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Name   string    `json:"name" gorm:"uniqueIndex;size:50"`
	Title  string    `json:"title" gorm:"size:100"`
	System string    `json:"system" gorm:"size:50"`
	Base   string    `json:"base" gorm:"size:1024"`
}

// Media is a file attached to a record in a storage
type Media struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	RecordID  uuid.UUID `json:"record_id" gorm:"type:uuid;index"`
	StorageID uuid.UUID `json:"storage_id" gorm:"type:uuid;index"`
	Storage   *Storage  `json:"storage,omitempty"`
	Name      string    `json:"name" gorm:"size:50"`
	URL       string    `json:"url" gorm:"size:1024"`
	MimeType  string    `json:"mimetype" gorm:"size:128"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
}
