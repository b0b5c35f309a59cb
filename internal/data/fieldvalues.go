package data

import (
	"context"
	"fmt"

	"github.com/Aidin1998/catalogue/pkg/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Query selects the field values of a record.
//
// Owner and Collection name the requested context. Without any filter the result holds
// the global values plus the values of that owner and of that collection.
type Query struct {
	Owner      *uuid.UUID
	Collection *uuid.UUID
	// FieldSet keeps only values of the fieldset's fields, in fieldset order.
	FieldSet *uuid.UUID

	// FilterContext keeps only values whose owner and collection equal the requested context.
	FilterContext bool
	// GlobalOnly keeps only values without owner and collection.
	GlobalOnly bool
	// FilterOverridden drops values overridden by a value of the requested context.
	FilterOverridden bool
	// FilterHidden drops hidden values, even when IncludeHidden is set.
	FilterHidden bool
	// IncludeHidden keeps hidden values, which are dropped otherwise.
	IncludeHidden bool
}

// FieldValues runs q against the values of record.
func (s *Service) FieldValues(ctx context.Context, recordID uuid.UUID, q Query) ([]models.FieldValue, error) {
	return fieldValues(s.db.WithContext(ctx), recordID, q)
}

func fieldValues(db *gorm.DB, recordID uuid.UUID, q Query) ([]models.FieldValue, error) {
	tx := db.Model(&models.FieldValue{}).
		Preload("Field").
		Where("field_values.record_id = ?", recordID)

	switch {
	case q.FilterContext:
		tx = inContext(tx, "field_values.", q.Owner, q.Collection)
	case q.GlobalOnly:
		tx = inContext(tx, "field_values.", nil, nil)
	default:
		tx = orGlobal(tx, "field_values.owner_id", q.Owner)
		tx = orGlobal(tx, "field_values.collection_id", q.Collection)
	}

	if q.FilterHidden || !q.IncludeHidden {
		tx = tx.Where("field_values.hidden = ?", false)
	}

	if q.FilterOverridden {
		overriding := inContext(db.Model(&models.FieldValue{}), "", q.Owner, q.Collection).
			Select("override_id").
			Where("record_id = ? AND override_id IS NOT NULL", recordID)
		tx = tx.Where("field_values.id NOT IN (?)", overriding)
	}

	if q.FieldSet != nil {
		tx = tx.Joins("JOIN field_set_fields ON field_set_fields.field_id = field_values.field_id AND field_set_fields.field_set_id = ?", *q.FieldSet).
			Order("field_set_fields.sort_order").
			Order("field_values.sort_order")
	} else {
		tx = tx.Joins("JOIN fields ON fields.id = field_values.field_id").
			Order("field_values.sort_order").
			Order("fields.name")
	}

	var values []models.FieldValue
	if err := tx.Order("field_values.created_at").Find(&values).Error; err != nil {
		return nil, fmt.Errorf("failed to load field values: %w", err)
	}
	return values, nil
}

// inContext restricts tx to values whose owner and collection are exactly the given ones.
func inContext(tx *gorm.DB, prefix string, owner, collection *uuid.UUID) *gorm.DB {
	if owner == nil {
		tx = tx.Where(prefix + "owner_id IS NULL")
	} else {
		tx = tx.Where(prefix+"owner_id = ?", *owner)
	}
	if collection == nil {
		tx = tx.Where(prefix + "collection_id IS NULL")
	} else {
		tx = tx.Where(prefix+"collection_id = ?", *collection)
	}
	return tx
}

// orGlobal matches column NULL, or equal to id when id is set.
func orGlobal(tx *gorm.DB, column string, id *uuid.UUID) *gorm.DB {
	if id == nil {
		return tx.Where(column + " IS NULL")
	}
	return tx.Where(column+" IS NULL OR "+column+" = ?", *id)
}
