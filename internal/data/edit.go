package data

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Aidin1998/catalogue/pkg/errors"
	"github.com/Aidin1998/catalogue/pkg/metrics"
	"github.com/Aidin1998/catalogue/pkg/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// FormPrefix prefixes the field names of the field value formset.
	FormPrefix = "fv"
	// ExtraForms is the number of blank forms offered after the existing values.
	ExtraForms = 3
)

// FieldValueForm is one row of the field value formset. A form without ID adds a value.
type FieldValueForm struct {
	ID       *uuid.UUID `json:"id,omitempty"`
	Field    string     `json:"field"`
	Label    string     `json:"label" validate:"max=100"`
	Value    string     `json:"value"`
	Type     string     `json:"type" validate:"omitempty,oneof=text date number html"`
	Hidden   bool       `json:"hidden"`
	Language string     `json:"language" validate:"max=5"`
	// Order positions the value; forms without order go last.
	Order  *int `json:"order,omitempty"`
	Delete bool `json:"delete"`
}

// blank reports whether the form is an untouched extra form.
func (f *FieldValueForm) blank() bool {
	return f.ID == nil && f.Field == "" && f.Label == "" && f.Value == "" && f.Language == "" && !f.Hidden
}

// EditView is everything the record editor shows.
type EditView struct {
	Record  *models.Record `json:"record"`
	Context *EditContext   `json:"-"`
	// ReadOnly holds the visible global values not yet overridden in the context.
	// It is empty for the default context.
	ReadOnly []models.FieldValue `json:"readonly"`
	// Values are the editable values of the context.
	Values []models.FieldValue `json:"fieldvalues"`
	Fields []FieldGroup        `json:"fields"`
}

// EditView loads the record editor for viewer in the named context.
func (s *Service) EditView(ctx context.Context, viewer *models.User, id uuid.UUID, ownerName, collectionName string) (*EditView, error) {
	ec, record, err := s.ResolveContext(ctx, viewer, id, ownerName, collectionName)
	if err != nil {
		return nil, err
	}

	readonly, values, err := s.contextValues(s.db.WithContext(ctx), record.ID, ec)
	if err != nil {
		return nil, err
	}

	fields, err := s.FieldChoices(ctx)
	if err != nil {
		return nil, err
	}

	return &EditView{
		Record:   record,
		Context:  ec,
		ReadOnly: readonly,
		Values:   values,
		Fields:   fields,
	}, nil
}

// contextValues splits the record's values into the read-only globals and the editable set.
func (s *Service) contextValues(db *gorm.DB, recordID uuid.UUID, ec *EditContext) ([]models.FieldValue, []models.FieldValue, error) {
	if ec.IsDefault() {
		values, err := fieldValues(db, recordID, Query{IncludeHidden: true})
		return nil, values, err
	}

	readonly, err := fieldValues(db, recordID, Query{
		Owner:            ec.OwnerID(),
		Collection:       ec.CollectionID(),
		GlobalOnly:       true,
		FilterOverridden: true,
		FilterHidden:     true,
	})
	if err != nil {
		return nil, nil, err
	}

	values, err := fieldValues(db, recordID, Query{
		Owner:            ec.OwnerID(),
		Collection:       ec.CollectionID(),
		FilterContext:    true,
		FilterOverridden: true,
		IncludeHidden:    true,
	})
	if err != nil {
		return nil, nil, err
	}
	return readonly, values, nil
}

// OverrideValues copies the read-only values listed in ids into the context,
// each copy pointing back at its global value.
func (s *Service) OverrideValues(ctx context.Context, viewer *models.User, id uuid.UUID, ownerName, collectionName string, ids []uuid.UUID) error {
	ec, record, err := s.ResolveContext(ctx, viewer, id, ownerName, collectionName)
	if err != nil {
		return err
	}
	if ec.IsDefault() || len(ids) == 0 {
		return nil
	}

	wanted := make(map[uuid.UUID]bool, len(ids))
	for _, v := range ids {
		wanted[v] = true
	}

	created := 0
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		readonly, _, err := s.contextValues(tx, record.ID, ec)
		if err != nil {
			return err
		}
		for _, v := range readonly {
			if !wanted[v.ID] {
				continue
			}
			global := v.ID
			copied := &models.FieldValue{
				ID:           uuid.New(),
				RecordID:     record.ID,
				FieldID:      v.FieldID,
				OwnerID:      ec.OwnerID(),
				CollectionID: ec.CollectionID(),
				OverrideID:   &global,
				Order:        v.Order,
				Label:        v.Label,
				Value:        v.Value,
				Type:         v.Type,
				Language:     v.Language,
			}
			if err := tx.Omit("Field").Create(copied).Error; err != nil {
				return fmt.Errorf("failed to override field value: %w", err)
			}
			created++
		}
		return nil
	})
	if err != nil {
		return err
	}

	metrics.FieldValueEdits.WithLabelValues("override").Add(float64(created))
	s.logger.Info("Overrode field values",
		zap.String("record_id", record.ID.String()),
		zap.String("context", ec.Label()),
		zap.Int("count", created))
	return nil
}

// SaveFieldValues applies the formset to the record's values in the named context,
// then rewrites the record's value order as the read-only values followed by the
// forms in their requested order. Nothing is written when any form is invalid.
func (s *Service) SaveFieldValues(ctx context.Context, viewer *models.User, id uuid.UUID, ownerName, collectionName string, forms []FieldValueForm) error {
	ec, record, err := s.ResolveContext(ctx, viewer, id, ownerName, collectionName)
	if err != nil {
		return err
	}

	readonly, values, err := s.contextValues(s.db.WithContext(ctx), record.ID, ec)
	if err != nil {
		return err
	}

	var fieldIDs []uuid.UUID
	if err := s.db.WithContext(ctx).Model(&models.Field{}).Pluck("id", &fieldIDs).Error; err != nil {
		return fmt.Errorf("failed to list fields: %w", err)
	}

	fields := make([]uuid.UUID, len(forms))
	if err := s.validateForms(forms, values, fieldIDs, fields); err != nil {
		return err
	}

	type positioned struct {
		id    uuid.UUID
		order *int
	}
	var ordered []positioned
	counts := map[string]int{}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range forms {
			form := &forms[i]
			if form.blank() {
				continue
			}

			if form.Delete {
				if form.ID != nil {
					if err := tx.Where("id = ? AND record_id = ?", *form.ID, record.ID).Delete(&models.FieldValue{}).Error; err != nil {
						return fmt.Errorf("failed to delete field value: %w", err)
					}
					counts["delete"]++
				}
				continue
			}

			valueType := form.Type
			if valueType == "" {
				valueType = models.ValueTypeText
			}
			changes := map[string]interface{}{
				"field_id":      fields[i],
				"owner_id":      ec.OwnerID(),
				"collection_id": ec.CollectionID(),
				"label":         form.Label,
				"value":         s.sanitizer.Value(valueType, form.Value),
				"type":          valueType,
				"hidden":        form.Hidden,
				"language":      form.Language,
			}

			var valueID uuid.UUID
			if form.ID != nil {
				valueID = *form.ID
				if err := tx.Model(&models.FieldValue{}).Where("id = ?", valueID).Updates(changes).Error; err != nil {
					return fmt.Errorf("failed to update field value: %w", err)
				}
				counts["update"]++
			} else {
				valueID = uuid.New()
				created := &models.FieldValue{
					ID:           valueID,
					RecordID:     record.ID,
					FieldID:      fields[i],
					OwnerID:      ec.OwnerID(),
					CollectionID: ec.CollectionID(),
					Label:        form.Label,
					Value:        changes["value"].(string),
					Type:         valueType,
					Hidden:       form.Hidden,
					Language:     form.Language,
				}
				if err := tx.Omit("Field").Create(created).Error; err != nil {
					return fmt.Errorf("failed to create field value: %w", err)
				}
				counts["create"]++
			}
			ordered = append(ordered, positioned{id: valueID, order: form.Order})
		}

		sort.SliceStable(ordered, func(a, b int) bool {
			oa, ob := ordered[a].order, ordered[b].order
			switch {
			case oa == nil:
				return false
			case ob == nil:
				return true
			default:
				return *oa < *ob
			}
		})

		sequence := make([]uuid.UUID, 0, len(readonly)+len(ordered))
		for _, v := range readonly {
			sequence = append(sequence, v.ID)
		}
		for _, p := range ordered {
			sequence = append(sequence, p.id)
		}
		return setOrder(tx, record.ID, sequence)
	})
	if err != nil {
		return err
	}

	for action, n := range counts {
		metrics.FieldValueEdits.WithLabelValues(action).Add(float64(n))
	}
	s.logger.Info("Saved field values",
		zap.String("record_id", record.ID.String()),
		zap.String("context", ec.Label()),
		zap.Int("created", counts["create"]),
		zap.Int("updated", counts["update"]),
		zap.Int("deleted", counts["delete"]))
	return nil
}

// validateForms checks every non blank, non deleted form and stores the parsed field ids in fields.
func (s *Service) validateForms(forms []FieldValueForm, values []models.FieldValue, fieldIDs []uuid.UUID, fields []uuid.UUID) error {
	editable := make(map[uuid.UUID]bool, len(values))
	for _, v := range values {
		editable[v.ID] = true
	}
	known := make(map[uuid.UUID]bool, len(fieldIDs))
	for _, id := range fieldIDs {
		known[id] = true
	}

	invalid := errors.Invalid.Explain("please correct the errors below")
	failed := false
	fail := func(i int, name, kind, message string) {
		invalid = invalid.WithField(kind, FormField(i, name), message)
		failed = true
	}

	for i := range forms {
		form := &forms[i]
		if form.ID != nil && !editable[*form.ID] {
			fail(i, "id", "invalid_choice", "Select a valid choice. That choice is not one of the available choices.")
			continue
		}
		if form.blank() || form.Delete {
			continue
		}

		if form.Field == "" {
			fail(i, "field", "required", "This field is required.")
		} else if fieldID, err := uuid.Parse(form.Field); err != nil || !known[fieldID] {
			fail(i, "field", "invalid_choice", "Select a valid choice. That choice is not one of the available choices.")
		} else {
			fields[i] = fieldID
		}

		if form.Value == "" {
			fail(i, "value", "required", "This field is required.")
		} else if form.Type == models.ValueTypeNumber {
			if _, err := decimal.NewFromString(strings.TrimSpace(form.Value)); err != nil {
				fail(i, "value", "invalid", "Enter a number.")
			}
		}

		if err := s.validator.Validate(form); err != nil {
			var e *errors.Error
			if errors.As(err, &e) {
				for _, fe := range e.Fields {
					fail(i, fe.Field, fe.Kind, fe.Message)
				}
			}
		}
	}

	if failed {
		return invalid
	}
	return nil
}

// FormField names field name of form i in the formset.
func FormField(i int, name string) string {
	return fmt.Sprintf("%s-%d-%s", FormPrefix, i, name)
}

// setOrder stores the position of each value of sequence.
func setOrder(tx *gorm.DB, recordID uuid.UUID, sequence []uuid.UUID) error {
	for i, id := range sequence {
		err := tx.Model(&models.FieldValue{}).
			Where("id = ? AND record_id = ?", id, recordID).
			UpdateColumn("sort_order", i).Error
		if err != nil {
			return fmt.Errorf("failed to reorder field values: %w", err)
		}
	}
	return nil
}
