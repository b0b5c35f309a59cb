package data

import (
	"context"

	"github.com/Aidin1998/catalogue/pkg/models"
	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"
)

// AllFields selects no fieldset on the record page.
const AllFields = "_all"

// RecordView is everything the record page shows.
type RecordView struct {
	Record    *models.Record    `json:"record"`
	Media     []models.Media    `json:"media"`
	FieldSets []models.FieldSet `json:"fieldsets"`
	// SelectedFieldSet echoes the requested fieldset, or is nil when it was absent or unknown.
	SelectedFieldSet *string `json:"selected_fieldset"`
	// Suggestion names the closest known fieldset when the requested one is unknown.
	Suggestion  string              `json:"suggestion,omitempty"`
	FieldValues []models.FieldValue `json:"fieldvalues"`
}

// RecordView loads record id for viewer. fieldset is the requested fieldset name:
// AllFields shows every field, a known name selects that fieldset, and an unknown
// or empty name falls back to the record's own fieldset.
func (s *Service) RecordView(ctx context.Context, viewer *models.User, id uuid.UUID, fieldset string) (*RecordView, error) {
	record, err := s.Record(ctx, viewer, id)
	if err != nil {
		return nil, err
	}

	media, err := s.Media(ctx, viewer, record)
	if err != nil {
		return nil, err
	}

	fieldsets, err := s.FieldSets(ctx, viewer)
	if err != nil {
		return nil, err
	}

	view := &RecordView{Record: record, Media: media, FieldSets: fieldsets}

	var fieldsetID *uuid.UUID
	switch {
	case fieldset == AllFields:
		view.SelectedFieldSet = &fieldset
	case fieldset != "":
		if fs := findFieldSet(fieldsets, fieldset); fs != nil {
			fieldsetID = &fs.ID
			view.SelectedFieldSet = &fieldset
		} else {
			fieldsetID = record.FieldsetID
			view.Suggestion = closestFieldSet(fieldsets, fieldset)
		}
	default:
		fieldsetID = record.FieldsetID
	}

	q := Query{FieldSet: fieldsetID, FilterOverridden: true}
	if viewer != nil {
		q.Owner = &viewer.ID
	}
	view.FieldValues, err = s.FieldValues(ctx, record.ID, q)
	if err != nil {
		return nil, err
	}
	return view, nil
}

func findFieldSet(fieldsets []models.FieldSet, name string) *models.FieldSet {
	for i := range fieldsets {
		if fieldsets[i].Name == name {
			return &fieldsets[i]
		}
	}
	return nil
}

// closestFieldSet returns the fieldset name nearest to name, if it is close enough to be a typo.
func closestFieldSet(fieldsets []models.FieldSet, name string) string {
	best, bestDistance := "", -1
	for _, fs := range fieldsets {
		d := levenshtein.ComputeDistance(name, fs.Name)
		if bestDistance < 0 || d < bestDistance {
			best, bestDistance = fs.Name, d
		}
	}
	if bestDistance < 0 || bestDistance > len(name)/2+1 {
		return ""
	}
	return best
}
