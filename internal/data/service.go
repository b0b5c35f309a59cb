// Package data serves collections, records and their field values.
package data

import (
	"context"
	"fmt"

	"github.com/Aidin1998/catalogue/common/dbutil"
	"github.com/Aidin1998/catalogue/internal/access"
	"github.com/Aidin1998/catalogue/pkg/models"
	"github.com/Aidin1998/catalogue/pkg/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service reads and edits catalogue data on behalf of a viewer
type Service struct {
	logger    *zap.Logger
	db        *gorm.DB
	access    *access.Checker
	validator *validation.Validator
	sanitizer *validation.Sanitizer
}

// NewService creates a new data Service
func NewService(logger *zap.Logger, db *gorm.DB, checker *access.Checker, validator *validation.Validator, sanitizer *validation.Sanitizer) *Service {
	return &Service{
		logger:    logger,
		db:        db,
		access:    checker,
		validator: validator,
		sanitizer: sanitizer,
	}
}

// Page is one page of a larger result
type Page[T any] struct {
	Items []T   `json:"items"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
	Total int64 `json:"total"`
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Collections lists the collections the viewer may read, by title.
func (s *Service) Collections(ctx context.Context, viewer *models.User) ([]models.Collection, error) {
	q, err := s.access.FilterByAccess(ctx, s.db.WithContext(ctx).Model(&models.Collection{}), viewer, models.ObjectCollection, false)
	if err != nil {
		return nil, err
	}

	var collections []models.Collection
	if err := q.Order("title").Find(&collections).Error; err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	return collections, nil
}

// Collection loads a collection the viewer may read.
func (s *Service) Collection(ctx context.Context, viewer *models.User, id uuid.UUID) (*models.Collection, error) {
	q, err := s.access.FilterByAccess(ctx, s.db.WithContext(ctx).Model(&models.Collection{}), viewer, models.ObjectCollection, false)
	if err != nil {
		return nil, err
	}
	collection, err := dbutil.FindOne[models.Collection](q.Where("id = ?", id))
	if err != nil {
		return nil, dbutil.WrapError(err)
	}
	return collection, nil
}

// CollectionRecords pages through the visible records of a collection, by name.
func (s *Service) CollectionRecords(ctx context.Context, collection *models.Collection, page, size int) (Page[models.Record], error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	items := s.db.WithContext(ctx).Model(&models.CollectionItem{}).
		Select("record_id").
		Where("collection_id = ? AND hidden = ?", collection.ID, false)
	q := s.db.WithContext(ctx).Model(&models.Record{}).Where("id IN (?)", items)

	result := Page[models.Record]{Page: page, Size: size}
	if err := q.Count(&result.Total).Error; err != nil {
		return result, fmt.Errorf("failed to count records: %w", err)
	}
	if err := q.Order("name").Order("id").Scopes(dbutil.Paginate(page, size)).Find(&result.Items).Error; err != nil {
		return result, fmt.Errorf("failed to list records: %w", err)
	}
	return result, nil
}

// Record loads a record that belongs to a collection the viewer may read.
func (s *Service) Record(ctx context.Context, viewer *models.User, id uuid.UUID) (*models.Record, error) {
	return s.recordIn(ctx, viewer, id, false)
}

// recordIn loads a record placed in a collection the viewer may read, or write.
// For write, records owned by the viewer are found as well.
func (s *Service) recordIn(ctx context.Context, viewer *models.User, id uuid.UUID, write bool) (*models.Record, error) {
	scope, collectionIDs, err := s.access.CollectionIDs(ctx, viewer, write)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	q := db.Model(&models.Record{}).Where("id = ?", id)
	if !scope.All {
		items := db.Model(&models.CollectionItem{}).Select("record_id").
			Where("collection_id IN ?", nonEmpty(collectionIDs))
		if write && viewer != nil {
			q = q.Where("id IN (?) OR owner_id = ?", items, viewer.ID)
		} else {
			q = q.Where("id IN (?)", items)
		}
	}

	record, err := dbutil.FindOne[models.Record](q)
	if err != nil {
		return nil, dbutil.WrapError(err)
	}
	return record, nil
}

// Media lists the record's media held in storages the viewer may read.
func (s *Service) Media(ctx context.Context, viewer *models.User, record *models.Record) ([]models.Media, error) {
	scope, err := s.access.AccessibleIDs(ctx, viewer, models.ObjectStorage, false)
	if err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx).Preload("Storage").Where("record_id = ?", record.ID)
	if !scope.All {
		q = q.Where("storage_id IN ?", nonEmpty(scope.IDs))
	}

	var media []models.Media
	if err := q.Order("name").Find(&media).Error; err != nil {
		return nil, fmt.Errorf("failed to list media: %w", err)
	}
	return media, nil
}

// FieldSets lists the viewer's own fieldsets and the standard ones, by title.
func (s *Service) FieldSets(ctx context.Context, viewer *models.User) ([]models.FieldSet, error) {
	q := s.db.WithContext(ctx).Model(&models.FieldSet{})
	if viewer != nil {
		q = q.Where("owner_id = ? OR standard = ?", viewer.ID, true)
	} else {
		q = q.Where("standard = ?", true)
	}

	var fieldsets []models.FieldSet
	if err := q.Order("title").Find(&fieldsets).Error; err != nil {
		return nil, fmt.Errorf("failed to list fieldsets: %w", err)
	}
	return fieldsets, nil
}

// SelectedRecords returns the records among ids that the viewer may read, in the order of ids.
func (s *Service) SelectedRecords(ctx context.Context, viewer *models.User, ids []uuid.UUID) ([]models.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	scope, collectionIDs, err := s.access.CollectionIDs(ctx, viewer, false)
	if err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx).Model(&models.Record{}).Where("id IN ?", ids)
	if !scope.All {
		items := s.db.WithContext(ctx).Model(&models.CollectionItem{}).Select("record_id").
			Where("collection_id IN ?", nonEmpty(collectionIDs))
		q = q.Where("id IN (?)", items)
	}

	var found []models.Record
	if err := q.Find(&found).Error; err != nil {
		return nil, fmt.Errorf("failed to load selected records: %w", err)
	}

	byID := make(map[uuid.UUID]models.Record, len(found))
	for _, r := range found {
		byID[r.ID] = r
	}
	records := make([]models.Record, 0, len(found))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			records = append(records, r)
			delete(byID, id)
		}
	}
	return records, nil
}

// FieldGroup is a set of fields sharing a standard, used for field choices.
type FieldGroup struct {
	Label  string         `json:"label"`
	Fields []models.Field `json:"fields"`
}

// otherFields labels fields outside of any standard.
const otherFields = "Other"

// FieldChoices groups every field by the title of its standard.
func (s *Service) FieldChoices(ctx context.Context) ([]FieldGroup, error) {
	var fields []models.Field
	err := s.db.WithContext(ctx).Preload("Standard").Order("name").Find(&fields).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list fields: %w", err)
	}

	var groups []FieldGroup
	index := make(map[string]int)
	for _, f := range fields {
		label := otherFields
		if f.Standard != nil {
			label = f.Standard.Title
		}
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, FieldGroup{Label: label})
		}
		groups[i].Fields = append(groups[i].Fields, f)
	}
	return groups, nil
}

func nonEmpty(ids []uuid.UUID) []uuid.UUID {
	if len(ids) == 0 {
		return []uuid.UUID{uuid.Nil}
	}
	return ids
}
