// Package presentation adds selected records to presentations.
package presentation

import (
	"context"
	"fmt"

	"github.com/Aidin1998/catalogue/common/dbutil"
	"github.com/Aidin1998/catalogue/internal/access"
	"github.com/Aidin1998/catalogue/pkg/errors"
	"github.com/Aidin1998/catalogue/pkg/metrics"
	"github.com/Aidin1998/catalogue/pkg/models"
	"github.com/Aidin1998/catalogue/pkg/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NewChoice is the choice value that creates a presentation.
const NewChoice = "new"

// Permissions answers whether a user holds a named permission
type Permissions interface {
	HasPerm(ctx context.Context, user *models.User, codename string) (bool, error)
}

// Service manages presentations
type Service struct {
	logger    *zap.Logger
	db        *gorm.DB
	access    *access.Checker
	perms     Permissions
	validator *validation.Validator
}

// NewService creates a new presentation Service
func NewService(logger *zap.Logger, db *gorm.DB, checker *access.Checker, perms Permissions, validator *validation.Validator) *Service {
	return &Service{
		logger:    logger,
		db:        db,
		access:    checker,
		perms:     perms,
		validator: validator,
	}
}

// Choice is one option of the add-to-presentation form.
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// AddForm is the add-to-presentation form.
type AddForm struct {
	Presentation string `form:"presentation" json:"presentation" validate:"required"`
	Title        string `form:"title" json:"title" validate:"max=200"`
}

// Choices lists the presentations viewer may write, by title, led by NewChoice
// when viewer may create presentations.
func (s *Service) Choices(ctx context.Context, viewer *models.User) ([]Choice, error) {
	var choices []Choice
	canCreate, err := s.perms.HasPerm(ctx, viewer, models.PermAddPresentation)
	if err != nil {
		return nil, err
	}
	if canCreate {
		choices = append(choices, Choice{Value: NewChoice, Label: "New Presentation"})
	}

	q, err := s.writable(ctx, viewer)
	if err != nil {
		return nil, err
	}
	var presentations []models.Presentation
	if err := q.Order("title").Find(&presentations).Error; err != nil {
		return nil, fmt.Errorf("failed to list presentations: %w", err)
	}
	for _, p := range presentations {
		choices = append(choices, Choice{Value: p.ID.String(), Label: p.Title})
	}
	return choices, nil
}

func (s *Service) writable(ctx context.Context, viewer *models.User) (*gorm.DB, error) {
	return s.access.FilterByAccess(ctx, s.db.WithContext(ctx).Model(&models.Presentation{}), viewer, models.ObjectPresentation, true)
}

// AddRecords appends records to the presentation chosen in form, creating it first
// for NewChoice. Records are placed after the presentation's current items.
func (s *Service) AddRecords(ctx context.Context, viewer *models.User, form AddForm, records []models.Record) (*models.Presentation, error) {
	if viewer == nil {
		return nil, errors.Unauthorized.Explain("login required")
	}

	if form.Presentation == NewChoice {
		canCreate, err := s.perms.HasPerm(ctx, viewer, models.PermAddPresentation)
		if err != nil {
			return nil, err
		}
		if !canCreate {
			return nil, errors.Forbidden.Explain("You are not allowed to create new presentations")
		}
	}

	if err := s.validateForm(ctx, viewer, form); err != nil {
		return nil, err
	}

	var presentation *models.Presentation
	if form.Presentation == NewChoice {
		presentation = &models.Presentation{
			ID:      uuid.New(),
			Title:   form.Title,
			Name:    models.Slugify(form.Title),
			OwnerID: viewer.ID,
			Hidden:  true,
		}
	} else {
		id, err := uuid.Parse(form.Presentation)
		if err != nil {
			return nil, errors.NotFound.Explain("presentation not found")
		}
		q, err := s.writable(ctx, viewer)
		if err != nil {
			return nil, err
		}
		presentation, err = dbutil.FindOne[models.Presentation](q.Where("id = ?", id))
		if err != nil {
			return nil, dbutil.WrapError(err)
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if form.Presentation == NewChoice {
			if err := tx.Create(presentation).Error; err != nil {
				return fmt.Errorf("failed to create presentation: %w", dbutil.WrapError(err))
			}
		}

		var count int64
		if err := tx.Model(&models.PresentationItem{}).Where("presentation_id = ?", presentation.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count presentation items: %w", err)
		}
		order := int(count)
		for _, record := range records {
			order++
			item := &models.PresentationItem{
				ID:             uuid.New(),
				PresentationID: presentation.ID,
				RecordID:       record.ID,
				Order:          order,
			}
			if err := tx.Omit("Record").Create(item).Error; err != nil {
				return fmt.Errorf("failed to add record to presentation: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.PresentationItemsAdded.Add(float64(len(records)))
	s.logger.Info("Added records to presentation",
		zap.String("presentation_id", presentation.ID.String()),
		zap.String("username", viewer.Username),
		zap.Int("count", len(records)))
	return presentation, nil
}

func (s *Service) validateForm(ctx context.Context, viewer *models.User, form AddForm) error {
	if err := s.validator.Validate(form); err != nil {
		return err
	}

	choices, err := s.Choices(ctx, viewer)
	if err != nil {
		return err
	}
	offered := false
	for _, c := range choices {
		if c.Value == form.Presentation {
			offered = true
			break
		}
	}
	if !offered {
		return errors.Invalid.Explain("validation error").
			WithField("invalid_choice", "presentation", "Select a valid choice. That choice is not one of the available choices.")
	}

	if form.Presentation == NewChoice && form.Title == "" {
		return errors.Invalid.Explain("Please select an existing presentation or specify a new presentation title").
			WithField("required", "title", "Please select an existing presentation or specify a new presentation title")
	}
	return nil
}

// Presentation loads a presentation viewer may write, with its items in order.
func (s *Service) Presentation(ctx context.Context, viewer *models.User, id uuid.UUID) (*models.Presentation, []models.PresentationItem, error) {
	q, err := s.writable(ctx, viewer)
	if err != nil {
		return nil, nil, err
	}
	presentation, err := dbutil.FindOne[models.Presentation](q.Where("id = ?", id))
	if err != nil {
		return nil, nil, dbutil.WrapError(err)
	}

	var items []models.PresentationItem
	err = s.db.WithContext(ctx).Preload("Record").
		Where("presentation_id = ?", presentation.ID).
		Order("sort_order").
		Find(&items).Error
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load presentation items: %w", err)
	}
	return presentation, items, nil
}
