package data

import (
	"context"
	"fmt"

	"github.com/Aidin1998/catalogue/common/dbutil"
	"github.com/Aidin1998/catalogue/internal/access"
	"github.com/Aidin1998/catalogue/pkg/errors"
	"github.com/Aidin1998/catalogue/pkg/models"
	"github.com/google/uuid"
)

// NoContext is the URL placeholder for an unset owner or collection.
const NoContext = "-"

// EditContext is the owner and collection a record is edited for. Both nil is the default context.
type EditContext struct {
	Owner      *models.User
	Collection *models.Collection
}

// IsDefault reports whether neither owner nor collection is set.
func (c EditContext) IsDefault() bool {
	return c.Owner == nil && c.Collection == nil
}

// OwnerName is the owner's username or NoContext.
func (c EditContext) OwnerName() string {
	if c.Owner == nil {
		return NoContext
	}
	return c.Owner.Username
}

// CollectionName is the collection's name or NoContext.
func (c EditContext) CollectionName() string {
	if c.Collection == nil {
		return NoContext
	}
	return c.Collection.Name
}

// Label describes the context for display.
func (c EditContext) Label() string {
	return ContextLabel(c.OwnerName(), c.CollectionName())
}

// OwnerID is the owner's id, or nil.
func (c EditContext) OwnerID() *uuid.UUID {
	if c.Owner == nil {
		return nil
	}
	return &c.Owner.ID
}

// CollectionID is the collection's id, or nil.
func (c EditContext) CollectionID() *uuid.UUID {
	if c.Collection == nil {
		return nil
	}
	return &c.Collection.ID
}

// ContextLabel returns "Default" when both names are empty or NoContext,
// otherwise "Owner: <owner> Collection: <collection>".
func ContextLabel(owner, collection string) string {
	if owner == "" {
		owner = NoContext
	}
	if collection == "" {
		collection = NoContext
	}
	if owner == NoContext && collection == NoContext {
		return "Default"
	}
	return fmt.Sprintf("Owner: %s Collection: %s", owner, collection)
}

// ResolveContext checks that viewer may edit record id in the context named by ownerName
// and collectionName (empty or NoContext for none) and returns the context and the record.
//
// An owner context is only open to that owner and to superusers. A collection context
// without an owner needs write access to the collection, with an owner read access.
// With any context the record must sit in a readable collection; without one in a
// writable collection, unless the viewer owns the record. Every refusal is NotFound.
func (s *Service) ResolveContext(ctx context.Context, viewer *models.User, id uuid.UUID, ownerName, collectionName string) (*EditContext, *models.Record, error) {
	if viewer == nil {
		return nil, nil, errors.Unauthorized.Explain("login required")
	}

	ec := &EditContext{}
	if ownerName != "" && ownerName != NoContext {
		owner, err := dbutil.FindOne[models.User](s.db.WithContext(ctx).Where("username = ?", ownerName))
		if err != nil {
			return nil, nil, dbutil.WrapError(err)
		}
		if owner.ID != viewer.ID && !viewer.IsSuperuser {
			return nil, nil, errors.NotFound.Explain("no such context")
		}
		ec.Owner = owner
	}

	if collectionName != "" && collectionName != NoContext {
		scope, err := s.access.AccessibleIDs(ctx, viewer, models.ObjectCollection, ec.Owner == nil)
		if err != nil {
			return nil, nil, err
		}
		q := access.Filter(s.db.WithContext(ctx).Model(&models.Collection{}), models.ObjectCollection, scope)
		collection, err := dbutil.FindOne[models.Collection](q.Where("name = ?", collectionName))
		if err != nil {
			return nil, nil, dbutil.WrapError(err)
		}
		ec.Collection = collection
	}

	record, err := s.recordIn(ctx, viewer, id, ec.IsDefault())
	if err != nil {
		return nil, nil, err
	}
	return ec, record, nil
}
