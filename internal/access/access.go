// Package access evaluates access control rows for collections, storages and presentations.
//
// Rights are resolved per object:
//   - superusers may do anything;
//   - the owner of an object (collections and presentations) may do anything with it;
//   - an explicit user-level grant or deny wins over group and everyone rows;
//   - otherwise any group or everyone deny wins, then any grant allows.
package access

import (
	"context"
	"fmt"

	"github.com/Aidin1998/catalogue/pkg/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Checker answers access questions against the database
type Checker struct {
	logger *zap.Logger
	db     *gorm.DB
}

// NewChecker creates a new Checker
func NewChecker(logger *zap.Logger, db *gorm.DB) *Checker {
	return &Checker{logger: logger, db: db}
}

// Scope is the set of objects of one type a user may access.
type Scope struct {
	// All is set for superusers; IDs and OwnerID are then ignored.
	All bool
	// IDs granted through access control rows.
	IDs []uuid.UUID
	// OwnerID matches objects owned by the user, if the type has owners.
	OwnerID *uuid.UUID
}

var ownerColumns = map[string]string{
	models.ObjectCollection:   "owner_id",
	models.ObjectPresentation: "owner_id",
}

// AccessibleIDs computes the scope of objectType the user may read, or write when write is set.
func (c *Checker) AccessibleIDs(ctx context.Context, user *models.User, objectType string, write bool) (Scope, error) {
	if user != nil && user.IsSuperuser {
		return Scope{All: true}, nil
	}

	q := c.db.WithContext(ctx).Model(&models.AccessControl{}).Where("object_type = ?", objectType)
	if user == nil {
		q = q.Where("user_id IS NULL AND group_id IS NULL")
	} else {
		groups := c.db.WithContext(ctx).Model(&models.GroupMembership{}).
			Select("group_id").Where("user_id = ?", user.ID)
		q = q.Where("user_id = ? OR group_id IN (?) OR (user_id IS NULL AND group_id IS NULL)", user.ID, groups)
	}

	var rows []models.AccessControl
	if err := q.Find(&rows).Error; err != nil {
		return Scope{}, fmt.Errorf("failed to load access control for %s: %w", objectType, err)
	}

	type decision struct {
		user        *bool
		groupGrant  bool
		groupDenied bool
	}
	decisions := make(map[uuid.UUID]*decision)
	var order []uuid.UUID
	for _, row := range rows {
		right := row.Read
		if write {
			right = row.Write
		}
		if right == nil {
			continue
		}
		d, ok := decisions[row.ObjectID]
		if !ok {
			d = &decision{}
			decisions[row.ObjectID] = d
			order = append(order, row.ObjectID)
		}
		switch {
		case row.UserID != nil:
			d.user = right
		case *right:
			d.groupGrant = true
		default:
			d.groupDenied = true
		}
	}

	scope := Scope{IDs: make([]uuid.UUID, 0, len(order))}
	for _, id := range order {
		d := decisions[id]
		allowed := d.groupGrant && !d.groupDenied
		if d.user != nil {
			allowed = *d.user
		}
		if allowed {
			scope.IDs = append(scope.IDs, id)
		}
	}

	if user != nil {
		if _, ok := ownerColumns[objectType]; ok {
			scope.OwnerID = &user.ID
		}
	}

	return scope, nil
}

// Filter narrows query, whose model is of objectType, to the objects in scope.
func Filter(query *gorm.DB, objectType string, scope Scope) *gorm.DB {
	if scope.All {
		return query
	}
	if column, ok := ownerColumns[objectType]; ok && scope.OwnerID != nil {
		return query.Where("id IN ? OR "+column+" = ?", nonEmpty(scope.IDs), *scope.OwnerID)
	}
	return query.Where("id IN ?", nonEmpty(scope.IDs))
}

// FilterByAccess narrows query to the objects of objectType the user may read, or write.
func (c *Checker) FilterByAccess(ctx context.Context, query *gorm.DB, user *models.User, objectType string, write bool) (*gorm.DB, error) {
	scope, err := c.AccessibleIDs(ctx, user, objectType, write)
	if err != nil {
		return nil, err
	}
	return Filter(query, objectType, scope), nil
}

// CollectionIDs returns the ids of every collection the user may read, or write,
// including owned collections.
func (c *Checker) CollectionIDs(ctx context.Context, user *models.User, write bool) (Scope, []uuid.UUID, error) {
	scope, err := c.AccessibleIDs(ctx, user, models.ObjectCollection, write)
	if err != nil {
		return Scope{}, nil, err
	}
	if scope.All {
		return scope, nil, nil
	}

	var ids []uuid.UUID
	q := Filter(c.db.WithContext(ctx).Model(&models.Collection{}), models.ObjectCollection, scope)
	if err := q.Pluck("id", &ids).Error; err != nil {
		return Scope{}, nil, fmt.Errorf("failed to list accessible collections: %w", err)
	}
	return scope, ids, nil
}

// nonEmpty keeps "IN ?" valid for an empty slice.
func nonEmpty(ids []uuid.UUID) []uuid.UUID {
	if len(ids) == 0 {
		return []uuid.UUID{uuid.Nil}
	}
	return ids
}
