package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// User represents an account; a nil *User stands for the anonymous visitor
type User struct {
	ID           uuid.UUID `json:"id" gorm:"primaryKey;type:uuid" validate:"required"`
	Username     string    `json:"username" gorm:"uniqueIndex;size:150" validate:"required,max=150"`
	Email        string    `json:"email" gorm:"size:254" validate:"omitempty,email,max=254"`
	PasswordHash string    `json:"-" gorm:"column:password_hash"`
	IsSuperuser  bool      `json:"is_superuser"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Group is a named set of users that access control rows can target
type Group struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Name      string    `json:"name" gorm:"uniqueIndex;size:150" validate:"required,max=150"`
	CreatedAt time.Time `json:"created_at"`
}

// GroupMembership links users to groups
type GroupMembership struct {
	GroupID uuid.UUID `json:"group_id" gorm:"primaryKey;type:uuid"`
	UserID  uuid.UUID `json:"user_id" gorm:"primaryKey;type:uuid;index"`
}

// UserPermission grants a named permission such as PermAddPresentation
type UserPermission struct {
	ID       uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	UserID   uuid.UUID `json:"user_id" gorm:"type:uuid;uniqueIndex:idx_user_permission"`
	Codename string    `json:"codename" gorm:"size:100;uniqueIndex:idx_user_permission" validate:"required"`
}

// Permission codenames
const (
	PermAddPresentation = "data.add_presentation"
)

// Object types protected by AccessControl rows
const (
	ObjectCollection   = "collection"
	ObjectStorage      = "storage"
	ObjectPresentation = "presentation"
)

// AccessControl grants or denies rights on one object.
// A row targets a user, a group, or everyone (both nil).
// A nil right is unset; false is an explicit deny.
type AccessControl struct {
	ID         uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	ObjectType string     `json:"object_type" gorm:"size:32;index:idx_acl_object" validate:"required,oneof=collection storage presentation"`
	ObjectID   uuid.UUID  `json:"object_id" gorm:"type:uuid;index:idx_acl_object"`
	UserID     *uuid.UUID `json:"user_id,omitempty" gorm:"type:uuid;index"`
	GroupID    *uuid.UUID `json:"group_id,omitempty" gorm:"type:uuid;index"`
	Read       *bool      `json:"read,omitempty"`
	Write      *bool      `json:"write,omitempty"`
	Manage     *bool      `json:"manage,omitempty"`
}

// Grant returns a pointer to b for use in AccessControl rights.
func Grant(b bool) *bool {
	return &b
}

// Slugify turns a title into the lowercase dash separated name used in URLs,
// transliterating non-ASCII letters.
func Slugify(title string) string {
	name := slug.Make(title)
	if len(name) > 50 {
		name = strings.TrimRight(name[:50], "-")
	}
	if name == "" {
		return "untitled"
	}
	return name
}

// All returns every model, in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Group{},
		&GroupMembership{},
		&UserPermission{},
		&AccessControl{},
		&Collection{},
		&Record{},
		&CollectionItem{},
		&Standard{},
		&Field{},
		&FieldSet{},
		&FieldSetField{},
		&FieldValue{},
		&Storage{},
		&Media{},
		&Presentation{},
		&PresentationItem{},
	}
}

func objectURL(kind string, id uuid.UUID, name string) string {
	return fmt.Sprintf("/%s/%s/%s", kind, id, name)
}
