// Package testutil provides an in-memory database and fixture builders for package tests.
package testutil

import (
	"testing"

	"github.com/Aidin1998/catalogue/pkg/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Password is the password of every fixture user.
const Password = "password123"

// NewDB opens a migrated sqlite database private to the test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every pooled connection to :memory: would be a new empty database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

// User creates a user whose password is Password.
func User(t *testing.T, db *gorm.DB, username string, superuser bool) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: string(hash),
		IsSuperuser:  superuser,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// Permission grants codename to user.
func Permission(t *testing.T, db *gorm.DB, user *models.User, codename string) {
	t.Helper()
	require.NoError(t, db.Create(&models.UserPermission{ID: uuid.New(), UserID: user.ID, Codename: codename}).Error)
}

// Group creates a group with the given members.
func Group(t *testing.T, db *gorm.DB, name string, members ...*models.User) *models.Group {
	t.Helper()
	group := &models.Group{ID: uuid.New(), Name: name}
	require.NoError(t, db.Create(group).Error)
	for _, m := range members {
		require.NoError(t, db.Create(&models.GroupMembership{GroupID: group.ID, UserID: m.ID}).Error)
	}
	return group
}

// Collection creates a collection named name.
func Collection(t *testing.T, db *gorm.DB, name string) *models.Collection {
	t.Helper()
	c := &models.Collection{ID: uuid.New(), Name: name, Title: name}
	require.NoError(t, db.Create(c).Error)
	return c
}

// Record creates a record and places it in the given collections.
func Record(t *testing.T, db *gorm.DB, name string, collections ...*models.Collection) *models.Record {
	t.Helper()
	r := &models.Record{ID: uuid.New(), Name: name}
	require.NoError(t, db.Create(r).Error)
	for _, c := range collections {
		require.NoError(t, db.Create(&models.CollectionItem{CollectionID: c.ID, RecordID: r.ID}).Error)
	}
	return r
}

// Storage creates a storage named name.
func Storage(t *testing.T, db *gorm.DB, name string) *models.Storage {
	t.Helper()
	s := &models.Storage{ID: uuid.New(), Name: name, Title: name, System: "local"}
	require.NoError(t, db.Create(s).Error)
	return s
}

// Grant adds an access control row for user, or for everyone when user is nil.
// A false right is left unset.
func Grant(t *testing.T, db *gorm.DB, objectType string, objectID uuid.UUID, user *models.User, read, write bool) {
	t.Helper()
	ac := &models.AccessControl{
		ID:         uuid.New(),
		ObjectType: objectType,
		ObjectID:   objectID,
		Read:       grantOrUnset(read),
		Write:      grantOrUnset(write),
	}
	if user != nil {
		ac.UserID = &user.ID
	}
	require.NoError(t, db.Create(ac).Error)
}

// GrantGroup adds an access control row for group. A false right is left unset.
func GrantGroup(t *testing.T, db *gorm.DB, objectType string, objectID uuid.UUID, group *models.Group, read, write bool) {
	t.Helper()
	require.NoError(t, db.Create(&models.AccessControl{
		ID:         uuid.New(),
		ObjectType: objectType,
		ObjectID:   objectID,
		GroupID:    &group.ID,
		Read:       grantOrUnset(read),
		Write:      grantOrUnset(write),
	}).Error)
}

// Deny adds an explicit read and write deny for user, or for group when user is nil.
func Deny(t *testing.T, db *gorm.DB, objectType string, objectID uuid.UUID, user *models.User, group *models.Group) {
	t.Helper()
	ac := &models.AccessControl{
		ID:         uuid.New(),
		ObjectType: objectType,
		ObjectID:   objectID,
		Read:       models.Grant(false),
		Write:      models.Grant(false),
	}
	if user != nil {
		ac.UserID = &user.ID
	}
	if group != nil {
		ac.GroupID = &group.ID
	}
	require.NoError(t, db.Create(ac).Error)
}

func grantOrUnset(b bool) *bool {
	if !b {
		return nil
	}
	return models.Grant(true)
}

// Field creates a field, optionally part of standard.
func Field(t *testing.T, db *gorm.DB, name, label string, standard *models.Standard) *models.Field {
	t.Helper()
	f := &models.Field{ID: uuid.New(), Name: name, Label: label}
	if standard != nil {
		f.StandardID = &standard.ID
	}
	require.NoError(t, db.Create(f).Error)
	return f
}

// Value creates a field value; opts can set context, override or order.
func Value(t *testing.T, db *gorm.DB, record *models.Record, field *models.Field, value string, opts ...func(*models.FieldValue)) *models.FieldValue {
	t.Helper()
	v := &models.FieldValue{
		ID:       uuid.New(),
		RecordID: record.ID,
		FieldID:  field.ID,
		Value:    value,
		Type:     models.ValueTypeText,
	}
	for _, opt := range opts {
		opt(v)
	}
	require.NoError(t, db.Create(v).Error)
	return v
}

// OwnedBy scopes a fixture value to user.
func OwnedBy(user *models.User) func(*models.FieldValue) {
	return func(v *models.FieldValue) { v.OwnerID = &user.ID }
}

// InCollection scopes a fixture value to collection.
func InCollection(c *models.Collection) func(*models.FieldValue) {
	return func(v *models.FieldValue) { v.CollectionID = &c.ID }
}

// Overriding marks a fixture value as an override of global.
func Overriding(global *models.FieldValue) func(*models.FieldValue) {
	return func(v *models.FieldValue) { v.OverrideID = &global.ID }
}

// Hidden hides a fixture value.
func Hidden() func(*models.FieldValue) {
	return func(v *models.FieldValue) { v.Hidden = true }
}

// Ordered sets a fixture value's position.
func Ordered(order int) func(*models.FieldValue) {
	return func(v *models.FieldValue) { v.Order = order }
}
