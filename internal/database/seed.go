package database

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Aidin1998/catalogue/common/dbutil"
	"github.com/Aidin1998/catalogue/internal/auth"
	"github.com/Aidin1998/catalogue/pkg/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// Fixtures is the YAML document loaded by Seed. Objects refer to each other by name.
type Fixtures struct {
	Users       []UserFixture       `yaml:"users"`
	Groups      []GroupFixture      `yaml:"groups"`
	Standards   []models.Standard   `yaml:"standards"`
	Fields      []FieldFixture      `yaml:"fields"`
	FieldSets   []FieldSetFixture   `yaml:"fieldsets"`
	Collections []CollectionFixture `yaml:"collections"`
	Storages    []StorageFixture    `yaml:"storages"`
	Records     []RecordFixture     `yaml:"records"`
}

type UserFixture struct {
	Username    string   `yaml:"username"`
	Email       string   `yaml:"email"`
	Password    string   `yaml:"password"`
	Superuser   bool     `yaml:"superuser"`
	Permissions []string `yaml:"permissions"`
}

type GroupFixture struct {
	Name    string   `yaml:"name"`
	Members []string `yaml:"members"`
}

type FieldFixture struct {
	Name     string `yaml:"name"`
	Label    string `yaml:"label"`
	Standard string `yaml:"standard"`
}

type FieldSetFixture struct {
	Name     string   `yaml:"name"`
	Title    string   `yaml:"title"`
	Owner    string   `yaml:"owner"`
	Standard bool     `yaml:"standard"`
	Fields   []string `yaml:"fields"`
}

// AccessFixture targets a user, a group, or everyone when both are empty.
type AccessFixture struct {
	User   string `yaml:"user"`
	Group  string `yaml:"group"`
	Read   *bool  `yaml:"read"`
	Write  *bool  `yaml:"write"`
	Manage *bool  `yaml:"manage"`
}

type CollectionFixture struct {
	Name        string          `yaml:"name"`
	Title       string          `yaml:"title"`
	Description string          `yaml:"description"`
	Hidden      bool            `yaml:"hidden"`
	Owner       string          `yaml:"owner"`
	Access      []AccessFixture `yaml:"access"`
}

type StorageFixture struct {
	Name   string          `yaml:"name"`
	Title  string          `yaml:"title"`
	System string          `yaml:"system"`
	Base   string          `yaml:"base"`
	Access []AccessFixture `yaml:"access"`
}

type ValueFixture struct {
	Field      string `yaml:"field"`
	Value      string `yaml:"value"`
	Type       string `yaml:"type"`
	Label      string `yaml:"label"`
	Language   string `yaml:"language"`
	Hidden     bool   `yaml:"hidden"`
	Owner      string `yaml:"owner"`
	Collection string `yaml:"collection"`
}

type MediaFixture struct {
	Storage  string `yaml:"storage"`
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	MimeType string `yaml:"mimetype"`
	Width    int    `yaml:"width"`
	Height   int    `yaml:"height"`
}

type RecordFixture struct {
	Name        string         `yaml:"name"`
	Owner       string         `yaml:"owner"`
	FieldSet    string         `yaml:"fieldset"`
	Collections []string       `yaml:"collections"`
	Values      []ValueFixture `yaml:"values"`
	Media       []MediaFixture `yaml:"media"`
}

// LoadFixtures parses a fixtures document.
func LoadFixtures(r io.Reader) (*Fixtures, error) {
	var f Fixtures
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse fixtures: %w", err)
	}
	return &f, nil
}

// SeedFile loads the fixtures at path into db.
func SeedFile(ctx context.Context, db *gorm.DB, log *zap.Logger, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open fixtures: %w", err)
	}
	defer file.Close()

	fixtures, err := LoadFixtures(file)
	if err != nil {
		return err
	}
	return Seed(ctx, db, log, fixtures)
}

// Seed inserts the fixtures in a single transaction.
func Seed(ctx context.Context, db *gorm.DB, log *zap.Logger, f *Fixtures) error {
	s := &seeder{
		users:       map[string]uuid.UUID{},
		groups:      map[string]uuid.UUID{},
		standards:   map[string]uuid.UUID{},
		fields:      map[string]uuid.UUID{},
		fieldsets:   map[string]uuid.UUID{},
		collections: map[string]uuid.UUID{},
		storages:    map[string]uuid.UUID{},
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s.tx = tx
		steps := []func(*Fixtures) error{
			s.seedUsers,
			s.seedGroups,
			s.seedFields,
			s.seedFieldSets,
			s.seedCollections,
			s.seedStorages,
			s.seedRecords,
		}
		for _, step := range steps {
			if err := step(f); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info("Seeded fixtures",
		zap.Int("users", len(f.Users)),
		zap.Int("collections", len(f.Collections)),
		zap.Int("records", len(f.Records)))
	return nil
}

type seeder struct {
	tx          *gorm.DB
	users       map[string]uuid.UUID
	groups      map[string]uuid.UUID
	standards   map[string]uuid.UUID
	fields      map[string]uuid.UUID
	fieldsets   map[string]uuid.UUID
	collections map[string]uuid.UUID
	storages    map[string]uuid.UUID
}

func (s *seeder) create(kind string, value interface{}) error {
	if err := s.tx.Create(value).Error; err != nil {
		return fmt.Errorf("failed to seed %s: %w", kind, dbutil.WrapError(err))
	}
	return nil
}

// ref resolves name in refs; an empty name is nil.
func ref(kind string, refs map[string]uuid.UUID, name string) (*uuid.UUID, error) {
	if name == "" {
		return nil, nil
	}
	id, ok := refs[name]
	if !ok {
		return nil, fmt.Errorf("unknown %s %q in fixtures", kind, name)
	}
	return &id, nil
}

func (s *seeder) seedUsers(f *Fixtures) error {
	for _, u := range f.Users {
		hash, err := auth.HashPassword(u.Password)
		if err != nil {
			return err
		}
		user := &models.User{
			ID:           uuid.New(),
			Username:     u.Username,
			Email:        u.Email,
			PasswordHash: hash,
			IsSuperuser:  u.Superuser,
		}
		if err := s.create("user", user); err != nil {
			return err
		}
		s.users[u.Username] = user.ID
		for _, codename := range u.Permissions {
			if err := s.create("permission", &models.UserPermission{ID: uuid.New(), UserID: user.ID, Codename: codename}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *seeder) seedGroups(f *Fixtures) error {
	for _, g := range f.Groups {
		group := &models.Group{ID: uuid.New(), Name: g.Name}
		if err := s.create("group", group); err != nil {
			return err
		}
		s.groups[g.Name] = group.ID
		for _, member := range g.Members {
			userID, err := ref("user", s.users, member)
			if err != nil {
				return err
			}
			if err := s.create("group membership", &models.GroupMembership{GroupID: group.ID, UserID: *userID}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *seeder) seedFields(f *Fixtures) error {
	for i := range f.Standards {
		standard := f.Standards[i]
		standard.ID = uuid.New()
		if err := s.create("standard", &standard); err != nil {
			return err
		}
		s.standards[standard.Name] = standard.ID
	}
	for _, fx := range f.Fields {
		standardID, err := ref("standard", s.standards, fx.Standard)
		if err != nil {
			return err
		}
		field := &models.Field{ID: uuid.New(), Name: fx.Name, Label: fx.Label, StandardID: standardID}
		if err := s.create("field", field); err != nil {
			return err
		}
		s.fields[fx.Name] = field.ID
	}
	return nil
}

func (s *seeder) seedFieldSets(f *Fixtures) error {
	for _, fx := range f.FieldSets {
		ownerID, err := ref("user", s.users, fx.Owner)
		if err != nil {
			return err
		}
		fieldset := &models.FieldSet{ID: uuid.New(), Name: fx.Name, Title: fx.Title, OwnerID: ownerID, Standard: fx.Standard}
		if err := s.create("fieldset", fieldset); err != nil {
			return err
		}
		s.fieldsets[fx.Name] = fieldset.ID
		for i, name := range fx.Fields {
			fieldID, err := ref("field", s.fields, name)
			if err != nil {
				return err
			}
			if err := s.create("fieldset field", &models.FieldSetField{FieldSetID: fieldset.ID, FieldID: *fieldID, Order: i + 1}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *seeder) seedAccess(objectType string, objectID uuid.UUID, rows []AccessFixture) error {
	for _, a := range rows {
		userID, err := ref("user", s.users, a.User)
		if err != nil {
			return err
		}
		groupID, err := ref("group", s.groups, a.Group)
		if err != nil {
			return err
		}
		ac := &models.AccessControl{
			ID:         uuid.New(),
			ObjectType: objectType,
			ObjectID:   objectID,
			UserID:     userID,
			GroupID:    groupID,
			Read:       a.Read,
			Write:      a.Write,
			Manage:     a.Manage,
		}
		if err := s.create("access control", ac); err != nil {
			return err
		}
	}
	return nil
}

func (s *seeder) seedCollections(f *Fixtures) error {
	for _, c := range f.Collections {
		ownerID, err := ref("user", s.users, c.Owner)
		if err != nil {
			return err
		}
		title := c.Title
		if title == "" {
			title = c.Name
		}
		collection := &models.Collection{
			ID:          uuid.New(),
			Name:        c.Name,
			Title:       title,
			Description: c.Description,
			Hidden:      c.Hidden,
			OwnerID:     ownerID,
		}
		if err := s.create("collection", collection); err != nil {
			return err
		}
		s.collections[c.Name] = collection.ID
		if err := s.seedAccess(models.ObjectCollection, collection.ID, c.Access); err != nil {
			return err
		}
	}
	return nil
}

func (s *seeder) seedStorages(f *Fixtures) error {
	for _, st := range f.Storages {
		storage := &models.Storage{ID: uuid.New(), Name: st.Name, Title: st.Title, System: st.System, Base: st.Base}
		if err := s.create("storage", storage); err != nil {
			return err
		}
		s.storages[st.Name] = storage.ID
		if err := s.seedAccess(models.ObjectStorage, storage.ID, st.Access); err != nil {
			return err
		}
	}
	return nil
}

func (s *seeder) seedRecords(f *Fixtures) error {
	for _, r := range f.Records {
		ownerID, err := ref("user", s.users, r.Owner)
		if err != nil {
			return err
		}
		fieldsetID, err := ref("fieldset", s.fieldsets, r.FieldSet)
		if err != nil {
			return err
		}
		record := &models.Record{ID: uuid.New(), Name: r.Name, OwnerID: ownerID, FieldsetID: fieldsetID}
		if err := s.create("record", record); err != nil {
			return err
		}

		for _, name := range r.Collections {
			collectionID, err := ref("collection", s.collections, name)
			if err != nil {
				return err
			}
			if err := s.create("collection item", &models.CollectionItem{CollectionID: *collectionID, RecordID: record.ID}); err != nil {
				return err
			}
		}

		for i, v := range r.Values {
			fieldID, err := ref("field", s.fields, v.Field)
			if err != nil {
				return err
			}
			valueOwner, err := ref("user", s.users, v.Owner)
			if err != nil {
				return err
			}
			valueCollection, err := ref("collection", s.collections, v.Collection)
			if err != nil {
				return err
			}
			valueType := v.Type
			if valueType == "" {
				valueType = models.ValueTypeText
			}
			value := &models.FieldValue{
				ID:           uuid.New(),
				RecordID:     record.ID,
				FieldID:      *fieldID,
				OwnerID:      valueOwner,
				CollectionID: valueCollection,
				Hidden:       v.Hidden,
				Order:        i,
				Label:        v.Label,
				Value:        v.Value,
				Type:         valueType,
				Language:     v.Language,
			}
			if err := s.create("field value", value); err != nil {
				return err
			}
		}

		for _, m := range r.Media {
			storageID, err := ref("storage", s.storages, m.Storage)
			if err != nil {
				return err
			}
			if storageID == nil {
				return fmt.Errorf("media %q of record %q has no storage", m.Name, r.Name)
			}
			media := &models.Media{
				ID:        uuid.New(),
				RecordID:  record.ID,
				StorageID: *storageID,
				Name:      m.Name,
				URL:       m.URL,
				MimeType:  m.MimeType,
				Width:     m.Width,
				Height:    m.Height,
			}
			if err := s.create("media", media); err != nil {
				return err
			}
		}
	}
	return nil
}
