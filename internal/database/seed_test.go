package database_test

import (
	"context"
	"strings"
	"testing"

	"github.com/Aidin1998/catalogue/internal/database"
	"github.com/Aidin1998/catalogue/pkg/models"
	"github.com/Aidin1998/catalogue/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const fixtures = `
users:
  - username: alice
    password: wonderland
    permissions: [data.add_presentation]
  - username: root
    password: toor
    superuser: true
groups:
  - name: editors
    members: [alice]
standards:
  - name: dc
    title: Dublin Core
    prefix: dc
fields:
  - {name: title, label: Title, standard: dc}
  - {name: description, label: Description, standard: dc}
fieldsets:
  - name: brief
    title: Brief
    standard: true
    fields: [title]
collections:
  - name: art
    title: Art
    access:
      - {read: true}
      - {group: editors, read: true, write: true}
storages:
  - name: local
    title: Local
    system: local
    access:
      - {read: true}
records:
  - name: mona-lisa
    fieldset: brief
    collections: [art]
    values:
      - {field: title, value: Mona Lisa}
      - {field: description, value: "<p>Portrait</p>", type: html}
      - {field: title, value: La Gioconda, owner: alice}
    media:
      - {storage: local, name: thumb, url: /media/mona.jpg, mimetype: image/jpeg, width: 100, height: 150}
`

func TestSeed(t *testing.T) {
	db := testutil.NewDB(t)
	f, err := database.LoadFixtures(strings.NewReader(fixtures))
	require.NoError(t, err)
	require.NoError(t, database.Seed(context.Background(), db, zap.NewNop(), f))

	var alice models.User
	require.NoError(t, db.First(&alice, "username = ?", "alice").Error)
	assert.NotEqual(t, "wonderland", alice.PasswordHash)

	var perms int64
	require.NoError(t, db.Model(&models.UserPermission{}).Where("user_id = ?", alice.ID).Count(&perms).Error)
	assert.Equal(t, int64(1), perms)

	var record models.Record
	require.NoError(t, db.First(&record, "name = ?", "mona-lisa").Error)
	require.NotNil(t, record.FieldsetID)

	var values []models.FieldValue
	require.NoError(t, db.Where("record_id = ?", record.ID).Order("sort_order").Find(&values).Error)
	require.Len(t, values, 3)
	assert.Equal(t, models.ValueTypeText, values[0].Type)
	assert.Equal(t, models.ValueTypeHTML, values[1].Type)
	require.NotNil(t, values[2].OwnerID)
	assert.Equal(t, alice.ID, *values[2].OwnerID)

	var acl []models.AccessControl
	require.NoError(t, db.Where("object_type = ?", models.ObjectCollection).Find(&acl).Error)
	require.Len(t, acl, 2)

	var media int64
	require.NoError(t, db.Model(&models.Media{}).Where("record_id = ?", record.ID).Count(&media).Error)
	assert.Equal(t, int64(1), media)
}

func TestSeedRollsBackOnUnknownReference(t *testing.T) {
	db := testutil.NewDB(t)
	f, err := database.LoadFixtures(strings.NewReader(`
users:
  - {username: alice, password: pw}
records:
  - {name: r, collections: [missing]}
`))
	require.NoError(t, err)

	err = database.Seed(context.Background(), db, zap.NewNop(), f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown collection "missing"`)

	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.Zero(t, users)
}

func TestLoadFixturesRejectsUnknownKeys(t *testing.T) {
	_, err := database.LoadFixtures(strings.NewReader("userz: []\n"))
	assert.Error(t, err)
}

func TestSeedSampleFixtures(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, database.SeedFile(context.Background(), db, zap.NewNop(), "../../configs/fixtures.yaml"))

	var records []models.Record
	require.NoError(t, db.Order("name").Find(&records).Error)
	require.Len(t, records, 2)
	assert.Equal(t, "city-1493", records[0].Name)

	var media int64
	require.NoError(t, db.Model(&models.Media{}).Count(&media).Error)
	assert.Equal(t, int64(1), media)
}
