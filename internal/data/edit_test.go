package data_test

import (
	"testing"

	"github.com/Aidin1998/catalogue/internal/data"
	"github.com/Aidin1998/catalogue/pkg/errors"
	"github.com/Aidin1998/catalogue/pkg/models"
	"github.com/Aidin1998/catalogue/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextLabel(t *testing.T) {
	assert.Equal(t, "Default", data.ContextLabel("", ""))
	assert.Equal(t, "Default", data.ContextLabel("-", "-"))
	assert.Equal(t, "Owner: alice Collection: -", data.ContextLabel("alice", ""))
	assert.Equal(t, "Owner: - Collection: art", data.ContextLabel("-", "art"))
}

func TestResolveContext(t *testing.T) {
	svc, db, ctx := newService(t)
	alice := testutil.User(t, db, "alice", false)
	bob := testutil.User(t, db, "bob", false)
	carol := testutil.User(t, db, "carol", false)
	dave := testutil.User(t, db, "dave", false)
	root := testutil.User(t, db, "root", true)

	main := testutil.Collection(t, db, "main")
	testutil.Grant(t, db, models.ObjectCollection, main.ID, alice, true, true)
	testutil.Grant(t, db, models.ObjectCollection, main.ID, bob, true, false)
	record := testutil.Record(t, db, "r", main)

	owned := testutil.Record(t, db, "owned")
	require.NoError(t, db.Model(owned).Update("owner_id", dave.ID).Error)

	cases := []struct {
		name       string
		viewer     *models.User
		record     uuid.UUID
		owner      string
		collection string
		err        error
		label      string
	}{
		{name: "anonymous", viewer: nil, record: record.ID, err: errors.Unauthorized},
		{name: "writer default", viewer: alice, record: record.ID, label: "Default"},
		{name: "dashes mean default", viewer: alice, record: record.ID, owner: "-", collection: "-", label: "Default"},
		{name: "reader default", viewer: bob, record: record.ID, err: errors.NotFound},
		{name: "stranger default", viewer: carol, record: record.ID, err: errors.NotFound},
		{name: "record owner default", viewer: dave, record: owned.ID, label: "Default"},
		{name: "other owner", viewer: bob, record: record.ID, owner: "alice", err: errors.NotFound},
		{name: "unknown owner", viewer: alice, record: record.ID, owner: "nobody", err: errors.NotFound},
		{name: "superuser as owner", viewer: root, record: record.ID, owner: "alice", label: "Owner: alice Collection: -"},
		{name: "reader own context", viewer: bob, record: record.ID, owner: "bob", collection: "-", label: "Owner: bob Collection: -"},
		{name: "stranger own context", viewer: carol, record: record.ID, owner: "carol", err: errors.NotFound},
		{name: "collection needs write", viewer: bob, record: record.ID, owner: "-", collection: "main", err: errors.NotFound},
		{name: "collection with write", viewer: alice, record: record.ID, collection: "main", label: "Owner: - Collection: main"},
		{name: "collection with owner", viewer: bob, record: record.ID, owner: "bob", collection: "main", label: "Owner: bob Collection: main"},
		{name: "unknown collection", viewer: alice, record: record.ID, collection: "nope", err: errors.NotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ec, r, err := svc.ResolveContext(ctx, tc.viewer, tc.record, tc.owner, tc.collection)
			if tc.err != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tc.err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.record, r.ID)
			assert.Equal(t, tc.label, ec.Label())
		})
	}
}

func TestOverrideValues(t *testing.T) {
	svc, db, ctx := newService(t)
	alice := testutil.User(t, db, "alice", false)
	main := testutil.Collection(t, db, "main")
	testutil.Grant(t, db, models.ObjectCollection, main.ID, alice, true, true)
	r := testutil.Record(t, db, "r", main)
	title := testutil.Field(t, db, "title", "Title", nil)
	desc := testutil.Field(t, db, "description", "Description", nil)

	gTitle := testutil.Value(t, db, r, title, "Global title", testutil.Ordered(0))
	gDesc := testutil.Value(t, db, r, desc, "Global description", testutil.Ordered(1))
	gHidden := testutil.Value(t, db, r, desc, "Hidden", testutil.Hidden(), testutil.Ordered(2))

	view, err := svc.EditView(ctx, alice, r.ID, "alice", "-")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{gTitle.ID, gDesc.ID}, ids(view.ReadOnly))
	assert.Empty(t, view.Values)

	require.NoError(t, svc.OverrideValues(ctx, alice, r.ID, "alice", "-", []uuid.UUID{gTitle.ID, gHidden.ID, uuid.New()}))

	view, err = svc.EditView(ctx, alice, r.ID, "alice", "-")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{gDesc.ID}, ids(view.ReadOnly))
	require.Len(t, view.Values, 1)
	copied := view.Values[0]
	require.NotNil(t, copied.OverrideID)
	assert.Equal(t, gTitle.ID, *copied.OverrideID)
	require.NotNil(t, copied.OwnerID)
	assert.Equal(t, alice.ID, *copied.OwnerID)
	assert.Nil(t, copied.CollectionID)
	assert.Equal(t, "Global title", copied.Value)

	// the default context is untouched
	defaults, err := svc.EditView(ctx, alice, r.ID, "", "")
	require.NoError(t, err)
	assert.Empty(t, defaults.ReadOnly)
	assert.Equal(t, []uuid.UUID{gTitle.ID, gDesc.ID, gHidden.ID}, ids(defaults.Values))
}

func TestSaveFieldValues(t *testing.T) {
	svc, db, ctx := newService(t)
	alice := testutil.User(t, db, "alice", false)
	main := testutil.Collection(t, db, "main")
	testutil.Grant(t, db, models.ObjectCollection, main.ID, alice, true, true)
	r := testutil.Record(t, db, "r", main)
	title := testutil.Field(t, db, "title", "Title", nil)
	desc := testutil.Field(t, db, "description", "Description", nil)
	topic := testutil.Field(t, db, "subject", "Subject", nil)

	v1 := testutil.Value(t, db, r, title, "Old title", testutil.Ordered(0))
	v2 := testutil.Value(t, db, r, desc, "Doomed", testutil.Ordered(1))

	forms := []data.FieldValueForm{
		{ID: &v1.ID, Field: title.ID.String(), Value: "New title", Order: intPtr(2)},
		{ID: &v2.ID, Field: desc.ID.String(), Value: "Doomed", Delete: true},
		{Field: topic.ID.String(), Value: `<b>Birds</b><script>alert(1)</script>`, Type: models.ValueTypeHTML, Order: intPtr(1)},
		{}, {}, {},
	}
	require.NoError(t, svc.SaveFieldValues(ctx, alice, r.ID, "", "", forms))

	view, err := svc.EditView(ctx, alice, r.ID, "", "")
	require.NoError(t, err)
	require.Len(t, view.Values, 2)
	assert.Equal(t, topic.ID, view.Values[0].FieldID)
	assert.Equal(t, "<b>Birds</b>", view.Values[0].Value)
	assert.Equal(t, 0, view.Values[0].Order)
	assert.Equal(t, v1.ID, view.Values[1].ID)
	assert.Equal(t, "New title", view.Values[1].Value)
	assert.Equal(t, 1, view.Values[1].Order)

	var count int64
	require.NoError(t, db.Model(&models.FieldValue{}).Where("id = ?", v2.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSaveFieldValuesInContextKeepsOverride(t *testing.T) {
	svc, db, ctx := newService(t)
	alice := testutil.User(t, db, "alice", false)
	main := testutil.Collection(t, db, "main")
	testutil.Grant(t, db, models.ObjectCollection, main.ID, alice, true, true)
	r := testutil.Record(t, db, "r", main)
	title := testutil.Field(t, db, "title", "Title", nil)
	desc := testutil.Field(t, db, "description", "Description", nil)
	gTitle := testutil.Value(t, db, r, title, "Global title", testutil.Ordered(0))
	gDesc := testutil.Value(t, db, r, desc, "Global description", testutil.Ordered(1))

	require.NoError(t, svc.OverrideValues(ctx, alice, r.ID, "-", "main", []uuid.UUID{gTitle.ID}))
	view, err := svc.EditView(ctx, alice, r.ID, "-", "main")
	require.NoError(t, err)
	require.Len(t, view.Values, 1)
	copied := view.Values[0]

	forms := []data.FieldValueForm{{ID: &copied.ID, Field: title.ID.String(), Value: "Collection title"}}
	require.NoError(t, svc.SaveFieldValues(ctx, alice, r.ID, "-", "main", forms))

	var saved models.FieldValue
	require.NoError(t, db.First(&saved, "id = ?", copied.ID).Error)
	assert.Equal(t, "Collection title", saved.Value)
	require.NotNil(t, saved.OverrideID)
	assert.Equal(t, gTitle.ID, *saved.OverrideID)
	require.NotNil(t, saved.CollectionID)
	assert.Equal(t, main.ID, *saved.CollectionID)

	// read-only globals come first in the rewritten order
	var global models.FieldValue
	require.NoError(t, db.First(&global, "id = ?", gDesc.ID).Error)
	assert.Equal(t, 0, global.Order)
	assert.Equal(t, 1, saved.Order)
}

func TestSaveFieldValuesValidation(t *testing.T) {
	svc, db, ctx := newService(t)
	alice := testutil.User(t, db, "alice", false)
	main := testutil.Collection(t, db, "main")
	testutil.Grant(t, db, models.ObjectCollection, main.ID, alice, true, true)
	r := testutil.Record(t, db, "r", main)
	other := testutil.Record(t, db, "other", main)
	title := testutil.Field(t, db, "title", "Title", nil)
	v := testutil.Value(t, db, r, title, "Keep me")
	foreign := testutil.Value(t, db, other, title, "Not yours")

	cases := []struct {
		name  string
		forms []data.FieldValueForm
		field string
	}{
		{name: "missing value", forms: []data.FieldValueForm{{ID: &v.ID, Field: title.ID.String()}}, field: "fv-0-value"},
		{name: "missing field", forms: []data.FieldValueForm{{}, {Value: "orphan"}}, field: "fv-1-field"},
		{name: "unknown field", forms: []data.FieldValueForm{{Field: uuid.NewString(), Value: "x"}}, field: "fv-0-field"},
		{name: "bad type", forms: []data.FieldValueForm{{Field: title.ID.String(), Value: "x", Type: "blob"}}, field: "fv-0-type"},
		{name: "not a number", forms: []data.FieldValueForm{{Field: title.ID.String(), Value: "twelve", Type: "number"}}, field: "fv-0-value"},
		{name: "value of another record", forms: []data.FieldValueForm{{ID: &foreign.ID, Field: title.ID.String(), Value: "x"}}, field: "fv-0-id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.SaveFieldValues(ctx, alice, r.ID, "", "", tc.forms)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.Invalid))

			var e *errors.Error
			require.True(t, errors.As(err, &e))
			var fields []string
			for _, f := range e.Fields {
				fields = append(fields, f.Field)
			}
			assert.Contains(t, fields, tc.field)
		})
	}

	var saved models.FieldValue
	require.NoError(t, db.First(&saved, "id = ?", v.ID).Error)
	assert.Equal(t, "Keep me", saved.Value)
}

func TestEditRequiresWritableRecord(t *testing.T) {
	svc, db, ctx := newService(t)
	bob := testutil.User(t, db, "bob", false)
	main := testutil.Collection(t, db, "main")
	testutil.Grant(t, db, models.ObjectCollection, main.ID, bob, true, false)
	r := testutil.Record(t, db, "r", main)
	title := testutil.Field(t, db, "title", "Title", nil)
	v := testutil.Value(t, db, r, title, "Untouchable")

	err := svc.SaveFieldValues(ctx, bob, r.ID, "", "", []data.FieldValueForm{{ID: &v.ID, Field: title.ID.String(), Value: "Changed"}})
	assert.True(t, errors.Is(err, errors.NotFound))
}

func intPtr(i int) *int {
	return &i
}
