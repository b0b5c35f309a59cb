package api_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Aidin1998/catalogue/api"
	"github.com/Aidin1998/catalogue/internal/access"
	"github.com/Aidin1998/catalogue/internal/auth"
	"github.com/Aidin1998/catalogue/internal/config"
	"github.com/Aidin1998/catalogue/internal/data"
	"github.com/Aidin1998/catalogue/internal/presentation"
	"github.com/Aidin1998/catalogue/internal/session"
	"github.com/Aidin1998/catalogue/pkg/models"
	"github.com/Aidin1998/catalogue/pkg/validation"
	"github.com/Aidin1998/catalogue/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	t      *testing.T
	db     *gorm.DB
	auth   *auth.Service
	router *gin.Engine
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Server:      config.ServerConfig{AllowedOrigins: []string{"*"}},
		Auth: config.AuthConfig{
			JWTSecret:       "test-secret-0123456789",
			ExpirationHours: 1,
			Issuer:          "catalogue-test",
			LoginRate:       "1000-M",
		},
		Session:   config.SessionConfig{CookieName: "sessionid", MaxAge: time.Hour},
		Telemetry: config.TelemetryConfig{ServiceName: "catalogue-test"},
	}
}

// setupRouter wires the real services on an in-memory database
func setupRouter(t *testing.T, configure ...func(*config.Config)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	for _, fn := range configure {
		fn(cfg)
	}

	db := testutil.NewDB(t)
	logger := zap.NewNop()
	authSvc := auth.NewService(logger, db, cfg.Auth.JWTSecret, time.Hour, cfg.Auth.Issuer)
	checker := access.NewChecker(logger, db)
	validator := validation.NewValidator()

	srv, err := api.NewServer(logger, cfg, db, nil, api.Services{
		Auth:          authSvc,
		Data:          data.NewService(logger, db, checker, validator, validation.NewSanitizer()),
		Presentations: presentation.NewService(logger, db, checker, authSvc, validator),
		Selections:    session.NewMemoryStore(),
	})
	require.NoError(t, err)

	return &testEnv{t: t, db: db, auth: authSvc, router: srv.Router()}
}

type requestOption func(*http.Request)

func bearer(token string) requestOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func acceptHTML(r *http.Request) {
	r.Header.Set("Accept", "text/html,application/xhtml+xml")
}

func withCookies(cookies []*http.Cookie) requestOption {
	return func(r *http.Request) {
		for _, c := range cookies {
			r.AddCookie(c)
		}
	}
}

func (e *testEnv) do(method, path string, body io.Reader, opts ...requestOption) *httptest.ResponseRecorder {
	e.t.Helper()
	req := httptest.NewRequest(method, path, body)
	for _, opt := range opts {
		opt(req)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) postForm(path string, form url.Values, opts ...requestOption) *httptest.ResponseRecorder {
	e.t.Helper()
	contentType := func(r *http.Request) { r.Header.Set("Content-Type", "application/x-www-form-urlencoded") }
	return e.do(http.MethodPost, path, strings.NewReader(form.Encode()), append([]requestOption{contentType}, opts...)...)
}

func (e *testEnv) postJSON(path string, body interface{}, opts ...requestOption) *httptest.ResponseRecorder {
	e.t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(e.t, err)
	contentType := func(r *http.Request) { r.Header.Set("Content-Type", "application/json") }
	return e.do(http.MethodPost, path, strings.NewReader(string(raw)), append([]requestOption{contentType}, opts...)...)
}

func (e *testEnv) token(user *models.User) string {
	e.t.Helper()
	token, err := e.auth.IssueToken(user)
	require.NoError(e.t, err)
	return token
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestHealthCheck(t *testing.T) {
	env := setupRouter(t)

	w := env.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["checks"].(map[string]interface{})["database"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupRouter(t)
	env.do(http.MethodGet, "/health", nil)

	w := env.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "catalogue_http_requests_total")
}

func TestUnknownRoute(t *testing.T) {
	env := setupRouter(t)

	w := env.do(http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/problem+json")
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))
}

func TestCollectionsNegotiation(t *testing.T) {
	env := setupRouter(t)
	public := testutil.Collection(t, env.db, "maps")
	testutil.Collection(t, env.db, "secret")
	testutil.Grant(t, env.db, models.ObjectCollection, public.ID, nil, true, false)

	w := env.do(http.MethodGet, "/data/collections", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	collections := body["data"].(map[string]interface{})["collections"].([]interface{})
	require.Len(t, collections, 1)
	assert.Equal(t, "maps", collections[0].(map[string]interface{})["name"])

	w = env.do(http.MethodGet, "/data/collections", nil, acceptHTML)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), public.URL())
	assert.NotContains(t, w.Body.String(), "secret")
}

func TestCollectionDetail(t *testing.T) {
	env := setupRouter(t)
	c := testutil.Collection(t, env.db, "maps")
	testutil.Grant(t, env.db, models.ObjectCollection, c.ID, nil, true, false)
	for _, name := range []string{"a", "b", "c"} {
		testutil.Record(t, env.db, name, c)
	}

	w := env.do(http.MethodGet, c.URL()+"?page=1&size=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	payload := decode(t, w)["data"].(map[string]interface{})
	assert.Len(t, payload["records"], 2)
	pagination := payload["pagination"].(map[string]interface{})
	assert.Equal(t, float64(2), pagination["total_pages"])
	assert.Equal(t, true, pagination["has_next"])

	w = env.do(http.MethodGet, c.URL()+"?page=2&size=2", nil, acceptHTML)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Page 2 of 2")

	w = env.do(http.MethodGet, c.URL()+"?size=100000", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/data/collection/not-a-uuid/maps", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecordPage(t *testing.T) {
	env := setupRouter(t)
	open := testutil.Collection(t, env.db, "open")
	closed := testutil.Collection(t, env.db, "closed")
	testutil.Grant(t, env.db, models.ObjectCollection, open.ID, nil, true, false)

	title := testutil.Field(t, env.db, "title", "Title", nil)
	notes := testutil.Field(t, env.db, "notes", "Notes", nil)
	record := testutil.Record(t, env.db, "map1", open)
	testutil.Value(t, env.db, record, title, "<script>alert(1)</script>")
	testutil.Value(t, env.db, record, notes, `<b>bold</b><script>x()</script>`, func(v *models.FieldValue) {
		v.Type = models.ValueTypeHTML
	})
	hidden := testutil.Record(t, env.db, "hidden", closed)

	w := env.do(http.MethodGet, record.URL(), nil, acceptHTML)
	require.Equal(t, http.StatusOK, w.Code)
	page := w.Body.String()
	assert.Contains(t, page, "&lt;script&gt;alert(1)&lt;/script&gt;")
	assert.Contains(t, page, "<b>bold</b>")
	assert.NotContains(t, page, "x()")

	w = env.do(http.MethodGet, record.URL()+"?fieldset=nope", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode(t, w)["data"].(map[string]interface{})["selected_fieldset"])

	w = env.do(http.MethodGet, hidden.URL(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/problem+json")

	w = env.do(http.MethodGet, hidden.URL(), nil, acceptHTML)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "404 Not Found")
}

func TestLogin(t *testing.T) {
	env := setupRouter(t)
	testutil.User(t, env.db, "alice", false)

	w := env.postJSON("/auth/login", map[string]string{"username": "alice", "password": testutil.Password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token, _ := decode(t, w)["token"].(string)
	require.NotEmpty(t, token)

	w = env.do(http.MethodGet, "/auth/me", nil, bearer(token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", decode(t, w)["username"])

	w = env.postJSON("/auth/login", map[string]string{"username": "alice", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.postJSON("/auth/login", map[string]string{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.postForm("/auth/login", url.Values{
		"username": {"alice"},
		"password": {testutil.Password},
		"next":     {"/data/selected"},
	}, acceptHTML)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/data/selected", w.Header().Get("Location"))

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.TokenCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	w = env.do(http.MethodGet, "/auth/me", nil, withCookies([]*http.Cookie{cookie}))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoginNextStaysLocal(t *testing.T) {
	env := setupRouter(t)
	testutil.User(t, env.db, "alice", false)

	tests := []struct {
		name     string
		next     string
		location string
	}{
		{"local path", "/data/record/1/map?fieldset=_all", "/data/record/1/map?fieldset=_all"},
		{"empty", "", "/data/collections"},
		{"relative", "data/selected", "/data/collections"},
		{"protocol relative", "//evil.com", "/data/collections"},
		{"backslash", "/\\evil.com", "/data/collections"},
		{"backslash after slash", "/\\/evil.com", "/data/collections"},
		{"tab", "/\t/evil.com", "/data/collections"},
		{"newline", "/\n/evil.com", "/data/collections"},
		{"absolute url", "https://evil.com/", "/data/collections"},
		{"scheme only", "javascript:alert(1)", "/data/collections"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.postForm("/auth/login", url.Values{
				"username": {"alice"},
				"password": {testutil.Password},
				"next":     {tt.next},
			}, acceptHTML)
			require.Equal(t, http.StatusSeeOther, w.Code)
			assert.Equal(t, tt.location, w.Header().Get("Location"))
		})
	}
}

func TestLoginRateLimit(t *testing.T) {
	env := setupRouter(t, func(cfg *config.Config) { cfg.Auth.LoginRate = "2-M" })

	for i := 0; i < 2; i++ {
		w := env.postJSON("/auth/login", map[string]string{"username": "ghost", "password": "x"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w := env.postJSON("/auth/login", map[string]string{"username": "ghost", "password": "x"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/problem+json")
}

type editFixture struct {
	*testEnv
	alice, bob *models.User
	coll       *models.Collection
	record     *models.Record
	title      *models.Field
	subject    *models.Field
	first      *models.FieldValue
	second     *models.FieldValue
}

func newEditFixture(t *testing.T) *editFixture {
	env := setupRouter(t)
	f := &editFixture{testEnv: env}
	f.alice = testutil.User(t, env.db, "alice", false)
	f.bob = testutil.User(t, env.db, "bob", false)
	f.coll = testutil.Collection(t, env.db, "maps")
	testutil.Grant(t, env.db, models.ObjectCollection, f.coll.ID, f.alice, true, true)
	testutil.Grant(t, env.db, models.ObjectCollection, f.coll.ID, f.bob, true, false)

	f.title = testutil.Field(t, env.db, "title", "Title", nil)
	f.subject = testutil.Field(t, env.db, "subject", "Subject", nil)
	f.record = testutil.Record(t, env.db, "map1", f.coll)
	f.first = testutil.Value(t, env.db, f.record, f.title, "First", testutil.Ordered(0))
	f.second = testutil.Value(t, env.db, f.record, f.subject, "Second", testutil.Ordered(1))
	return f
}

func TestEditAccess(t *testing.T) {
	f := newEditFixture(t)
	edit := f.record.EditURL()

	w := f.do(http.MethodGet, edit, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodGet, edit, nil, bearer(f.token(f.bob)))
	assert.Equal(t, http.StatusNotFound, w.Code, "reader without write access")

	w = f.do(http.MethodGet, edit+"/alice/-", nil, bearer(f.token(f.bob)))
	assert.Equal(t, http.StatusNotFound, w.Code, "someone else's owner context")

	w = f.do(http.MethodGet, edit+"/bob/-", nil, bearer(f.token(f.bob)))
	assert.Equal(t, http.StatusOK, w.Code, "own owner context needs read access only")

	w = f.do(http.MethodGet, edit, nil, bearer(f.token(f.alice)))
	require.Equal(t, http.StatusOK, w.Code)
	payload := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "Default", payload["context"].(map[string]interface{})["label"])
	assert.Len(t, payload["forms"], 2+data.ExtraForms)
}

func TestEditPageRenders(t *testing.T) {
	f := newEditFixture(t)

	w := f.do(http.MethodGet, f.record.EditURL()+"/alice/-", nil, bearer(f.token(f.alice)), acceptHTML)
	require.Equal(t, http.StatusOK, w.Code)
	page := w.Body.String()
	assert.Contains(t, page, "Owner: alice Collection: -")
	assert.Contains(t, page, `name="override"`)
	assert.Contains(t, page, `name="fv-TOTAL_FORMS" value="3"`)
}

func TestOverrideValues(t *testing.T) {
	f := newEditFixture(t)
	path := f.record.EditURL() + "/alice/-"

	w := f.postForm(path, url.Values{
		"override_values": {"1"},
		"override":        {f.first.ID.String()},
	}, bearer(f.token(f.alice)))
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	assert.Equal(t, path, w.Header().Get("Location"))

	var copies []models.FieldValue
	require.NoError(t, f.db.Where("override_id = ?", f.first.ID).Find(&copies).Error)
	require.Len(t, copies, 1)
	assert.Equal(t, f.alice.ID, *copies[0].OwnerID)
	assert.Equal(t, "First", copies[0].Value)

	w = f.do(http.MethodGet, path, nil, bearer(f.token(f.alice)))
	require.Equal(t, http.StatusOK, w.Code)
	readonly := decode(t, w)["data"].(map[string]interface{})["readonly"].([]interface{})
	require.Len(t, readonly, 1)
	assert.Equal(t, f.second.ID.String(), readonly[0].(map[string]interface{})["id"])
}

func TestSaveFormset(t *testing.T) {
	f := newEditFixture(t)
	path := f.record.EditURL()

	w := f.postForm(path, url.Values{
		"fv-TOTAL_FORMS": {"3"},
		"fv-0-id":        {f.first.ID.String()},
		"fv-0-field":     {f.title.ID.String()},
		"fv-0-value":     {"First edited"},
		"fv-0-type":      {"text"},
		"fv-0-ORDER":     {"2"},
		"fv-1-id":        {f.second.ID.String()},
		"fv-1-field":     {f.subject.ID.String()},
		"fv-1-value":     {"Second"},
		"fv-1-type":      {"text"},
		"fv-1-ORDER":     {"1"},
		"fv-2-type":      {"text"},
	}, bearer(f.token(f.alice)))
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	assert.Equal(t, path, w.Header().Get("Location"))

	var values []models.FieldValue
	require.NoError(t, f.db.Where("record_id = ?", f.record.ID).Order("sort_order").Find(&values).Error)
	require.Len(t, values, 2)
	assert.Equal(t, f.second.ID, values[0].ID)
	assert.Equal(t, f.first.ID, values[1].ID)
	assert.Equal(t, "First edited", values[1].Value)
}

func TestSaveFormsetJSON(t *testing.T) {
	f := newEditFixture(t)

	w := f.postJSON(f.record.EditURL(), map[string]interface{}{
		"forms": []map[string]interface{}{
			{"id": f.first.ID, "field": f.title.ID, "value": "First", "delete": true},
			{"id": f.second.ID, "field": f.subject.ID, "value": "Second"},
			{"field": f.title.ID, "value": "Added", "language": "en"},
		},
	}, bearer(f.token(f.alice)))
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())

	var values []models.FieldValue
	require.NoError(t, f.db.Where("record_id = ?", f.record.ID).Order("sort_order").Find(&values).Error)
	require.Len(t, values, 2)
	assert.Equal(t, f.second.ID, values[0].ID)
	assert.Equal(t, "Added", values[1].Value)
	assert.Equal(t, "en", values[1].Language)
}

func TestSaveFormsetInvalid(t *testing.T) {
	f := newEditFixture(t)
	form := url.Values{
		"fv-TOTAL_FORMS": {"1"},
		"fv-0-field":     {f.title.ID.String()},
		"fv-0-label":     {"No value"},
		"fv-0-type":      {"text"},
	}

	w := f.postForm(f.record.EditURL(), form, bearer(f.token(f.alice)))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/problem+json")
	problems := decode(t, w)["errors"].([]interface{})
	require.NotEmpty(t, problems)
	assert.Equal(t, "fv-0-value", problems[0].(map[string]interface{})["field"])

	w = f.postForm(f.record.EditURL(), form, bearer(f.token(f.alice)), acceptHTML)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "This field is required.")
	assert.Contains(t, w.Body.String(), `value="No value"`)

	w = f.postForm(f.record.EditURL(), url.Values{"fv-0-value": {"x"}}, bearer(f.token(f.alice)))
	assert.Equal(t, http.StatusBadRequest, w.Code, "missing management form")

	var count int64
	require.NoError(t, f.db.Model(&models.FieldValue{}).Where("record_id = ?", f.record.ID).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func sessionCookies(t *testing.T, w *httptest.ResponseRecorder) []*http.Cookie {
	t.Helper()
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

func TestSelectedRecordsToPresentation(t *testing.T) {
	env := setupRouter(t)
	alice := testutil.User(t, env.db, "alice", false)
	c := testutil.Collection(t, env.db, "maps")
	testutil.Grant(t, env.db, models.ObjectCollection, c.ID, nil, true, false)
	r1 := testutil.Record(t, env.db, "one", c)
	r2 := testutil.Record(t, env.db, "two", c)
	token := bearer(env.token(alice))

	w := env.postForm("/data/selected/add", url.Values{"record": {r2.ID.String(), r1.ID.String()}}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	jar := withCookies(sessionCookies(t, w))
	selected := decode(t, w)["data"].(map[string]interface{})["selected"].([]interface{})
	assert.Equal(t, []interface{}{r2.ID.String(), r1.ID.String()}, selected)

	w = env.do(http.MethodGet, "/data/selected", nil, token, jar)
	require.Equal(t, http.StatusOK, w.Code)
	payload := decode(t, w)["data"].(map[string]interface{})
	assert.Len(t, payload["records"], 2)
	assert.Empty(t, payload["choices"], "no presentations and no permission to create one")

	w = env.postForm("/data/selected", url.Values{"presentation": {"new"}, "title": {"Tour"}}, token, jar)
	assert.Equal(t, http.StatusForbidden, w.Code)

	testutil.Permission(t, env.db, alice, models.PermAddPresentation)

	w = env.postForm("/data/selected", url.Values{"presentation": {"new"}}, token, jar, acceptHTML)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "specify a new presentation title")

	w = env.postForm("/data/selected", url.Values{"presentation": {"new"}, "title": {"Map Tour"}}, token, jar)
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	location := w.Header().Get("Location")
	assert.True(t, strings.HasSuffix(location, "/map-tour/edit"), location)

	w = env.do(http.MethodGet, location, nil, token, acceptHTML)
	require.Equal(t, http.StatusOK, w.Code)
	page := w.Body.String()
	assert.Less(t, strings.Index(page, r2.URL()), strings.Index(page, r1.URL()))

	w = env.postForm("/data/selected/remove", url.Values{"record": {r2.ID.String()}}, jar)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"].(map[string]interface{})["selected"], 1)

	w = env.do(http.MethodPost, "/data/selected/clear", nil, jar, acceptHTML)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/data/selected", w.Header().Get("Location"))

	w = env.postForm("/data/selected/add", url.Values{"record": {"nope"}}, jar)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
