package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/mapimport/internal/database"
	"github.com/mrlokans/mapimport/internal/database/collections"
	"github.com/mrlokans/mapimport/internal/database/projects"
	"github.com/mrlokans/mapimport/internal/entities"
	"github.com/mrlokans/mapimport/internal/fetch"
	"github.com/mrlokans/mapimport/internal/formats"
	"github.com/mrlokans/mapimport/internal/host"
	"github.com/mrlokans/mapimport/internal/importer"
	"github.com/mrlokans/mapimport/internal/plugins"
	"github.com/mrlokans/mapimport/internal/session"
)

const pointGeoJSON = `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[2.35,48.85]},"properties":{}}]}`

type testServer struct {
	t       *testing.T
	router  *gin.Engine
	host    *host.Service
	repo    *collections.Repository
	cookies []*http.Cookie
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithDatasets(t, []map[string]any{
		{"label": "Bike parkings", "url": "https://data.example.org/bikes.csv", "format": "csv"},
	})
}

func newTestServerWithDatasets(t *testing.T, datasets []map[string]any) *testServer {
	t.Helper()

	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "http.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := collections.NewRepository(db.DB)
	svc := host.NewService(host.Options{
		Collections: repo,
		Projects:    projects.NewRepository(db.DB),
		Fetcher:     fetch.NewClient(fetch.Config{Timeout: 5 * time.Second}),
		Settings:    importer.Settings{DefaultRefreshInterval: 5 * time.Minute},
	})

	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	sessions, err := session.NewManager(sqlDB, time.Hour, false)
	require.NoError(t, err)

	registry := plugins.NewRegistry(plugins.Builtin(), plugins.HostContext{
		Destinations: importer.NewDestinations(svc),
	}, map[string]plugins.Config{
		plugins.DatasetsKey: {"items": datasets},
	})
	registry.Load(context.Background(), []string{plugins.OverpassKey, plugins.DatasetsKey})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, registry.Wait(ctx))

	router := NewRouter(RouterConfig{
		Host:           svc,
		Plugins:        registry,
		Database:       db,
		SessionManager: sessions,
		Version:        "test",
	})

	return &testServer{t: t, router: router, host: svc, repo: repo}
}

// do sends a request carrying the session cookie and keeps any cookie the
// response sets.
func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	s.t.Helper()
	for _, c := range s.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if cookies := w.Result().Cookies(); len(cookies) > 0 {
		s.cookies = cookies
	}
	return w
}

func (s *testServer) getForm() FormResponse {
	s.t.Helper()
	w := s.do(httptest.NewRequest(http.MethodGet, "/api/import/form", nil))
	require.Equal(s.t, http.StatusOK, w.Code)
	var form FormResponse
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &form))
	return form
}

func (s *testServer) patchForm(body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPatch, "/api/import/form", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return s.do(req)
}

type upload struct {
	name string
	data string
}

func multipartRequest(t *testing.T, path string, files []upload, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.name)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.data))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func formRequest(path string, fields url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(fields.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func decodeImport(t *testing.T, w *httptest.ResponseRecorder) ImportResponse {
	t.Helper()
	var resp ImportResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestImportController_GetForm(t *testing.T) {
	s := newTestServer(t)

	form := s.getForm()

	assert.Equal(t, importer.Draft{}, form.Draft)
	require.Len(t, form.Destinations, 1)
	assert.Equal(t, importer.NewDestination, form.Destinations[0].ID)
	assert.Equal(t, formats.All(), form.Formats)
	assert.Equal(t, []string{plugins.DatasetsKey, plugins.OverpassKey}, form.Plugins)
	assert.True(t, form.Visibility.Destination)
	assert.False(t, form.Visibility.Mode)
}

func TestImportController_PatchFormPersistsDraft(t *testing.T) {
	s := newTestServer(t)

	w := s.patchForm(`{"url":"https://example.org/live.geojson","mode":"link","format":"geojson"}`)
	require.Equal(t, http.StatusOK, w.Code)

	form := s.getForm()
	assert.Equal(t, "https://example.org/live.geojson", form.Draft.URL)
	assert.Equal(t, importer.ModeLink, form.Draft.Mode)
	assert.Equal(t, formats.GeoJSON, form.Draft.Format)
	assert.True(t, form.Visibility.Mode)

	w = s.patchForm(`{"format":"umap"}`)
	require.Equal(t, http.StatusOK, w.Code)
	form = s.getForm()
	assert.False(t, form.Visibility.Destination)
	assert.False(t, form.Visibility.Clear)
	assert.False(t, form.Visibility.Mode)
}

func TestImportController_ResetForm(t *testing.T) {
	s := newTestServer(t)

	require.Equal(t, http.StatusOK, s.patchForm(`{"raw":"lat,lon\n1,2","format":"csv"}`).Code)
	form := s.getForm()
	assert.Equal(t, "lat,lon\n1,2", form.Draft.Raw)
	require.NotNil(t, form.UpdatedAt)

	w := s.do(httptest.NewRequest(http.MethodDelete, "/api/import/form", nil))
	require.Equal(t, http.StatusOK, w.Code)

	form = s.getForm()
	assert.Equal(t, importer.Draft{}, form.Draft)
	assert.Nil(t, form.UpdatedAt)
}

func TestImportController_PatchFormRejectsUnknownValues(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, s.patchForm(`{"format":"shapefile"}`).Code)
	assert.Equal(t, http.StatusBadRequest, s.patchForm(`{"mode":"mirror"}`).Code)
	assert.Equal(t, http.StatusBadRequest, s.patchForm(`not json`).Code)
}

func TestImportController_Detect(t *testing.T) {
	s := newTestServer(t)

	w := s.do(multipartRequest(t, "/api/import/detect", []upload{
		{"a.geojson", pointGeoJSON},
		{"b.geojson", pointGeoJSON},
	}, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"format":"geojson"`)
	assert.Equal(t, formats.GeoJSON, s.getForm().Draft.Format)

	w = s.do(multipartRequest(t, "/api/import/detect", []upload{
		{"a.geojson", pointGeoJSON},
		{"b.kml", "<kml></kml>"},
	}, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"format":""`)
	assert.Equal(t, formats.Unset, s.getForm().Draft.Format)

	w = s.do(multipartRequest(t, "/api/import/detect", nil, nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportController_SubmitFilesIntoNewCollection(t *testing.T) {
	s := newTestServer(t)

	w := s.do(multipartRequest(t, "/api/import", []upload{{"parks.geojson", pointGeoJSON}}, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decodeImport(t, w)
	assert.Equal(t, importer.ActionCopy, resp.Action)
	assert.Equal(t, importer.StateSucceeded, resp.State)
	assert.Equal(t, importer.SourceFiles, resp.Source)
	require.NotNil(t, resp.Collection)
	assert.Equal(t, "Layer 1", resp.Collection.Name)
	assert.Empty(t, resp.Alerts)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/collections/"+resp.Collection.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var collection entities.Collection
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &collection))
	require.Len(t, collection.Datasets, 1)
	assert.Equal(t, "parks.geojson", collection.Datasets[0].Name)
	assert.Equal(t, string(formats.GeoJSON), collection.Datasets[0].Format)
}

func TestImportController_SubmitRawIntoExistingCollection(t *testing.T) {
	s := newTestServer(t)
	existing, err := s.repo.Create(context.Background(), "Cafés")
	require.NoError(t, err)

	w := s.do(formRequest("/api/import", url.Values{
		"raw":         {pointGeoJSON},
		"format":      {"geojson"},
		"destination": {existing.ID},
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decodeImport(t, w)
	assert.Equal(t, importer.SourceRaw, resp.Source)
	require.NotNil(t, resp.Collection)
	assert.Equal(t, existing.ID, resp.Collection.ID)

	details, err := s.repo.GetWithDatasets(context.Background(), existing.ID)
	require.NoError(t, err)
	assert.Len(t, details.Datasets, 1)
}

func TestImportController_SubmitWithoutFormatIsRejected(t *testing.T) {
	s := newTestServer(t)

	w := s.do(formRequest("/api/import", url.Values{"raw": {"lat,lon\n1,2"}}))
	require.Equal(t, http.StatusBadRequest, w.Code)

	resp := decodeImport(t, w)
	assert.Equal(t, importer.MsgChooseFormat, resp.Error)
	assert.Equal(t, []Alert{{Level: importer.LevelError, Message: importer.MsgChooseFormat}}, resp.Alerts)

	all, err := s.repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestImportController_SubmitMalformedProject(t *testing.T) {
	s := newTestServer(t)

	w := s.do(formRequest("/api/import", url.Values{"raw": {"{not json"}, "format": {"umap"}}))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	resp := decodeImport(t, w)
	assert.Equal(t, importer.ActionProject, resp.Action)
	assert.Equal(t, importer.StateFailed, resp.State)
	assert.Equal(t, []Alert{{Level: importer.LevelError, Message: importer.MsgInvalidProjectData}}, resp.Alerts)
}

func TestImportController_SubmitProjectReplacesMap(t *testing.T) {
	s := newTestServer(t)
	_, err := s.repo.Create(context.Background(), "Old layer")
	require.NoError(t, err)

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/project", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	project := `{"type":"umap","properties":{"name":"City map"},"layers":[{"type":"FeatureCollection","features":[],"_umap_options":{"name":"Parks"}}]}`
	w = s.do(formRequest("/api/import", url.Values{"raw": {project}, "format": {"umap"}}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/collections", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Parks"`)
	assert.NotContains(t, w.Body.String(), "Old layer")

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/project", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestImportController_SubmitURLWithoutModeIsIdle(t *testing.T) {
	s := newTestServer(t)

	w := s.do(formRequest("/api/import", url.Values{"url": {"https://example.org/data.kml"}, "format": {"kml"}}))
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeImport(t, w)
	assert.Equal(t, importer.ActionNone, resp.Action)
	assert.Equal(t, importer.StateIdle, resp.State)
	assert.Nil(t, resp.Collection)
}

func TestImportController_SubmitLinkAndRefresh(t *testing.T) {
	var hits atomic.Int32
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/geo+json")
		_, _ = w.Write([]byte(pointGeoJSON))
	}))
	defer remote.Close()

	s := newTestServer(t)

	w := s.do(formRequest("/api/import", url.Values{
		"url":    {remote.URL + "/live.geojson"},
		"format": {"geojson"},
		"mode":   {"link"},
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeImport(t, w)
	assert.Equal(t, importer.ActionLink, resp.Action)
	require.NotNil(t, resp.Collection)
	assert.Equal(t, int32(1), hits.Load())

	linked, err := s.repo.Get(context.Background(), resp.Collection.ID)
	require.NoError(t, err)
	assert.True(t, linked.IsRemote())
	assert.True(t, linked.Loaded)
	assert.NotNil(t, linked.RemoteFetchedAt)

	w = s.do(httptest.NewRequest(http.MethodPost, "/api/collections/"+linked.ID+"/refresh", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, int32(2), hits.Load())
}

func TestImportController_Plugins(t *testing.T) {
	s := newTestServer(t)

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/import/plugins", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), plugins.DatasetsKey)
	assert.Contains(t, w.Body.String(), `"label":"Bike parkings"`)

	req := httptest.NewRequest(http.MethodPost, "/api/import/plugins/datasets/open", strings.NewReader(`{"dataset":"Bike parkings"}`))
	req.Header.Set("Content-Type", "application/json")
	w = s.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	form := s.getForm()
	assert.Equal(t, "https://data.example.org/bikes.csv", form.Draft.URL)
	assert.Equal(t, formats.CSV, form.Draft.Format)
	assert.Equal(t, importer.ModeCopy, form.Draft.Mode)

	req = httptest.NewRequest(http.MethodPost, "/api/import/plugins/datasets/open", strings.NewReader(`{"dataset":"Unknown"}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, s.do(req).Code)

	w = s.do(httptest.NewRequest(http.MethodPost, "/api/import/plugins/missing/open", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestImportController_SubmitClearsSourcesFromDraft(t *testing.T) {
	s := newTestServer(t)

	w := s.do(formRequest("/api/import", url.Values{"raw": {pointGeoJSON}, "format": {"geojson"}}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	draft := s.getForm().Draft
	assert.Empty(t, draft.Raw)
	assert.Empty(t, draft.URL)
	assert.Equal(t, formats.GeoJSON, draft.Format)

	w = s.do(formRequest("/api/import", url.Values{"format": {"geojson"}}))
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeImport(t, w)
	assert.Equal(t, importer.StateIdle, resp.State)

	all, err := s.repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestImportController_DatasetAfterPastedSubmission(t *testing.T) {
	var hits atomic.Int32
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("lat,lon\n48.85,2.35\n"))
	}))
	defer remote.Close()

	s := newTestServerWithDatasets(t, []map[string]any{
		{"label": "Bike parkings", "url": remote.URL + "/bikes.csv", "format": "csv"},
	})
	openDataset := func() {
		req := httptest.NewRequest(http.MethodPost, "/api/import/plugins/datasets/open", strings.NewReader(`{"dataset":"Bike parkings"}`))
		req.Header.Set("Content-Type", "application/json")
		w := s.do(req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w := s.do(formRequest("/api/import", url.Values{"raw": {pointGeoJSON}, "format": {"geojson"}}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	openDataset()
	w = s.do(formRequest("/api/import", url.Values{}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decodeImport(t, w)
	assert.Equal(t, importer.ActionCopy, resp.Action)
	assert.Equal(t, importer.SourceURL, resp.Source)
	require.NotNil(t, resp.Collection)
	assert.Equal(t, "Bike parkings", resp.Collection.Name)
	assert.Equal(t, int32(1), hits.Load())
	first := resp.Collection.ID

	openDataset()
	form := s.getForm()
	assert.Equal(t, first, form.Draft.DestinationID)
	assert.True(t, form.Draft.ClearExisting)

	w = s.do(formRequest("/api/import", url.Values{}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp = decodeImport(t, w)
	require.NotNil(t, resp.Collection)
	assert.Equal(t, first, resp.Collection.ID)
	assert.Equal(t, int32(2), hits.Load())

	details, err := s.repo.GetWithDatasets(context.Background(), first)
	require.NoError(t, err)
	require.Len(t, details.Datasets, 1)
	assert.Equal(t, remote.URL+"/bikes.csv", details.Datasets[0].Source)
}

func TestCollectionsController_Errors(t *testing.T) {
	s := newTestServer(t)

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/collections/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/collections/6f9619ff-8b86-d011-b42d-00c04fc964ff", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	plain, err := s.repo.Create(context.Background(), "Plain")
	require.NoError(t, err)
	w = s.do(httptest.NewRequest(http.MethodPost, "/api/collections/"+plain.ID+"/refresh", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_CSRFProtectsSubmission(t *testing.T) {
	router := NewRouter(RouterConfig{CSRFSecret: []byte("test-secret-key-32-bytes-long!!!")})
	var reached bool
	router.POST("/echo", func(c *gin.Context) {
		reached = true
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(session.CSRFTokenHeader))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, reached)
}
