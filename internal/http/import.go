package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/mapimport/internal/entities"
	"github.com/mrlokans/mapimport/internal/formats"
	"github.com/mrlokans/mapimport/internal/host"
	"github.com/mrlokans/mapimport/internal/importer"
	"github.com/mrlokans/mapimport/internal/plugins"
)

// DefaultMaxUploadBytes bounds a single uploaded file.
const DefaultMaxUploadBytes = 50 << 20

// DraftStore keeps the import dialog fields between requests.
type DraftStore interface {
	LoadDraft(ctx context.Context) importer.Draft
	SaveDraft(ctx context.Context, d importer.Draft)
	ClearDraft(ctx context.Context)
	DraftUpdatedAt(ctx context.Context) time.Time
}

// PluginRegistry exposes the loaded quick-import plugins.
type PluginRegistry interface {
	PluginStatus
	Get(name string) (plugins.Plugin, bool)
}

// noDrafts is used when sessions are disabled: every request starts empty.
type noDrafts struct{}

func (noDrafts) LoadDraft(context.Context) importer.Draft  { return importer.Draft{} }
func (noDrafts) SaveDraft(context.Context, importer.Draft) {}
func (noDrafts) ClearDraft(context.Context)                {}
func (noDrafts) DraftUpdatedAt(context.Context) time.Time  { return time.Time{} }

// ImportController serves the import dialog: its draft fields, format
// detection, quick-import plugins and the submission itself.
type ImportController struct {
	host           *host.Service
	plugins        PluginRegistry
	drafts         DraftStore
	maxUploadBytes int64
}

func NewImportController(svc *host.Service, registry PluginRegistry, drafts DraftStore, maxUploadBytes int64) *ImportController {
	if drafts == nil {
		drafts = noDrafts{}
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &ImportController{
		host:           svc,
		plugins:        registry,
		drafts:         drafts,
		maxUploadBytes: maxUploadBytes,
	}
}

// FormResponse describes the dialog state.
type FormResponse struct {
	Draft        importer.Draft      `json:"draft"`
	Visibility   importer.Visibility `json:"visibility"`
	Destinations []importer.Choice   `json:"destinations"`
	Formats      []formats.Format    `json:"formats"`
	Plugins      []string            `json:"plugins"`
	UpdatedAt    *time.Time          `json:"updated_at,omitempty"`
}

// FormPatch updates individual draft fields. Absent fields are left alone.
type FormPatch struct {
	URL         *string `json:"url"`
	Format      *string `json:"format"`
	Raw         *string `json:"raw"`
	Clear       *bool   `json:"clear"`
	Mode        *string `json:"mode"`
	Destination *string `json:"destination"`
	LayerName   *string `json:"layer_name"`
}

// ImportResponse reports what a submission did.
type ImportResponse struct {
	Action     importer.Action      `json:"action"`
	State      importer.State       `json:"state"`
	Source     importer.SourceKind  `json:"source"`
	Collection *entities.Collection `json:"collection,omitempty"`
	Error      string               `json:"error,omitempty"`
	Alerts     []Alert              `json:"alerts"`
}

// DetectedFile is the format guessed for one uploaded file.
type DetectedFile struct {
	Name   string         `json:"name"`
	Format formats.Format `json:"format"`
}

// GetForm handles GET /api/import/form
func (ic *ImportController) GetForm(c *gin.Context) {
	form := importer.NewForm(ic.drafts.LoadDraft(c.Request.Context()))
	ic.respondForm(c, form)
}

// PatchForm handles PATCH /api/import/form
func (ic *ImportController) PatchForm(c *gin.Context) {
	var patch FormPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	form := importer.NewForm(ic.drafts.LoadDraft(c.Request.Context()))
	if err := applyPatch(form, patch); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	ic.drafts.SaveDraft(c.Request.Context(), form.Draft())
	ic.respondForm(c, form)
}

// ResetForm handles DELETE /api/import/form
func (ic *ImportController) ResetForm(c *gin.Context) {
	ic.drafts.ClearDraft(c.Request.Context())
	ic.respondForm(c, importer.NewForm(importer.Draft{}))
}

// Detect handles POST /api/import/detect
// Resolves the format of the uploaded files and stores it in the draft.
func (ic *ImportController) Detect(c *gin.Context) {
	files, err := ic.readFiles(c)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	if len(files) == 0 {
		respondBadRequest(c, "no files uploaded")
		return
	}

	form := importer.NewForm(ic.drafts.LoadDraft(c.Request.Context()))
	form.SetFiles(files)
	ic.drafts.SaveDraft(c.Request.Context(), form.Draft())

	detected := make([]DetectedFile, len(files))
	for i, f := range files {
		detected[i] = DetectedFile{Name: f.Name, Format: formats.Detect(f)}
	}

	c.JSON(http.StatusOK, gin.H{
		"format": form.Format(),
		"files":  detected,
	})
}

// Submit handles POST /api/import
// Accepts multipart or urlencoded fields on top of the stored draft.
func (ic *ImportController) Submit(c *gin.Context) {
	form := importer.NewForm(ic.drafts.LoadDraft(c.Request.Context()))

	files, err := ic.readFiles(c)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	if len(files) > 0 {
		form.SetFiles(files)
	}
	if err := applyPatch(form, patchFromPostForm(c)); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	ic.drafts.SaveDraft(c.Request.Context(), form.Draft())

	alerts := &alertCollector{}
	orchestrator := importer.New(ic.host.WithAlerter(alerts), alerts, ic.host.Settings())
	res, err := orchestrator.Submit(c.Request.Context(), form)
	if err == nil && res.State == importer.StateSucceeded {
		// The next submission starts from an empty source
		form.ClearSources()
		ic.drafts.SaveDraft(c.Request.Context(), form.Draft())
	}

	resp := ImportResponse{
		Action:     res.Action,
		State:      res.State,
		Source:     res.Source,
		Collection: res.Collection,
		Alerts:     alerts.List(),
	}

	var validation *importer.ValidationError
	switch {
	case errors.As(err, &validation):
		resp.Error = validation.Message
		c.JSON(http.StatusBadRequest, resp)
	case err != nil:
		resp.Error = err.Error()
		c.JSON(http.StatusInternalServerError, resp)
	case res.Err != nil:
		resp.Error = res.Err.Error()
		c.JSON(http.StatusUnprocessableEntity, resp)
	default:
		c.JSON(http.StatusOK, resp)
	}
}

// ListPlugins handles GET /api/import/plugins
func (ic *ImportController) ListPlugins(c *gin.Context) {
	if ic.plugins == nil {
		c.JSON(http.StatusOK, gin.H{"plugins": []string{}, "failures": gin.H{}})
		return
	}
	failures := make(map[string]string)
	for key, err := range ic.plugins.Failures() {
		failures[key] = err.Error()
	}
	response := gin.H{
		"plugins":  ic.plugins.Names(),
		"failures": failures,
	}
	if p, ok := ic.plugins.Get(plugins.DatasetsKey); ok {
		if ds, ok := p.(*plugins.Datasets); ok {
			response["datasets"] = ds.Items()
		}
	}
	c.JSON(http.StatusOK, response)
}

// OpenPlugin handles POST /api/import/plugins/:name/open
// Lets the plugin fill in the draft from the given arguments.
func (ic *ImportController) OpenPlugin(c *gin.Context) {
	if ic.plugins == nil {
		respondNotFound(c, "plugin")
		return
	}
	plugin, ok := ic.plugins.Get(c.Param("name"))
	if !ok {
		respondNotFound(c, "plugin")
		return
	}

	args := plugins.Args{}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&args); err != nil {
			respondBadRequest(c, "invalid plugin arguments: "+err.Error())
			return
		}
	}

	form := importer.NewForm(ic.drafts.LoadDraft(c.Request.Context()))
	if err := plugin.Open(c.Request.Context(), form, args); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	ic.drafts.SaveDraft(c.Request.Context(), form.Draft())
	ic.respondForm(c, form)
}

func (ic *ImportController) respondForm(c *gin.Context, form *importer.Form) {
	choices, err := importer.NewDestinations(ic.host).Choices(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "list destinations")
		return
	}

	var names []string
	if ic.plugins != nil {
		names = ic.plugins.Names()
	}

	resp := FormResponse{
		Draft:        form.Draft(),
		Visibility:   importer.VisibilityFor(importer.Snapshot(form)),
		Destinations: choices,
		Formats:      formats.All(),
		Plugins:      names,
	}
	if updated := ic.drafts.DraftUpdatedAt(c.Request.Context()); !updated.IsZero() {
		resp.UpdatedAt = &updated
	}
	c.JSON(http.StatusOK, resp)
}

// readFiles loads the "files" multipart field. Requests that are not
// multipart carry no files.
func (ic *ImportController) readFiles(c *gin.Context) ([]formats.File, error) {
	if c.ContentType() != "multipart/form-data" {
		return nil, nil
	}
	mf, err := c.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}

	headers := mf.File["files"]
	files := make([]formats.File, 0, len(headers))
	for _, fh := range headers {
		data, err := ic.readFile(fh)
		if err != nil {
			return nil, err
		}
		files = append(files, formats.File{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return files, nil
}

func (ic *ImportController) readFile(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > ic.maxUploadBytes {
		return nil, fmt.Errorf("file %s exceeds %d bytes", fh.Filename, ic.maxUploadBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, ic.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	if int64(len(data)) > ic.maxUploadBytes {
		return nil, fmt.Errorf("file %s exceeds %d bytes", fh.Filename, ic.maxUploadBytes)
	}
	return data, nil
}

func patchFromPostForm(c *gin.Context) FormPatch {
	var patch FormPatch
	field := func(name string) *string {
		if v, ok := c.GetPostForm(name); ok {
			return &v
		}
		return nil
	}
	patch.URL = field(importer.FieldURL)
	patch.Raw = field(importer.FieldRaw)
	patch.Mode = field(importer.FieldMode)
	patch.Destination = field(importer.FieldDestination)
	patch.LayerName = field(importer.FieldLayerName)
	// An empty format field keeps the format resolved from the files
	if f := field(importer.FieldFormat); f != nil && *f != "" {
		patch.Format = f
	}
	if v := field(importer.FieldClear); v != nil {
		checked, err := strconv.ParseBool(*v)
		if err != nil {
			checked = *v == "on"
		}
		patch.Clear = &checked
	}
	return patch
}

func applyPatch(form *importer.Form, patch FormPatch) error {
	if patch.Format != nil {
		format, err := formats.Parse(*patch.Format)
		if err != nil {
			return err
		}
		form.SetFormat(format)
	}
	if patch.Mode != nil {
		mode, err := importer.ParseMode(*patch.Mode)
		if err != nil {
			return err
		}
		form.SetMode(mode)
	}
	if patch.URL != nil {
		form.SetURL(*patch.URL)
	}
	if patch.Raw != nil {
		form.SetRaw(*patch.Raw)
	}
	if patch.Clear != nil {
		form.SetClearExisting(*patch.Clear)
	}
	if patch.Destination != nil {
		form.SetDestinationID(*patch.Destination)
	}
	if patch.LayerName != nil {
		form.SetLayerName(*patch.LayerName)
	}
	return nil
}
