package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/mapimport/internal/host"
	"github.com/mrlokans/mapimport/internal/importer"
)

type CollectionsController struct {
	host *host.Service
}

func NewCollectionsController(svc *host.Service) *CollectionsController {
	return &CollectionsController{host: svc}
}

// List handles GET /api/collections
func (cc *CollectionsController) List(c *gin.Context) {
	all, err := cc.host.ListCollections(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "list collections")
		return
	}
	c.JSON(http.StatusOK, gin.H{"collections": all})
}

// Get handles GET /api/collections/:id
func (cc *CollectionsController) Get(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	collection, err := cc.host.CollectionDetails(c.Request.Context(), id)
	if errors.Is(err, importer.ErrCollectionNotFound) {
		respondNotFound(c, "collection")
		return
	}
	if err != nil {
		respondInternalError(c, err, "get collection")
		return
	}
	c.JSON(http.StatusOK, collection)
}

// Refresh handles POST /api/collections/:id/refresh
// Forces a fetch of the remote data of a linked collection.
func (cc *CollectionsController) Refresh(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	collection, err := cc.host.GetCollection(c.Request.Context(), id)
	if errors.Is(err, importer.ErrCollectionNotFound) {
		respondNotFound(c, "collection")
		return
	}
	if err != nil {
		respondInternalError(c, err, "get collection")
		return
	}
	if !collection.IsRemote() {
		respondBadRequest(c, "collection is not linked to remote data")
		return
	}

	alerts := &alertCollector{}
	cc.host.WithAlerter(alerts).FetchRemote(c.Request.Context(), collection, true)

	respondAccepted(c, "refresh requested", gin.H{
		"collection": collection.ID,
		"alerts":     alerts.List(),
	})
}

// Project handles GET /api/project
func (cc *CollectionsController) Project(c *gin.Context) {
	project, err := cc.host.Project(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "get project")
		return
	}
	if project == nil {
		respondNotFound(c, "project")
		return
	}
	c.JSON(http.StatusOK, project)
}
