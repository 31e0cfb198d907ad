package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/mapimport/internal/entities"
)

// AuditReader lists recorded import events.
type AuditReader interface {
	Events(filter entities.AuditFilter, limit, offset int) ([]entities.AuditEvent, int64, error)
}

type AuditController struct {
	events AuditReader
}

func NewAuditController(events AuditReader) *AuditController {
	return &AuditController{events: events}
}

// GetAuditEvents returns paginated audit events as JSON
// GET /api/audit?collection_id=<id>&type=<import|refresh|project>&status=<success|failed>
func (ac *AuditController) GetAuditEvents(c *gin.Context) {
	filter := entities.AuditFilter{
		CollectionID: c.Query("collection_id"),
		Type:         entities.AuditEventType(c.Query("type")),
		Status:       entities.AuditStatus(c.Query("status")),
	}
	if filter.Type != "" && !entities.ValidAuditEventType(filter.Type) {
		respondBadRequest(c, "unknown event type: "+string(filter.Type))
		return
	}
	switch filter.Status {
	case "", entities.AuditStatusSuccess, entities.AuditStatusFailed:
	default:
		respondBadRequest(c, "unknown status: "+string(filter.Status))
		return
	}

	limit, offset := parsePagination(c)
	events, total, err := ac.events.Events(filter, limit, offset)
	if err != nil {
		respondInternalError(c, err, "load audit events")
		return
	}

	c.JSON(http.StatusOK, newPaginatedResponse(events, total, limit, offset))
}
