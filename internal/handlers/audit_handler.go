package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/sjperalta/fintera-contracts/internal/services"
)

type AuditHandler struct {
	auditService *services.AuditService
}

func NewAuditHandler(auditService *services.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// @Summary List Audit Logs
// @Tags Audits
// @Produce json
// @Param entity query string false "Entity type, e.g. Contract"
// @Param entityKey query string false "Business key of the entity"
// @Param action query string false "Action"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} Response{data=[]models.AuditLog,summary=Pagination}
// @Security BearerAuth
// @Router /audits [get]
func (h *AuditHandler) Index(c *gin.Context) {
	q := listQuery(c)
	for _, key := range []string{"entity", "entityKey", "action"} {
		if v := c.Query(key); v != "" {
			q.Filters[key] = v
		}
	}

	logs, total, err := h.auditService.List(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, logs, total, q)
}
