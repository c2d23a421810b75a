package handler

import (
	"net/http"

	"lifelink-backend/internal/models"
	"lifelink-backend/internal/service"
	"lifelink-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

// EntryHandler serves one entry category. Donations and requests share the
// workflow engine; the handler only fixes the category and lets the engine
// enforce roles.
type EntryHandler struct {
	workflow *service.WorkflowService
	category string
}

func NewDonationHandler(workflow *service.WorkflowService) *EntryHandler {
	return &EntryHandler{workflow: workflow, category: models.CategoryDonation}
}

func NewRequestHandler(workflow *service.WorkflowService) *EntryHandler {
	return &EntryHandler{workflow: workflow, category: models.CategoryRequest}
}

type CreateEntryRequest struct {
	Type    string                 `json:"type" binding:"required"`
	Details map[string]interface{} `json:"details"`
}

type UpdateStatusRequest struct {
	Status          string `json:"status" binding:"required"`
	RejectionReason string `json:"rejectionReason"`
	PatientID       *uint  `json:"patientId"`
}

// Create handles POST /<category>s
func (h *EntryHandler) Create(c *gin.Context) {
	var req CreateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	entry, err := h.workflow.Create(actorFromContext(c), h.category, req.Type, datatypes.JSONMap(req.Details))
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, entry)
}

// List handles GET /<category>s with role-scoped visibility
func (h *EntryHandler) List(c *gin.Context) {
	entries, err := h.workflow.List(actorFromContext(c), h.category)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"entries": entries,
		"count":   len(entries),
	})
}

// Get handles GET /<category>s/:id
func (h *EntryHandler) Get(c *gin.Context) {
	entry, err := h.workflow.Get(actorFromContext(c), h.category, c.Param("id"))
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, entry)
}

// UpdateStatus handles PATCH /<category>s/:id
func (h *EntryHandler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	entry, err := h.workflow.Transition(actorFromContext(c), h.category, c.Param("id"), req.Status, service.TransitionPayload{
		RejectionReason: req.RejectionReason,
		PatientID:       req.PatientID,
	})
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, entry)
}

// Delete handles DELETE /<category>s/:id
func (h *EntryHandler) Delete(c *gin.Context) {
	if err := h.workflow.Delete(actorFromContext(c), h.category, c.Param("id")); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.MessageResponse(c, "Entry deleted successfully")
}

// Stats handles GET /<category>s/stats
func (h *EntryHandler) Stats(c *gin.Context) {
	stats, err := h.workflow.Stats(actorFromContext(c), h.category)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, stats)
}

// actorFromContext builds the caller identity from claims injected by the
// auth middleware
func actorFromContext(c *gin.Context) service.Actor {
	userID, _ := c.Get("userID")
	role, _ := c.Get("role")
	name, _ := c.Get("name")

	actor := service.Actor{}
	if id, ok := userID.(uint); ok {
		actor.ID = id
	}
	if r, ok := role.(string); ok {
		actor.Role = r
	}
	if n, ok := name.(string); ok {
		actor.Name = n
	}
	return actor
}
