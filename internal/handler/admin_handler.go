package handler

import (
	"net/http"
	"strconv"

	"lifelink-backend/internal/service"
	"lifelink-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	adminService *service.AdminService
}

func NewAdminHandler(adminService *service.AdminService) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
	}
}

// ListUsers retrieves all users, optionally filtered by ?role=
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.adminService.ListUsers(c.Query("role"))
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"users": users,
		"count": len(users),
	})
}

// DeleteUser removes a user account
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid user ID")
		return
	}

	if err := h.adminService.DeleteUser(actorFromContext(c), uint(id)); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.MessageResponse(c, "User deleted successfully")
}

// Stats returns the platform overview
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.adminService.Stats()
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, stats)
}
