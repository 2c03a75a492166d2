package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yenix/go-store-backend/internal/store"
)

type newUserRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Status   string `json:"status"`
}

// ListUsers handles GET /api/users. Credential material never appears in the
// output.
func (h *Handlers) ListUsers(c *gin.Context) {
	users, err := h.store.ListUsers(c.Request.Context())
	if err != nil {
		failStore(c, err)
		return
	}
	ok(c, http.StatusOK, users)
}

// CreateUser handles POST /api/users: the administrative add-user path.
// Unlike self-registration, an omitted password falls back to the legacy
// default credential, and role/status may be set directly.
func (h *Handlers) CreateUser(c *gin.Context) {
	var req newUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	user, err := h.store.AddUser(c.Request.Context(), store.NewUser{
		Username: req.Username,
		Password: req.Password,
		Role:     req.Role,
		Status:   req.Status,
	})
	if err != nil {
		failStore(c, err)
		return
	}
	ok(c, http.StatusCreated, user.Sanitized())
}

// DeleteUser handles DELETE /api/users/:id.
func (h *Handlers) DeleteUser(c *gin.Context) {
	id, okID := idParam(c)
	if !okID {
		return
	}
	if err := h.store.DeleteUser(c.Request.Context(), id); err != nil {
		failStore(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"message": "User deleted"})
}

// GetSettings handles GET /api/settings.
func (h *Handlers) GetSettings(c *gin.Context) {
	settings, err := h.store.Settings(c.Request.Context())
	if err != nil {
		failStore(c, err)
		return
	}
	ok(c, http.StatusOK, settings)
}

// UpdateSettings handles POST /api/settings. The body is a flat key/value
// map; keys present are upserted, keys absent are untouched, and the full
// resulting map comes back.
func (h *Handlers) UpdateSettings(c *gin.Context) {
	var updates map[string]string
	if err := c.ShouldBindJSON(&updates); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	settings, err := h.store.UpdateSettings(c.Request.Context(), updates)
	if err != nil {
		failStore(c, err)
		return
	}
	ok(c, http.StatusOK, settings)
}

// ListLogs handles GET /api/logs?limit=N, newest first.
func (h *Handlers) ListLogs(c *gin.Context) {
	limit := store.DefaultLogLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	logs, err := h.store.RecentLogs(c.Request.Context(), limit)
	if err != nil {
		failStore(c, err)
		return
	}
	ok(c, http.StatusOK, logs)
}

// DashboardStats handles GET /api/dashboard/stats.
func (h *Handlers) DashboardStats(c *gin.Context) {
	stats, err := h.store.DashboardStats(c.Request.Context())
	if err != nil {
		failStore(c, err)
		return
	}
	ok(c, http.StatusOK, stats)
}
