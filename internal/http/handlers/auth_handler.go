package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yenix/go-store-backend/internal/domain"
	"github.com/yenix/go-store-backend/internal/http/middleware"
	"github.com/yenix/go-store-backend/internal/store"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type setupRequest struct {
	SiteTitle string `json:"site_title"`
	AdminUser string `json:"admin_user"`
	AdminPass string `json:"admin_pass"`
}

// AuthCheck handles GET /api/auth/check. It tells the client whether the
// instance still needs first-run setup (no accounts exist yet).
func (h *Handlers) AuthCheck(c *gin.Context) {
	required, err := h.store.SetupRequired(c.Request.Context())
	if err != nil {
		failStore(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"setupRequired": required})
}

// Login handles POST /api/auth/login. On success the last-login stamp has
// already been advanced by the store.
func (h *Handlers) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	user, err := h.store.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		failStore(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"success": true, "user": user.Sanitized()})
}

// Register handles POST /api/auth/register. Self-registered accounts always
// come in as active members; role escalation is an admin operation.
func (h *Handlers) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "username and password required")
		return
	}
	user, err := h.store.AddUser(c.Request.Context(), store.NewUser{
		Username: req.Username,
		Password: req.Password,
		Role:     domain.RoleMember,
		Status:   domain.StatusActive,
	})
	if err != nil {
		failStore(c, err)
		return
	}
	ok(c, http.StatusCreated, gin.H{
		"success": true,
		"message": "Registration successful",
		"user":    user.Sanitized(),
	})
}

// Setup handles POST /api/auth/setup: the one-time first-run flow that names
// the site and creates the super-admin account. It refuses once any account
// exists, so it cannot be replayed to mint additional admins.
func (h *Handlers) Setup(c *gin.Context) {
	ctx := c.Request.Context()

	required, err := h.store.SetupRequired(ctx)
	if err != nil {
		failStore(c, err)
		return
	}
	if !required {
		fail(c, http.StatusForbidden, ErrCodeForbidden, "setup already completed")
		return
	}

	var req setupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	if req.AdminUser == "" || req.AdminPass == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "admin_user and admin_pass required")
		return
	}

	if req.SiteTitle != "" {
		if _, err := h.store.UpdateSettings(ctx, map[string]string{"site_title": req.SiteTitle}); err != nil {
			failStore(c, err)
			return
		}
	}

	user, err := h.store.AddUser(ctx, store.NewUser{
		Username: req.AdminUser,
		Password: req.AdminPass,
		Role:     domain.RoleSuperAdmin,
		Status:   domain.StatusActive,
	})
	if err != nil {
		failStore(c, err)
		return
	}

	middleware.LoggerFrom(c).Info().
		Str("username", user.Username).
		Msg("first-run setup completed")

	ok(c, http.StatusOK, gin.H{"success": true, "message": "Setup complete"})
}
