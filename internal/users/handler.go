package users

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dsr-backend/internal/shared/server/middleware"
	"dsr-backend/internal/shared/server/respond"
	"dsr-backend/internal/shared/telemetry"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/login", h.login)
	rg.POST("/auth/logout", h.logout)
	rg.GET("/auth/session", h.session)
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "username and password are required", nil)
		return
	}
	user, err := h.Svc.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrDisabled):
			respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "invalid username or password", nil)
		default:
			telemetry.Error("auth.login_failed", map[string]any{"error": err})
			respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "login failed", nil)
		}
		return
	}
	if err := middleware.StartSession(c, middleware.SessionUser{
		ID:       user.ID,
		Username: user.Username,
		Role:     user.Role,
	}); err != nil {
		telemetry.Error("auth.session_save_failed", map[string]any{"error": err, "user_id": user.ID})
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "could not start session", nil)
		return
	}
	telemetry.Info("auth.login", map[string]any{"user_id": user.ID, "username": user.Username})
	respond.Data(c, user)
}

func (h *Handler) logout(c *gin.Context) {
	if err := middleware.EndSession(c); err != nil {
		telemetry.Error("auth.session_clear_failed", map[string]any{"error": err})
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "could not end session", nil)
		return
	}
	respond.OK(c, respond.Envelope{Success: true})
}

func (h *Handler) session(c *gin.Context) {
	su, ok := middleware.SessionUserFromContext(c)
	if !ok {
		respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "Authentication required", nil)
		return
	}
	user, err := h.Svc.GetByID(c.Request.Context(), su.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "Authentication required", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to load user", nil)
		return
	}
	respond.Data(c, user)
}
