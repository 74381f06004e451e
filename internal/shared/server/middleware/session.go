package middleware

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"dsr-backend/internal/shared/server/respond"
	"dsr-backend/internal/shared/telemetry"
)

const (
	// SessionCookieName is the cookie carrying the signed session.
	SessionCookieName = "dsr_session"

	userIDKey   = "userId"
	userNameKey = "userName"
	userRoleKey = "userRole"

	sessionUserID   = "uid"
	sessionUserName = "username"
	sessionUserRole = "role"
)

// SessionUser is the identity persisted in the session cookie.
type SessionUser struct {
	ID       string
	Username string
	Role     string
}

// Session loads the identity from the session store, if any, into the gin
// context. It never rejects a request.
func Session(store sessions.Store) []gin.HandlerFunc {
	return []gin.HandlerFunc{
		sessions.Sessions(SessionCookieName, store),
		func(c *gin.Context) {
			s := sessions.Default(c)
			if id, ok := s.Get(sessionUserID).(string); ok && id != "" {
				c.Set(userIDKey, id)
				if name, ok := s.Get(sessionUserName).(string); ok {
					c.Set(userNameKey, name)
				}
				if role, ok := s.Get(sessionUserRole).(string); ok {
					c.Set(userRoleKey, role)
				}
			}
			c.Next()
		},
	}
}

// ActiveUserFunc reports whether the user behind a session may still act.
type ActiveUserFunc func(ctx context.Context, userID string) (bool, error)

// RequireSession rejects requests without an authenticated session. With a
// non-nil active check, sessions of disabled or removed users are cleared and
// rejected as well.
func RequireSession(active ActiveUserFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := UserIDFromContext(c)
		if userID == "" {
			respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "Authentication required", nil)
			return
		}
		if active != nil {
			ok, err := active(c.Request.Context(), userID)
			if err != nil {
				telemetry.Error("auth.user_check_failed", map[string]any{"user_id": userID, "error": err})
				respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "Unexpected server error", nil)
				return
			}
			if !ok {
				telemetry.Warn("auth.session_revoked", map[string]any{"user_id": userID})
				_ = EndSession(c)
				respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "Authentication required", nil)
				return
			}
		}
		c.Next()
	}
}

// StartSession stores u in the session and writes the cookie.
func StartSession(c *gin.Context, u SessionUser) error {
	s := sessions.Default(c)
	s.Clear()
	s.Set(sessionUserID, u.ID)
	s.Set(sessionUserName, u.Username)
	s.Set(sessionUserRole, u.Role)
	if err := s.Save(); err != nil {
		return err
	}
	c.Set(userIDKey, u.ID)
	c.Set(userNameKey, u.Username)
	c.Set(userRoleKey, u.Role)
	return nil
}

// EndSession clears the session and expires the cookie.
func EndSession(c *gin.Context) error {
	s := sessions.Default(c)
	s.Clear()
	s.Options(sessions.Options{Path: "/", MaxAge: -1})
	return s.Save()
}

// UserIDFromContext fetches the user ID set by the session middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(userIDKey)
}

// SessionUserFromContext returns the identity of the current request.
func SessionUserFromContext(c *gin.Context) (SessionUser, bool) {
	id := UserIDFromContext(c)
	if id == "" {
		return SessionUser{}, false
	}
	return SessionUser{
		ID:       id,
		Username: c.GetString(userNameKey),
		Role:     c.GetString(userRoleKey),
	}, true
}
