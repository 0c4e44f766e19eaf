package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"authweb/internal/domain"
	"authweb/internal/service"
)

const (
	sessionCookieName  = "session"
	currentUserCtxKey  = "current_user"
	sessionTokenCtxKey = "session_token"
)

// SessionAuthMiddleware resuelve la sesión desde la cookie. Una sesión
// ausente, expirada o revocada nunca produce una página de error: siempre
// redirige al login.
func SessionAuthMiddleware(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(sessionCookieName)
		if err != nil || token == "" {
			c.Redirect(http.StatusSeeOther, "/login")
			c.Abort()
			return
		}

		user, err := auth.CurrentUser(c.Request.Context(), token)
		if err != nil {
			clearSessionCookie(c)
			c.Redirect(http.StatusSeeOther, "/login")
			c.Abort()
			return
		}

		c.Set(currentUserCtxKey, user)
		c.Set(sessionTokenCtxKey, token)
		c.Next()
	}
}

// GetCurrentUser obtiene el usuario autenticado desde el contexto.
func GetCurrentUser(c *gin.Context) (domain.User, bool) {
	val, ok := c.Get(currentUserCtxKey)
	if !ok {
		return domain.User{}, false
	}
	user, ok := val.(domain.User)
	return user, ok
}

func setSessionCookie(c *gin.Context, token string, maxAgeSeconds int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookieName, token, maxAgeSeconds, "/", "", false, true)
}

func clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookieName, "", -1, "/", "", false, true)
}
