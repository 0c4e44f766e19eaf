package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PageHandler mantiene dependencias para las páginas renderizadas.
type PageHandler struct {
	logger *zap.Logger
}

func NewPageHandler(logger *zap.Logger) *PageHandler {
	return &PageHandler{logger: logger}
}

// Index maneja GET /.
func (h *PageHandler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{})
}

// Dashboard maneja GET /dashboard; corre detrás de SessionAuthMiddleware.
func (h *PageHandler) Dashboard(c *gin.Context) {
	user, ok := GetCurrentUser(c)
	if !ok {
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}
	c.HTML(http.StatusOK, "dashboard.html", gin.H{
		"username": user.Username,
		"avatar":   user.AvatarPath,
	})
}
