package http

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"authweb/internal/service"
)

// loginFailedMessage es el único mensaje para cualquier login fallido:
// mismo texto para email inexistente y para contraseña incorrecta.
const loginFailedMessage = "invalid email or password"

// AuthHandler mantiene dependencias para los endpoints de autenticación.
type AuthHandler struct {
	logger     *zap.Logger
	auth       *service.AuthService
	uploadDir  string
	sessionTTL time.Duration
}

// NewAuthHandler crea una instancia de AuthHandler con dependencias necesarias.
func NewAuthHandler(logger *zap.Logger, auth *service.AuthService, uploadDir string, sessionTTL time.Duration) *AuthHandler {
	if sessionTTL <= 0 {
		sessionTTL = time.Hour
	}
	return &AuthHandler{
		logger:     logger,
		auth:       auth,
		uploadDir:  uploadDir,
		sessionTTL: sessionTTL,
	}
}

// ShowRegister maneja GET /register.
func (h *AuthHandler) ShowRegister(c *gin.Context) {
	c.HTML(http.StatusOK, "register.html", gin.H{})
}

// Register maneja POST /register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email    string `form:"email" binding:"required,email"`
		Username string `form:"username" binding:"required"`
		Password string `form:"password" binding:"required"`
	}
	if err := c.ShouldBind(&req); err != nil {
		h.logger.Warn("invalid register request", zap.Error(err))
		c.HTML(http.StatusBadRequest, "register.html", gin.H{"error": "all fields are required and email must be valid"})
		return
	}

	user, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDuplicateUser):
			c.HTML(http.StatusBadRequest, "register.html", gin.H{"error": "email or username already taken"})
		case errors.Is(err, service.ErrValidation):
			c.HTML(http.StatusBadRequest, "register.html", gin.H{"error": "all fields are required and password must have at least 8 characters"})
		default:
			h.logger.Error("register failed", zap.Error(err))
			c.HTML(http.StatusInternalServerError, "register.html", gin.H{"error": "could not register user"})
		}
		return
	}

	if path, ok := h.saveAvatar(c); ok {
		if err := h.auth.SetAvatar(c.Request.Context(), user.ID, path); err != nil {
			h.logger.Warn("set avatar failed", zap.Error(err), zap.String("user_id", user.ID))
		}
	}

	c.Redirect(http.StatusSeeOther, "/login")
}

// ShowLogin maneja GET /login.
func (h *AuthHandler) ShowLogin(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", gin.H{})
}

// Login maneja POST /login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `form:"email" binding:"required"`
		Password string `form:"password" binding:"required"`
	}
	if err := c.ShouldBind(&req); err != nil {
		c.HTML(http.StatusBadRequest, "login.html", gin.H{"error": loginFailedMessage})
		return
	}

	token, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.HTML(http.StatusBadRequest, "login.html", gin.H{"error": loginFailedMessage})
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		c.HTML(http.StatusInternalServerError, "login.html", gin.H{"error": "could not login"})
		return
	}

	setSessionCookie(c, token, int(h.sessionTTL.Seconds()))
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

// Logout maneja POST /logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	if token, err := c.Cookie(sessionCookieName); err == nil && token != "" {
		if err := h.auth.Logout(token); err != nil {
			h.logger.Warn("logout revoke failed", zap.Error(err))
		}
	}
	clearSessionCookie(c)
	c.Redirect(http.StatusSeeOther, "/")
}

// saveAvatar guarda la imagen opcional del form y devuelve la referencia
// servible. La referencia viaja por el registro del usuario, nunca por
// estado compartido del proceso.
func (h *AuthHandler) saveAvatar(c *gin.Context) (string, bool) {
	if h.uploadDir == "" {
		return "", false
	}
	file, err := c.FormFile("avatar")
	if err != nil || file == nil {
		return "", false
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
	default:
		h.logger.Warn("avatar rejected", zap.String("ext", ext))
		return "", false
	}

	name := uuid.NewString() + ext
	if err := c.SaveUploadedFile(file, filepath.Join(h.uploadDir, name)); err != nil {
		h.logger.Warn("avatar save failed", zap.Error(err))
		return "", false
	}
	return "/uploads/" + name, true
}
