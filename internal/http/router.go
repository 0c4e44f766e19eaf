package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterOptions agrupa rutas de archivos que el router sirve o renderiza.
type RouterOptions struct {
	TemplatesGlob string
	StaticDir     string
	UploadDir     string
}

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	authH *AuthHandler,
	pageH *PageHandler,
	opts RouterOptions,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging y recovery.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery())

	if opts.TemplatesGlob != "" {
		r.LoadHTMLGlob(opts.TemplatesGlob)
	}
	if opts.StaticDir != "" {
		r.Static("/static", opts.StaticDir)
	}
	if opts.UploadDir != "" {
		r.Static("/uploads", opts.UploadDir)
	}

	registerRoutes(r, authH, pageH)

	return r
}

// registerRoutes cablea las rutas; separado para que los tests puedan armar
// un engine propio sin glob de templates.
func registerRoutes(r *gin.Engine, authH *AuthHandler, pageH *PageHandler) {
	r.GET("/", pageH.Index)
	r.GET("/register", authH.ShowRegister)
	r.POST("/register", authH.Register)
	r.GET("/login", authH.ShowLogin)
	r.POST("/login", authH.Login)
	r.POST("/logout", authH.Logout)

	protected := r.Group("/", SessionAuthMiddleware(authH.auth))
	protected.GET("/dashboard", pageH.Dashboard)
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
