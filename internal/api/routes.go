// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Images        BlobReader
	Sessions      SessionManager
	MaxImageBytes int64
	BackendURL    string
	Version       string
}

// Handlers holds all handler instances
type Handlers struct {
	Health   HealthHandler
	Page     PageHandler
	Upload   UploadHandler
	Workflow WorkflowHandler
	Image    ImageHandler
	Events   EventsHandler
	sessions SessionManager
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:   NewHealthHandler(deps.Version, deps.BackendURL, deps.Sessions),
		Page:     NewPageHandler(),
		Upload:   NewUploadHandler(deps.MaxImageBytes),
		Workflow: NewWorkflowHandler(),
		Image:    NewImageHandler(deps.Images),
		Events:   NewWebSocketHandler(),
		sessions: deps.Sessions,
	}
}

// RegisterRoutes registers all routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Health check
	e.GET("/api/health", handlers.Health.HandleHealth)

	// Everything else runs inside a workflow session
	app := e.Group("", SessionMiddleware(handlers.sessions))

	app.GET("/", handlers.Page.HandleIndex)

	// File selection for either stage
	app.POST("/stages/:stage/file", handlers.Upload.HandleSelectFile)
	app.POST("/stages/:stage/drop", handlers.Upload.HandleDropFile)

	// Stage requests
	app.POST("/analyze", handlers.Workflow.HandleAnalyze)
	app.POST("/generate", handlers.Workflow.HandleGenerate)
	app.POST("/sections/:section/toggle", handlers.Workflow.HandleToggleSection)

	// Preview references
	app.GET("/images/:id", handlers.Image.HandleGetImage)
	app.GET("/images/:id/download", handlers.Image.HandleDownloadImage)

	// State and events
	app.GET("/api/state", handlers.Workflow.HandleGetState)
	app.GET("/api/ws", handlers.Events.HandleWebSocket)
}

// MiddlewareOptions selects the optional common middleware
type MiddlewareOptions struct {
	AllowOrigins []string
	BodyLimit    string
	EnableGzip   bool
	Logger       echo.MiddlewareFunc
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, opts MiddlewareOptions) {
	// Use custom error handler
	e.HTTPErrorHandler = ErrorHandler

	if opts.Logger != nil {
		e.Use(opts.Logger)
	}
	e.Use(middleware.Recover())

	if opts.BodyLimit != "" {
		e.Use(middleware.BodyLimit(opts.BodyLimit))
	}

	if opts.EnableGzip {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Skipper: func(c echo.Context) bool {
				// Gzip breaks the websocket upgrade
				return c.Path() == "/api/ws"
			},
		}))
	}

	if len(opts.AllowOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     opts.AllowOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
			AllowCredentials: true,
		}))
	}
}
