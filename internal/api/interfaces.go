// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"github.com/grainco/texture-analyzer/internal/workflow"
	"github.com/labstack/echo/v4"
)

// PageHandler renders the analyzer page
type PageHandler interface {
	HandleIndex(c echo.Context) error
}

// UploadHandler handles file selection for either stage
type UploadHandler interface {
	HandleSelectFile(c echo.Context) error
	HandleDropFile(c echo.Context) error
}

// WorkflowHandler starts stage requests and exposes workflow state
type WorkflowHandler interface {
	HandleAnalyze(c echo.Context) error
	HandleGenerate(c echo.Context) error
	HandleToggleSection(c echo.Context) error
	HandleGetState(c echo.Context) error
}

// ImageHandler serves preview references
type ImageHandler interface {
	HandleGetImage(c echo.Context) error
	HandleDownloadImage(c echo.Context) error
}

// EventsHandler pushes workflow events to the browser
type EventsHandler interface {
	HandleWebSocket(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// SessionManager defines the interface for session management
// This allows mocking in tests
type SessionManager interface {
	GetOrCreate(id string) (string, *workflow.Workflow)
	Count() int
}
