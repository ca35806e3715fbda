// handlers_workflow.go - Page rendering and stage request handlers
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/grainco/texture-analyzer/internal/models"
	"github.com/grainco/texture-analyzer/internal/present"
	"github.com/grainco/texture-analyzer/internal/workflow"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"
)

// MIMEApplicationMsgpack is the content type of msgpack state responses
const MIMEApplicationMsgpack = "application/x-msgpack"

const pageTitle = "Material & Texture Analyzer"

// stageView is one row of the page: upload control plus result panel
type stageView struct {
	Upload present.UploadView
	Result present.ResultView
}

// pageData is the template model of the analyzer page
type pageData struct {
	Title            string
	SessionID        string
	Analyze          stageView
	Generate         stageView
	GenerateUnlocked bool
}

func newPageData(snap workflow.Snapshot) pageData {
	acc := present.NewAccordion(snap.OpenSection)
	return pageData{
		Title:     pageTitle,
		SessionID: snap.SessionID,
		Analyze: stageView{
			Upload: present.NewUploadView(models.StageAnalyze, "Analyze", snap.MaterialFile, snap.Analysis.IsLoading()),
			Result: present.AnalysisResult(snap.Analysis, acc),
		},
		Generate: stageView{
			Upload: present.NewUploadView(models.StageGenerate, "Generate", snap.BaseFile, snap.Generated.IsLoading()),
			Result: present.GeneratedResult(snap.Generated),
		},
		GenerateUnlocked: snap.GenerateUnlocked,
	}
}

// PageHandlerImpl implements the PageHandler interface
type PageHandlerImpl struct{}

// NewPageHandler creates a new page handler instance
func NewPageHandler() PageHandler {
	return &PageHandlerImpl{}
}

// HandleIndex renders the analyzer page. With ?fragment=1 only the app
// body is rendered, for in-place refreshes.
func (h *PageHandlerImpl) HandleIndex(c echo.Context) error {
	wf, err := workflowFrom(c)
	if err != nil {
		return err
	}

	name := "index.html"
	if c.QueryParam("fragment") != "" {
		name = "app"
	}
	return c.Render(http.StatusOK, name, newPageData(wf.Snapshot()))
}

// WorkflowHandlerImpl implements the WorkflowHandler interface
type WorkflowHandlerImpl struct{}

// NewWorkflowHandler creates a new workflow handler instance
func NewWorkflowHandler() WorkflowHandler {
	return &WorkflowHandlerImpl{}
}

// HandleAnalyze starts the analyze request. The request outlives the HTTP
// call; completion is pushed over the event socket.
func (h *WorkflowHandlerImpl) HandleAnalyze(c echo.Context) error {
	wf, err := workflowFrom(c)
	if err != nil {
		return err
	}

	ctx := context.WithoutCancel(c.Request().Context())
	if _, err := wf.StartAnalyze(ctx); err != nil {
		return startError(c, err)
	}
	return c.JSON(http.StatusAccepted, wf.Snapshot())
}

// HandleGenerate starts the generate request
func (h *WorkflowHandlerImpl) HandleGenerate(c echo.Context) error {
	wf, err := workflowFrom(c)
	if err != nil {
		return err
	}

	ctx := context.WithoutCancel(c.Request().Context())
	if _, err := wf.StartGenerate(ctx); err != nil {
		return startError(c, err)
	}
	return c.JSON(http.StatusAccepted, wf.Snapshot())
}

// HandleToggleSection toggles an accordion section of the analysis card
func (h *WorkflowHandlerImpl) HandleToggleSection(c echo.Context) error {
	wf, err := workflowFrom(c)
	if err != nil {
		return err
	}

	snap, err := wf.ToggleSection(c.Param("section"))
	if err != nil {
		return fromWorkflowError(err)
	}
	return c.JSON(http.StatusOK, snap)
}

// HandleGetState returns the workflow snapshot as JSON or MessagePack
func (h *WorkflowHandlerImpl) HandleGetState(c echo.Context) error {
	wf, err := workflowFrom(c)
	if err != nil {
		return err
	}
	snap := wf.Snapshot()

	if !wantsMsgpack(c) {
		return c.JSON(http.StatusOK, snap)
	}

	data, err := msgpack.Marshal(&snap)
	if err != nil {
		return NewInternalError("failed to encode state", err)
	}
	return c.Blob(http.StatusOK, MIMEApplicationMsgpack, data)
}

// startError turns a refused start into a response. A missing file is a
// silent no-op.
func startError(c echo.Context, err error) error {
	if errors.Is(err, workflow.ErrNoFile) {
		log.Debug().Str("path", c.Path()).Msg("no file selected, nothing sent")
		return c.NoContent(http.StatusNoContent)
	}
	return fromWorkflowError(err)
}

func wantsMsgpack(c echo.Context) bool {
	if c.QueryParam("format") == "msgpack" {
		return true
	}
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), MIMEApplicationMsgpack)
}
