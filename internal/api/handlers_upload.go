// handlers_upload.go - File selection handlers for both stages
package api

import (
	"encoding/base64"
	"io"
	"net/http"
	"strings"

	"github.com/grainco/texture-analyzer/internal/models"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// UploadHandlerImpl implements the UploadHandler interface
type UploadHandlerImpl struct {
	maxBytes int64
}

// NewUploadHandler creates a new upload handler instance
func NewUploadHandler(maxBytes int64) UploadHandler {
	return &UploadHandlerImpl{maxBytes: maxBytes}
}

// dropFileRequest is a drag-and-drop upload sent as base64 JSON
type dropFileRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Data string `json:"data"`
}

// HandleSelectFile accepts the file picker upload as multipart field "file".
// A request without a file is ignored.
func (h *UploadHandlerImpl) HandleSelectFile(c echo.Context) error {
	stage, err := stageParam(c)
	if err != nil {
		return err
	}

	fh, err := c.FormFile("file")
	if err != nil {
		if err == http.ErrMissingFile {
			return c.NoContent(http.StatusNoContent)
		}
		return NewBadRequestError("invalid multipart body", err)
	}

	src, err := fh.Open()
	if err != nil {
		return NewBadRequestError("cannot open uploaded file", err)
	}
	defer src.Close()

	data, err := h.read(src)
	if err != nil {
		return err
	}

	return h.selectFile(c, stage, fh.Filename, fh.Header.Get(echo.HeaderContentType), data)
}

// HandleDropFile accepts a dropped file as base64 JSON. A drop without a
// file is ignored without feedback.
func (h *UploadHandlerImpl) HandleDropFile(c echo.Context) error {
	stage, err := stageParam(c)
	if err != nil {
		return err
	}

	var req dropFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.Data == "" {
		log.Debug().Str("stage", string(stage)).Msg("empty drop ignored")
		return c.NoContent(http.StatusNoContent)
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}
	if h.maxBytes > 0 && int64(len(decoded)) > h.maxBytes {
		return NewValidationError("data", "file too large")
	}

	return h.selectFile(c, stage, req.Name, req.Type, decoded)
}

func (h *UploadHandlerImpl) selectFile(c echo.Context, stage models.StageName, name, contentType string, data []byte) error {
	if len(data) == 0 {
		return c.NoContent(http.StatusNoContent)
	}

	sniffed := http.DetectContentType(data)
	if !strings.HasPrefix(sniffed, "image/") {
		return NewValidationError("file", "not an image")
	}
	if !strings.HasPrefix(contentType, "image/") {
		contentType = sniffed
	}
	if name == "" {
		name = "upload"
	}

	wf, err := workflowFrom(c)
	if err != nil {
		return err
	}
	file, err := wf.SelectFile(stage, name, contentType, data)
	if err != nil {
		return fromWorkflowError(err)
	}
	if file == nil {
		return c.NoContent(http.StatusNoContent)
	}

	return c.JSON(http.StatusCreated, wf.Snapshot())
}

func (h *UploadHandlerImpl) read(r io.Reader) ([]byte, error) {
	if h.maxBytes > 0 {
		r = io.LimitReader(r, h.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, NewBadRequestError("failed to read upload", err)
	}
	if h.maxBytes > 0 && int64(len(data)) > h.maxBytes {
		return nil, NewValidationError("file", "file too large")
	}
	return data, nil
}

func stageParam(c echo.Context) (models.StageName, error) {
	stage, err := models.ParseStageName(c.Param("stage"))
	if err != nil {
		return "", NewNotFoundError("stage", c.Param("stage"))
	}
	return stage, nil
}
