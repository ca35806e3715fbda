// handlers_images.go - Preview reference handlers
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/grainco/texture-analyzer/internal/models"
	"github.com/grainco/texture-analyzer/internal/present"
	"github.com/grainco/texture-analyzer/internal/storage"
	"github.com/labstack/echo/v4"
)

// BlobReader reads blobs from the preview store
type BlobReader interface {
	Get(id string) (*models.Blob, error)
}

// ImageHandlerImpl implements the ImageHandler interface
type ImageHandlerImpl struct {
	store BlobReader
}

// NewImageHandler creates a new image handler instance
func NewImageHandler(store BlobReader) ImageHandler {
	return &ImageHandlerImpl{store: store}
}

// HandleGetImage serves a preview blob inline
func (h *ImageHandlerImpl) HandleGetImage(c echo.Context) error {
	blob, err := h.lookup(c)
	if err != nil {
		return err
	}
	c.Response().Header().Set("Cache-Control", "private, max-age=3600")
	return c.Blob(http.StatusOK, blob.ContentType, blob.Data)
}

// HandleDownloadImage serves the same content as an attachment
func (h *ImageHandlerImpl) HandleDownloadImage(c echo.Context) error {
	blob, err := h.lookup(c)
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", present.DownloadName))
	return c.Blob(http.StatusOK, blob.ContentType, blob.Data)
}

// lookup returns the blob only when it belongs to the caller's session
func (h *ImageHandlerImpl) lookup(c echo.Context) (*models.Blob, error) {
	id := c.Param("id")
	wf, err := workflowFrom(c)
	if err != nil {
		return nil, err
	}

	blob, err := h.store.Get(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, NewNotFoundError("image", id)
		}
		return nil, NewInternalError("failed to read image", err)
	}
	if blob.Owner != wf.ID() {
		return nil, NewNotFoundError("image", id)
	}
	return blob, nil
}
