// Package materialapi talks to the material analysis backend.
package materialapi

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/grainco/texture-analyzer/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultBaseURL is used when no backend URL is configured.
	DefaultBaseURL = "http://127.0.0.1:8000"

	analyzePath  = "/analyze-image"
	generatePath = "/generate-image"

	defaultImageType = "image/png"
)

// Upload is one file sent as a multipart field.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// UploadFromFile converts a selected file into an Upload.
func UploadFromFile(f *models.SelectedFile) Upload {
	return Upload{Name: f.Name, ContentType: f.ContentType, Data: f.Data}
}

// GeneratedBlob is the raw image returned by the generate endpoint.
type GeneratedBlob struct {
	ContentType string
	Data        []byte
}

// ClientOpts configures a Client.
type ClientOpts struct {
	BaseURL string
	Timeout time.Duration // zero disables the timeout
	Debug   bool
}

// Client calls /analyze-image and /generate-image. It never retries.
type Client struct {
	httpClient *resty.Client
	baseURL    string
}

// NewClient creates a backend client. A trailing slash on BaseURL is dropped.
func NewClient(opts ClientOpts) *Client {
	c := Client{baseURL: DefaultBaseURL}
	if opts.BaseURL != "" {
		c.baseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	c.httpClient = resty.New().
		SetDebug(opts.Debug).
		SetBaseURL(c.baseURL).
		SetHeader("Accept", "*/*")
	if opts.Timeout > 0 {
		c.httpClient.SetTimeout(opts.Timeout)
	}

	return &c
}

// BaseURL returns the backend base URL in use.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) req(ctx context.Context) *resty.Request {
	return c.httpClient.NewRequest().SetContext(ctx)
}

// Analyze uploads the material image as field "file" and decodes the
// classification. The returned Analysis has no preview reference.
func (c *Client) Analyze(ctx context.Context, file Upload) (*models.Analysis, error) {
	start := time.Now()
	res, err := c.req(ctx).
		SetMultipartField("file", file.Name, contentTypeOf(file), bytes.NewReader(file.Data)).
		Post(analyzePath)
	res, err = handleError("analyze", res, err)
	if err != nil {
		return nil, err
	}

	analysis, err := decodeAnalysis(res.Body())
	if err != nil {
		return nil, &RequestError{Op: "analyze", Status: res.StatusCode(), Message: err.Error(), Err: err}
	}

	log.Debug().
		Str("material", analysis.Material).
		Dur("took", time.Since(start)).
		Msg("analysis received")

	return analysis, nil
}

// Generate uploads the material and base images as "material_image" and
// "base_image" and returns the generated image bytes.
func (c *Client) Generate(ctx context.Context, material, base Upload) (*GeneratedBlob, error) {
	start := time.Now()
	res, err := c.req(ctx).
		SetMultipartField("material_image", material.Name, contentTypeOf(material), bytes.NewReader(material.Data)).
		SetMultipartField("base_image", base.Name, contentTypeOf(base), bytes.NewReader(base.Data)).
		Post(generatePath)
	res, err = handleError("generate", res, err)
	if err != nil {
		return nil, err
	}

	contentType := res.Header().Get("Content-Type")
	if contentType == "" || !strings.HasPrefix(contentType, "image/") {
		contentType = http.DetectContentType(res.Body())
		if !strings.HasPrefix(contentType, "image/") {
			contentType = defaultImageType
		}
	}

	log.Debug().
		Int("bytes", len(res.Body())).
		Str("contentType", contentType).
		Dur("took", time.Since(start)).
		Msg("generated image received")

	return &GeneratedBlob{ContentType: contentType, Data: res.Body()}, nil
}

// handleError turns non-2xx responses into a RequestError carrying the
// body text. Without this, failing responses would have nil error.
func handleError(op string, res *resty.Response, err error) (*resty.Response, error) {
	if err != nil {
		return res, &RequestError{Op: op, Message: err.Error(), Err: err}
	}
	if !res.IsSuccess() {
		msg := res.String()
		if strings.TrimSpace(msg) == "" {
			msg = fmt.Sprintf("request failed: %s %s (status: %d)", res.Request.Method, res.Request.URL, res.StatusCode())
		}
		return res, &RequestError{Op: op, Status: res.StatusCode(), Message: msg}
	}

	return res, nil
}

func contentTypeOf(u Upload) string {
	if u.ContentType != "" {
		return u.ContentType
	}
	return http.DetectContentType(u.Data)
}
