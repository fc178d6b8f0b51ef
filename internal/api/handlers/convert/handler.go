package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/imgpress/imgpress/internal/api/respond"
	"github.com/imgpress/imgpress/internal/codec"
	"github.com/imgpress/imgpress/internal/model"
	convertsvc "github.com/imgpress/imgpress/internal/service/convert"
)

// maxUploadMemory limits how much of the multipart form is kept in memory.
const maxUploadMemory = 64 << 20

// archiveName is the file name of the "download all" response.
const archiveName = "compressed_images.zip"

// service defines the batch conversion operations the handlers depend on.
type service interface {
	RunBatch(ctx context.Context, reqs []model.Request) ([]model.Result, error)
	TakeOne(name string) ([]byte, bool)
	WriteArchive(w io.Writer) error
}

// staging defines where uploaded files are parked until conversion.
type staging interface {
	Save(ctx context.Context, key string, src io.Reader) (string, error)
}

// Handler provides HTTP handlers for batch conversion endpoints.
type Handler struct {
	service        service
	staging        staging
	defaultQuality int
}

// NewHandler creates a new Handler with the given service and staging
// storage.
func NewHandler(s service, st staging, defaultQuality int) *Handler {
	if defaultQuality <= 0 {
		defaultQuality = codec.DefaultQuality
	}

	return &Handler{service: s, staging: st, defaultQuality: defaultQuality}
}

// Convert handles a batch upload: it stages every file from the multipart
// form, runs the batch, and responds with one report per input file in
// upload order.
func (h *Handler) Convert(c *ginext.Context) {
	if err := c.Request.ParseMultipartForm(maxUploadMemory); err != nil {
		zlog.Logger.Err(err).Msg("failed to parse multipart form")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("parse multipart form failed: %v", err))
		return
	}

	var files []*multipart.FileHeader
	if c.Request.MultipartForm != nil {
		files = c.Request.MultipartForm.File["images"]
	}
	if len(files) == 0 {
		zlog.Logger.Warn().Msg("no files provided")
		respond.Fail(c, http.StatusBadRequest, convertsvc.ErrNoFiles)
		return
	}

	format := model.ParseFormat(c.PostForm("format"))
	watermark := c.PostForm("watermark")

	// Unparseable or absent quality falls back to the default; range
	// validation is left to the codec.
	quality := h.defaultQuality
	if q, err := strconv.Atoi(c.PostForm("quality")); err == nil {
		quality = q
	}

	reqs := make([]model.Request, 0, len(files))
	for _, fh := range files {
		req, err := h.stage(c.Request.Context(), fh, format, quality, watermark)
		if err != nil {
			zlog.Logger.Err(err).Str("file", fh.Filename).Msg("failed to stage upload")
			respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to read uploaded file %s", fh.Filename))
			return
		}
		reqs = append(reqs, req)
	}

	results, err := h.service.RunBatch(c.Request.Context(), reqs)
	if err != nil {
		if errors.Is(err, convertsvc.ErrNoFiles) {
			respond.Fail(c, http.StatusBadRequest, err)
			return
		}

		zlog.Logger.Err(err).Msg("batch conversion failed")
		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("batch conversion failed: %v", err))
		return
	}

	respond.OK(c, results)
}

// Download serves one converted output by name and removes it from the
// store, so a second request for the same name returns 404.
func (h *Handler) Download(c *ginext.Context) {
	name := c.Param("name")
	if name == "" {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("missing file name"))
		return
	}

	data, ok := h.service.TakeOne(name)
	if !ok {
		zlog.Logger.Warn().Str("name", name).Msg("output not found")
		respond.Fail(c, http.StatusNotFound, fmt.Errorf("file not found"))
		return
	}

	respond.Attachment(c, name, contentTypeFor(name), data)
}

// DownloadAll streams every currently stored output as a single ZIP archive.
// An empty store yields a valid empty archive.
func (h *Handler) DownloadAll(c *ginext.Context) {
	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", archiveName))
	c.Status(http.StatusOK)

	if err := h.service.WriteArchive(c.Writer); err != nil {
		// Headers are already out; all we can do is log and cut the stream.
		zlog.Logger.Err(err).Msg("failed to stream archive")
	}
}

// stage parks one uploaded file in staging storage under a unique key and
// builds the conversion request referencing it.
func (h *Handler) stage(ctx context.Context, fh *multipart.FileHeader, format model.Format, quality int, watermark string) (model.Request, error) {
	src, err := fh.Open()
	if err != nil {
		return model.Request{}, fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	key := uuid.New().String() + filepath.Ext(fh.Filename)
	if _, err := h.staging.Save(ctx, key, src); err != nil {
		return model.Request{}, fmt.Errorf("failed to stage upload: %w", err)
	}

	return model.Request{
		OriginalName: fh.Filename,
		StagingKey:   key,
		Format:       format,
		Quality:      quality,
		Watermark:    watermark,
	}, nil
}

// contentTypeFor maps an output name's extension to its MIME type.
func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpeg", ".jpg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".avif":
		return "image/avif"
	case ".jxl":
		return "image/jxl"
	}

	return "application/octet-stream"
}
