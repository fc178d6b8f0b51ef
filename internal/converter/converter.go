package converter

import (
	"context"
	"fmt"
	"io"

	"github.com/wb-go/wbf/zlog"

	"github.com/imgpress/imgpress/internal/codec"
	"github.com/imgpress/imgpress/internal/model"
)

// staging defines the transient upload area the worker reads from and
// releases when done.
type staging interface {
	Load(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Worker converts a single batch item.
type Worker struct {
	codec   codec.Codec
	staging staging
}

// New creates a Worker backed by the given codec and staging storage.
func New(c codec.Codec, s staging) *Worker {
	return &Worker{codec: c, staging: s}
}

// Convert runs one conversion. It never returns an error: every failure is
// captured in the result status, so one bad item cannot abort its siblings.
// The payload of a completed conversion is returned to the caller, which owns
// its publication into the result store.
//
// The staging object backing the request is removed exactly once, whatever
// the outcome.
func (w *Worker) Convert(ctx context.Context, req model.Request) (model.Result, []byte) {
	res := model.Result{
		Name:       req.OriginalName,
		OutputName: model.OutputName(req.OriginalName, req.Format),
	}

	if req.StagingKey != "" {
		defer w.release(req.StagingKey)
	}

	data := req.Data
	if data == nil && req.StagingKey != "" {
		var err error
		data, err = w.load(ctx, req.StagingKey)
		if err != nil {
			zlog.Logger.Err(err).Str("file", req.OriginalName).Msg("failed to read staged upload")
			res.Status = model.StatusError
			res.Error = "failed to read uploaded file"
			return res, nil
		}
	}
	res.OriginalSize = len(data)

	if !w.codec.Supports(req.Format) {
		res.Status = model.StatusUnsupported
		res.Error = fmt.Sprintf("format %q is not supported", req.Format)
		return res, nil
	}

	out, err := w.codec.Encode(ctx, data, req.Format, codec.Options{
		Quality:   req.Quality,
		Watermark: req.Watermark,
	})
	if err != nil {
		zlog.Logger.Err(err).Str("file", req.OriginalName).Msg("conversion failed")
		res.Status = model.StatusError
		res.Error = err.Error()
		return res, nil
	}

	res.Status = model.StatusCompleted
	res.OutputSize = len(out)

	return res, out
}

func (w *Worker) load(ctx context.Context, key string) ([]byte, error) {
	rc, err := w.staging.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

// release removes the staging object. A cleanup failure is logged and never
// affects the result reported to the caller. Uses a fresh context so cleanup
// still runs after a per-item timeout.
func (w *Worker) release(key string) {
	if err := w.staging.Delete(context.Background(), key); err != nil {
		zlog.Logger.Warn().Err(err).Str("key", key).Msg("failed to remove staging object")
	}
}
