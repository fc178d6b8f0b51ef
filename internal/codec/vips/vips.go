package vips

import (
	"context"
	"fmt"
	"runtime"

	govips "github.com/davidbyttow/govips/v2/vips"

	"github.com/imgpress/imgpress/internal/codec"
	"github.com/imgpress/imgpress/internal/model"
)

// Codec is a libvips-backed encoder covering the full format set, including
// AVIF and JXL. Safe for concurrent use across goroutines. Watermark options
// are ignored by this backend.
type Codec struct {
	defaultQuality int
}

// New initialises libvips and returns a ready Codec.
// Call Shutdown when the process exits.
func New(defaultQuality int) *Codec {
	if defaultQuality <= 0 {
		defaultQuality = codec.DefaultQuality
	}

	govips.Startup(&govips.Config{
		ConcurrencyLevel: runtime.NumCPU(),
	})

	return &Codec{defaultQuality: defaultQuality}
}

// Shutdown releases all libvips resources. Call once at process exit.
func (*Codec) Shutdown() {
	govips.Shutdown()
}

func (*Codec) Supports(f model.Format) bool {
	switch f {
	case model.FormatJPEG, model.FormatPNG, model.FormatWebP, model.FormatAVIF, model.FormatJXL:
		return true
	}

	return false
}

// Encode decodes data and re-encodes it in format f.
func (c *Codec) Encode(ctx context.Context, data []byte, f model.Format, opts codec.Options) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ref, err := govips.NewImageFromBuffer(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	defer ref.Close()

	quality := opts.Quality
	if quality <= 0 {
		quality = c.defaultQuality
	}

	var buf []byte
	switch f {
	case model.FormatJPEG:
		ep := govips.NewJpegExportParams()
		ep.Quality = quality
		buf, _, err = ref.ExportJpeg(ep)
	case model.FormatPNG:
		ep := govips.NewPngExportParams()
		buf, _, err = ref.ExportPng(ep)
	case model.FormatWebP:
		ep := govips.NewWebpExportParams()
		ep.Quality = quality
		buf, _, err = ref.ExportWebp(ep)
	case model.FormatAVIF:
		ep := govips.NewAvifExportParams()
		ep.Quality = quality
		buf, _, err = ref.ExportAvif(ep)
	case model.FormatJXL:
		ep := govips.NewJxlExportParams()
		ep.Quality = quality
		buf, _, err = ref.ExportJxl(ep)
	default:
		return nil, fmt.Errorf("no encoder for format %q", f)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", f, err)
	}

	return buf, nil
}
