package native

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	// Register input decoders beyond the ones imaging pulls in itself.
	_ "golang.org/x/image/webp"

	"github.com/imgpress/imgpress/internal/codec"
	"github.com/imgpress/imgpress/internal/model"
)

// Codec is a pure-Go backend: JPEG and PNG via imaging, WebP via chai2010.
// AVIF and JXL are not available without cgo; requests for them are reported
// as unsupported rather than failed.
type Codec struct{}

// New creates a native Codec.
func New() *Codec {
	return &Codec{}
}

func (*Codec) Supports(f model.Format) bool {
	switch f {
	case model.FormatJPEG, model.FormatPNG, model.FormatWebP:
		return true
	}

	return false
}

// Encode decodes data, optionally stamps a watermark, and re-encodes it in
// format f.
func (c *Codec) Encode(ctx context.Context, data []byte, f model.Format, opts codec.Options) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	if opts.Watermark != "" {
		img = stamp(img, opts.Watermark)
	}

	quality := opts.Quality
	if quality <= 0 {
		quality = codec.DefaultQuality
	}

	var buf bytes.Buffer
	switch f {
	case model.FormatJPEG:
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
	case model.FormatPNG:
		err = imaging.Encode(&buf, img, imaging.PNG)
	case model.FormatWebP:
		err = webp.Encode(&buf, img, &webp.Options{Quality: float32(quality)})
	default:
		return nil, fmt.Errorf("no encoder for format %q", f)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", f, err)
	}

	return buf.Bytes(), nil
}

// stamp draws the watermark text in the bottom-right corner.
func stamp(img image.Image, text string) image.Image {
	dc := gg.NewContextForImage(img)
	dc.SetColor(color.White)

	margin := 10.0
	x := float64(dc.Width()) - margin
	y := float64(dc.Height()) - margin

	dc.DrawStringAnchored(text, x, y, 1, 1)
	dc.Fill()

	return dc.Image()
}
