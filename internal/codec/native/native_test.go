package native

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xwebp "golang.org/x/image/webp"

	"github.com/imgpress/imgpress/internal/codec"
	"github.com/imgpress/imgpress/internal/model"
)

func newTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 50, B: 50, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestSupports(t *testing.T) {
	c := New()

	assert.True(t, c.Supports(model.FormatJPEG))
	assert.True(t, c.Supports(model.FormatPNG))
	assert.True(t, c.Supports(model.FormatWebP))
	assert.False(t, c.Supports(model.FormatAVIF))
	assert.False(t, c.Supports(model.FormatJXL))
	assert.False(t, c.Supports(model.Format("bogus")))
}

func TestEncode_PNGToJPEG(t *testing.T) {
	c := New()
	src := newTestPNG(t, 16, 16)

	out, err := c.Encode(context.Background(), src, model.FormatJPEG, codec.Options{Quality: 80})
	require.NoError(t, err)
	require.NotEmpty(t, out)

	decoded, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 16, decoded.Bounds().Dx())
	assert.Equal(t, 16, decoded.Bounds().Dy())
}

func TestEncode_PNGToWebP(t *testing.T) {
	c := New()
	src := newTestPNG(t, 8, 8)

	out, err := c.Encode(context.Background(), src, model.FormatWebP, codec.Options{Quality: 75})
	require.NoError(t, err)

	decoded, err := xwebp.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 8, decoded.Bounds().Dx())
}

func TestEncode_CorruptInput(t *testing.T) {
	c := New()

	_, err := c.Encode(context.Background(), []byte("definitely not an image"), model.FormatJPEG, codec.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

func TestEncode_Watermark(t *testing.T) {
	c := New()
	src := newTestPNG(t, 64, 64)

	out, err := c.Encode(context.Background(), src, model.FormatJPEG, codec.Options{Quality: 90, Watermark: "sample"})
	require.NoError(t, err)

	_, err = jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
}

func TestEncode_CanceledContext(t *testing.T) {
	c := New()
	src := newTestPNG(t, 8, 8)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Encode(ctx, src, model.FormatJPEG, codec.Options{})
	require.ErrorIs(t, err, context.Canceled)
}
