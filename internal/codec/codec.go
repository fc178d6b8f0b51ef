package codec

import (
	"context"

	"github.com/imgpress/imgpress/internal/model"
)

// DefaultQuality is used when the caller provides no usable quality value.
const DefaultQuality = 75

// Options carries format-agnostic encoding parameters.
type Options struct {
	Quality   int    // 1-100; <=0 falls back to DefaultQuality
	Watermark string // optional overlay text; backends may ignore it
}

// Codec converts raw image bytes into a target format. Implementations must
// be safe for concurrent use: one batch runs many conversions at once.
type Codec interface {
	// Supports reports whether this backend can encode the given format.
	// A false answer is an "unsupported format" condition, distinct from
	// a decode/encode failure.
	Supports(f model.Format) bool
	// Encode decodes data and re-encodes it in format f.
	Encode(ctx context.Context, data []byte, f model.Format, opts Options) ([]byte, error)
}
