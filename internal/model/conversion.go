package model

import (
	"path/filepath"
	"strings"
)

// Format identifies a target image codec.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
	FormatAVIF Format = "avif"
	FormatJXL  Format = "jxl"
)

// ParseFormat normalizes a client-supplied format tag. Whether the tag is
// actually convertible is decided by the active codec, not here.
func ParseFormat(s string) Format {
	return Format(strings.ToLower(strings.TrimSpace(s)))
}

// Extension returns the file extension used for derived output names.
func (f Format) Extension() string {
	return string(f)
}

// Status is the outcome of a single conversion attempt.
type Status string

const (
	StatusCompleted   Status = "completed"
	StatusUnsupported Status = "unsupported format"
	StatusError       Status = "error"
)

// Request describes one image to convert. Immutable once constructed.
type Request struct {
	Data         []byte // raw input; loaded from staging when nil
	OriginalName string
	StagingKey   string // transient upload object, released by the worker
	Format       Format
	Quality      int
	Watermark    string // optional overlay text, backend-dependent
}

// Result is the per-item conversion report returned to the client.
type Result struct {
	Name         string `json:"name"`
	OutputName   string `json:"outputName"`
	OriginalSize int    `json:"originalSize"`
	OutputSize   int    `json:"compressedSize"`
	Status       Status `json:"status"`
	Error        string `json:"errorMessage,omitempty"`
}

// OutputName derives the stored name for an input converted to format f:
// the original stem plus the format's extension. Two inputs sharing a stem
// collide on purpose; the result store is last-write-wins.
func OutputName(original string, f Format) string {
	stem := strings.TrimSuffix(filepath.Base(original), filepath.Ext(original))
	return stem + "." + f.Extension()
}
