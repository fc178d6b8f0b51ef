package archive

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"

	"github.com/imgpress/imgpress/internal/store"
)

// Write streams the given entries into w as a ZIP archive, preserving entry
// order. An empty entry set still produces a structurally valid, empty
// archive.
func Write(w io.Writer, entries []store.Entry) error {
	zw := zip.NewWriter(w)

	for _, e := range entries {
		f, err := zw.Create(e.Name)
		if err != nil {
			return fmt.Errorf("failed to create archive entry %s: %w", e.Name, err)
		}
		if _, err := f.Write(e.Data); err != nil {
			return fmt.Errorf("failed to write archive entry %s: %w", e.Name, err)
		}
	}

	return zw.Close()
}
