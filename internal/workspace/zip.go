package workspace

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"sort"
	"time"

	"github.com/starford/pagesmith/internal/models"
)

// writeZip writes every slot of arts under a top-level folder named root.
// Empty slots are skipped.
func writeZip(w io.Writer, root string, arts models.Artifacts) error {
	slots := make([]models.Slot, 0, len(arts))
	for slot := range arts {
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })

	zw := zip.NewWriter(w)
	now := time.Now()
	for _, slot := range slots {
		text := arts[slot]
		if text == "" {
			continue
		}
		hdr := &zip.FileHeader{
			Name:     path.Join(root, slot.FileName()),
			Method:   zip.Deflate,
			Modified: now,
		}
		f, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("workspace: zip %s: %w", slot, err)
		}
		if _, err := io.WriteString(f, text); err != nil {
			return fmt.Errorf("workspace: zip %s: %w", slot, err)
		}
	}
	return zw.Close()
}
