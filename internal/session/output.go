package session

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/wasd845/AVGraphics/internal/logging"
	"github.com/wasd845/AVGraphics/internal/media"
)

// tempFile creates a hidden file next to dest. It is renamed over dest by
// commit or removed by discard.
func tempFile(op, dest string) (*os.File, error) {
	dir, base := filepath.Split(dest)
	if dir == "" {
		dir = "."
	}
	f, err := os.CreateTemp(dir, "."+base+".*.part")
	if err != nil {
		return nil, media.IOError(op, err, "")
	}
	return f, nil
}

type staged struct {
	temp string
	dest string
}

// commit renames every staged file. If a rename fails, the files already
// renamed and every remaining temporary file are removed.
func commit(op string, files []staged) error {
	for i, f := range files {
		if err := os.Rename(f.temp, f.dest); err != nil {
			for _, done := range files[:i] {
				os.Remove(done.dest)
			}
			discard(files[i:])
			return media.IOError(op, err, "")
		}
	}
	return nil
}

func discard(files []staged) {
	for _, f := range files {
		if err := os.Remove(f.temp); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.GetLogger("session").Warn("Failed to remove temporary output", "path", f.temp, "error", err)
		}
	}
}
