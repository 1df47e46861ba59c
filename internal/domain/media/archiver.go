package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Archiver produces the final reviewable JPEG and relocates processed
// folders into long-term archive storage.
type Archiver struct {
	conv       Converter
	archiveDir string
}

func NewArchiver(conv Converter, archiveDir string) *Archiver {
	return &Archiver{conv: conv, archiveDir: archiveDir}
}

// ConvertThenArchive writes <archive>/<name>.jpg from the folder's TIFF, or
// from a panorama source JPEG when no TIFF exists. When neither source is
// found the folder is left in place untouched; archiving without a review
// copy would risk losing unreviewed originals. A pre-existing archive entry
// is never overwritten.
func (a *Archiver) ConvertThenArchive(ctx context.Context, folder, name string) error {
	if err := os.MkdirAll(a.archiveDir, 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	src, ok := reviewSource(filepath.Join(folder, originalSubdir))
	if !ok {
		log.Warn().Str("folder", folder).Msg("No review source found, skipping archive entirely")
		return nil
	}

	reviewPath := filepath.Join(a.archiveDir, name+".jpg")
	if err := a.conv.ToJPEG(ctx, src, reviewPath); err != nil {
		return fmt.Errorf("failed to convert review copy for %s: %w", name, err)
	}

	dst := filepath.Join(a.archiveDir, name)
	if _, err := os.Stat(dst); err == nil {
		log.Warn().Str("name", name).Str("path", dst).Msg("Archive entry already exists, leaving source folder in place")
		return nil
	}

	if err := os.Rename(folder, dst); err != nil {
		return fmt.Errorf("failed to move %s into archive: %w", folder, err)
	}

	log.Info().Str("name", name).Str("path", dst).Msg("Folder archived")
	return nil
}

// reviewSource picks the conversion source: the first TIFF, else a panorama
// frame matched by naming convention.
func reviewSource(dir string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}

	var panoJPEG string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.ToLower(e.Name())
		ext := filepath.Ext(name)
		switch {
		case ext == ".tif" || ext == ".tiff":
			return filepath.Join(dir, e.Name()), true
		case (ext == ".jpg" || ext == ".jpeg") && strings.Contains(name, "pano") && panoJPEG == "":
			panoJPEG = filepath.Join(dir, e.Name())
		}
	}

	if panoJPEG != "" {
		return panoJPEG, true
	}
	return "", false
}
