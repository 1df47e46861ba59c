package media

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
)

const previewMaxWidth = 2000

// PanoProcessor unpacks the panorama authoring tool's zip export into the
// canonical derivative layout and recovers the viewer configuration.
type PanoProcessor struct{}

func NewPanoProcessor() *PanoProcessor {
	return &PanoProcessor{}
}

// Process handles one organized panorama folder. A missing or empty zip
// export is an error: without it no derivative of any kind can be produced,
// and persisting the record anyway would leave metadata pointing at nothing.
// Tile relocation and config parsing tolerate partial exports (nil PanoData
// with a nil error means the derivatives exist but the viewer config could
// not be recovered); extraction and thumbnail failures propagate.
func (p *PanoProcessor) Process(ctx context.Context, folder, name string) (*PanoData, error) {
	zipPath, ok := findZipExport(filepath.Join(folder, originalSubdir))
	if !ok {
		return nil, fmt.Errorf("%w: no usable panorama export zip in %s", ErrNoSource, folder)
	}

	tmpDir := filepath.Join(folder, modifiedSubdir, "pano_extract")
	if err := extractZip(zipPath, tmpDir); err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", filepath.Base(zipPath), err)
	}

	p.relocateTiles(tmpDir, folder)

	var data *PanoData
	if configPath, ok := findFile(tmpDir, "data.js"); ok {
		raw, err := os.ReadFile(configPath)
		if err == nil {
			data, err = ParsePanoConfig(raw)
		}
		if err != nil {
			log.Warn().Err(err).Str("folder", folder).Msg("Failed to parse viewer config, viewer will use defaults")
			data = nil
		}
	} else {
		log.Warn().Str("folder", folder).Msg("No viewer config found in export")
	}

	// Transient artifacts are best-effort cleanup.
	if err := os.RemoveAll(tmpDir); err != nil {
		log.Warn().Err(err).Str("path", tmpDir).Msg("Failed to remove extraction folder")
	}
	if err := os.Remove(zipPath); err != nil {
		log.Warn().Err(err).Str("path", zipPath).Msg("Failed to remove export zip")
	}

	if err := p.writeDerivedImages(folder, name); err != nil {
		return nil, err
	}

	return data, nil
}

// relocateTiles moves the single tile-pyramid folder of the export into
// modified/S3/tiles, replacing any prior relocation. Anything other than
// exactly one pyramid logs a warning and skips relocation.
func (p *PanoProcessor) relocateTiles(tmpDir, folder string) {
	tilesRoot, ok := findDir(tmpDir, "tiles")
	if !ok {
		log.Warn().Str("folder", folder).Msg("Export has no tiles folder, skipping tile relocation")
		return
	}

	entries, err := os.ReadDir(tilesRoot)
	if err != nil {
		log.Warn().Err(err).Str("folder", folder).Msg("Failed to read tiles folder, skipping tile relocation")
		return
	}

	var pyramids []string
	for _, e := range entries {
		if e.IsDir() {
			pyramids = append(pyramids, e.Name())
		}
	}
	if len(pyramids) != 1 {
		log.Warn().
			Str("folder", folder).
			Int("count", len(pyramids)).
			Msg("Expected exactly one tile pyramid, skipping tile relocation")
		return
	}

	dst := filepath.Join(DerivativeDir(folder), "tiles")
	if err := os.RemoveAll(dst); err != nil {
		log.Warn().Err(err).Str("path", dst).Msg("Failed to remove prior tiles")
		return
	}
	if err := os.Rename(filepath.Join(tilesRoot, pyramids[0]), dst); err != nil {
		log.Warn().Err(err).Str("folder", folder).Msg("Failed to relocate tile pyramid")
	}
}

// writeDerivedImages builds thumbnail.webp and preview.jpg from a
// representative frame next to the panorama source.
func (p *PanoProcessor) writeDerivedImages(folder, name string) error {
	jpegPath, err := firstJPEG(folder)
	if err != nil {
		return fmt.Errorf("no representative frame for panorama: %w", err)
	}

	img, err := imaging.Open(jpegPath)
	if err != nil {
		return fmt.Errorf("failed to open representative frame: %w", err)
	}

	outDir := DerivativeDir(folder)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", outDir, err)
	}

	if err := writeThumbnail(img, filepath.Join(outDir, "thumbnail.webp")); err != nil {
		return fmt.Errorf("failed to encode panorama thumbnail: %w", err)
	}

	preview := img
	if img.Bounds().Dx() > previewMaxWidth {
		preview = imaging.Resize(img, previewMaxWidth, 0, imaging.Lanczos)
	}
	if err := imaging.Save(preview, filepath.Join(outDir, "preview.jpg"), imaging.JPEGQuality(85)); err != nil {
		return fmt.Errorf("failed to encode panorama preview: %w", err)
	}

	log.Info().Str("name", name).Msg("Panorama derivatives written")
	return nil
}

// findZipExport returns the first non-empty zip in dir.
func findZipExport(dir string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".zip") {
			continue
		}
		info, err := e.Info()
		if err != nil || info.Size() == 0 {
			continue
		}
		return filepath.Join(dir, e.Name()), true
	}
	return "", false
}

func extractZip(src, dstDir string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return err
	}

	for _, f := range r.File {
		target := filepath.Join(dstDir, filepath.FromSlash(f.Name))

		// Guard against paths escaping the extraction root.
		if !strings.HasPrefix(target, filepath.Clean(dstDir)+string(os.PathSeparator)) {
			return fmt.Errorf("zip entry %q escapes extraction folder", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}

		rc, err := f.Open()
		if err != nil {
			return err
		}
		out, err := os.Create(target)
		if err != nil {
			rc.Close()
			return err
		}
		_, err = io.Copy(out, rc)
		rc.Close()
		out.Close()
		if err != nil {
			return err
		}
	}

	return nil
}

func findDir(root, name string) (string, bool) {
	return findEntry(root, name, true)
}

func findFile(root, name string) (string, bool) {
	return findEntry(root, name, false)
}

func findEntry(root, name string, wantDir bool) (string, bool) {
	var found string
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Name() == name && d.IsDir() == wantDir {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	return found, found != ""
}
