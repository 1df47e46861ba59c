package media

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
)

const (
	// Largest dimension the webp codec accepts.
	maxWebPDimension = 16383

	thumbnailWidth   = 2000
	thumbnailHeight  = 1300
	thumbnailQuality = 80
)

// Converter is the external raster-conversion dependency (ImageMagick in
// production, faked in tests).
type Converter interface {
	NormalizeTIFF(ctx context.Context, src, dst string) error
	ToJPEG(ctx context.Context, src, dst string) error
}

// Transcoder turns a folder's TIFF composite into the web derivatives: a
// lossless full-resolution webp and a lossy thumbnail.
type Transcoder struct {
	conv Converter
}

func NewTranscoder(conv Converter) *Transcoder {
	return &Transcoder{conv: conv}
}

// TranscodeFolder processes the first TIFF under folder/original into
// modified/S3/<name>.webp and modified/S3/thumbnail.webp. Errors propagate;
// a missing derivative makes the item unpublishable.
func (t *Transcoder) TranscodeFolder(ctx context.Context, folder, name string) error {
	tiffPath, err := firstTIFF(filepath.Join(folder, originalSubdir))
	if err != nil {
		return err
	}

	outDir := DerivativeDir(folder)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", outDir, err)
	}

	// The lossless encoder cannot take the high-bit-depth TIFF directly;
	// normalize to an 8-bit PNG first.
	tmpPNG := filepath.Join(folder, modifiedSubdir, name+"_full.png")
	if err := t.conv.NormalizeTIFF(ctx, tiffPath, tmpPNG); err != nil {
		return fmt.Errorf("raster conversion failed: %w", err)
	}
	defer func() {
		if err := os.Remove(tmpPNG); err != nil {
			log.Warn().Err(err).Str("path", tmpPNG).Msg("Failed to remove intermediate PNG")
		}
	}()

	img, err := imaging.Open(tmpPNG)
	if err != nil {
		return fmt.Errorf("failed to open intermediate PNG: %w", err)
	}

	full := clampToMaxDimension(img)

	// The two derivatives read from independent image handles and write to
	// independent files.
	var wg sync.WaitGroup
	var losslessErr, thumbErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		losslessErr = writeLosslessWebP(full, filepath.Join(outDir, name+".webp"))
	}()
	go func() {
		defer wg.Done()
		thumbErr = writeThumbnail(img, filepath.Join(outDir, "thumbnail.webp"))
	}()
	wg.Wait()

	if losslessErr != nil {
		return fmt.Errorf("failed to encode lossless derivative: %w", losslessErr)
	}
	if thumbErr != nil {
		return fmt.Errorf("failed to encode thumbnail: %w", thumbErr)
	}

	log.Info().Str("name", name).Str("source", filepath.Base(tiffPath)).Msg("Transcoding done")
	return nil
}

// ClampDimensions scales width/height proportionally so the larger dimension
// does not exceed max. Dimensions already within max are returned unchanged.
func ClampDimensions(width, height, max int) (int, int) {
	if width <= max && height <= max {
		return width, height
	}
	if width >= height {
		return max, height * max / width
	}
	return width * max / height, max
}

func clampToMaxDimension(img image.Image) image.Image {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	nw, nh := ClampDimensions(w, h, maxWebPDimension)
	if nw == w && nh == h {
		return img
	}
	log.Info().
		Int("width", w).Int("height", h).
		Int("newWidth", nw).Int("newHeight", nh).
		Msg("Downscaling to webp dimension cap")
	return imaging.Resize(img, nw, nh, imaging.Lanczos)
}

func writeLosslessWebP(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return webp.Encode(f, img, &webp.Options{Lossless: true})
}

// writeThumbnail produces the lossy, cropped thumbnail shared by all media
// types. Sources larger than the thumbnail box are center-cropped to exactly
// 2000x1300; smaller sources are encoded as-is.
func writeThumbnail(img image.Image, path string) error {
	thumb := img
	if img.Bounds().Dx() > thumbnailWidth || img.Bounds().Dy() > thumbnailHeight {
		thumb = imaging.Fill(img, thumbnailWidth, thumbnailHeight, imaging.Center, imaging.Lanczos)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return webp.Encode(f, thumb, &webp.Options{Quality: thumbnailQuality})
}

// firstTIFF returns the alphabetically first TIFF in dir. Additional TIFFs
// are skipped with a warning naming them.
func firstTIFF(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var tiffs []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".tif" || ext == ".tiff" {
			tiffs = append(tiffs, e.Name())
		}
	}

	if len(tiffs) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoSource, dir)
	}
	if len(tiffs) > 1 {
		log.Warn().
			Str("folder", dir).
			Str("using", tiffs[0]).
			Strs("skipped", tiffs[1:]).
			Msg("Multiple TIFFs found, transcoding the first only")
	}
	return filepath.Join(dir, tiffs[0]), nil
}
