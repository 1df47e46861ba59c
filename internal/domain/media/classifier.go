package media

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".tif":  true,
	".tiff": true,
	".dng":  true,
}

// Classification bands. A small capture set is an HDR bracket, a band of
// 26-35 frames is a panorama sweep, everything else is a wide-angle series.
// The bands are a fixed contract: counts in the gaps deliberately bucket as
// wide_angle even though that misclassifies some captures.
const (
	maxHDRImages  = 5
	minPanoImages = 26
	maxPanoImages = 35
)

// ClassifyFolder inspects a media folder and classifies it by image count.
// For an already-organized folder the "original" subfolder is counted,
// otherwise the folder itself. Returns TypeUnknown on read failure; the
// caller skips the folder.
func ClassifyFolder(dir string) Type {
	countDir := dir
	if info, err := os.Stat(filepath.Join(dir, "original")); err == nil && info.IsDir() {
		countDir = filepath.Join(dir, "original")
	}

	entries, err := os.ReadDir(countDir)
	if err != nil {
		log.Warn().Err(err).Str("folder", dir).Msg("Failed to read folder for classification")
		return TypeUnknown
	}

	n := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			n++
		}
	}

	switch {
	case n <= maxHDRImages:
		return TypeHDR
	case n >= minPanoImages && n <= maxPanoImages:
		return TypePano
	default:
		return TypeWideAngle
	}
}
