package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Fixed subfolder layout. These relative paths are an external contract:
// upload takes modified/S3 and archival moves the whole folder.
const (
	originalSubdir   = "original"
	modifiedSubdir   = "modified"
	derivativeSubdir = "S3"
)

// DerivativeDir returns the derivative output folder for an organized media
// folder.
func DerivativeDir(folder string) string {
	return filepath.Join(folder, modifiedSubdir, derivativeSubdir)
}

// OrganizeFolder renames folder to its canonical name and partitions its
// loose files into the fixed layout. Idempotent: a correctly named folder is
// not renamed and existing subfolders are reused. Returns the (possibly new)
// folder path.
func OrganizeFolder(folder, name string) (string, error) {
	target := folder
	if filepath.Base(folder) != name {
		target = filepath.Join(filepath.Dir(folder), name)
		if _, err := os.Stat(target); err == nil {
			return "", fmt.Errorf("cannot rename %s: %s already exists", folder, target)
		}
		if err := os.Rename(folder, target); err != nil {
			return "", fmt.Errorf("failed to rename folder to %s: %w", name, err)
		}
		log.Info().Str("from", folder).Str("to", target).Msg("Renamed folder")
	}

	for _, sub := range []string{
		filepath.Join(target, originalSubdir),
		filepath.Join(target, modifiedSubdir, derivativeSubdir),
	} {
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return "", fmt.Errorf("failed to create %s: %w", sub, err)
		}
	}

	// Move loose raw inputs into original/
	entries, err := os.ReadDir(target)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", target, err)
	}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		src := filepath.Join(target, e.Name())
		dst := filepath.Join(target, originalSubdir, e.Name())
		if err := os.Rename(src, dst); err != nil {
			return "", fmt.Errorf("failed to move %s into %s: %w", e.Name(), originalSubdir, err)
		}
	}

	return target, nil
}
