// Package magick shells out to an ImageMagick-compatible binary for the
// raster conversions the in-process codecs cannot do (high-bit-depth TIFF
// normalization).
package magick

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

const defaultTimeout = 5 * time.Minute

// Runner executes conversions through an external binary, each call bounded
// by a timeout so a hung subprocess cannot stall a whole ingestion pass.
type Runner struct {
	bin     string
	timeout time.Duration
}

// NewRunner creates a Runner. bin defaults to "magick" when empty.
func NewRunner(bin string, timeout time.Duration) *Runner {
	if bin == "" {
		bin = "magick"
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Runner{bin: bin, timeout: timeout}
}

// NormalizeTIFF converts a high-bit-depth TIFF into an 8-bit,
// contrast-normalized PNG the webp encoder can consume losslessly.
func (r *Runner) NormalizeTIFF(ctx context.Context, src, dst string) error {
	return r.run(ctx, src, "-depth", "8", "-normalize", dst)
}

// ToJPEG converts src into a reviewable JPEG.
func (r *Runner) ToJPEG(ctx context.Context, src, dst string) error {
	return r.run(ctx, src, "-quality", "92", dst)
}

func (r *Runner) run(ctx context.Context, src string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.bin, append([]string{src}, args...)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%s timed out after %s converting %s", r.bin, r.timeout, src)
		}
		return fmt.Errorf("%s failed for %s: %w (output: %s)", r.bin, src, err, string(out))
	}
	return nil
}
