package artifacts

import (
	"fmt"
	"os"
	"os/exec"
)

// ConvertPNGToJPEG shells out to ImageMagick's `convert` to turn a raw PNG
// capture into the final JPEG artifact at the given quality (job.iq) and,
// if geometry is non-empty, cropped to it first (spec §4.6/§6: "mogrify and
// convert are invoked via the shell... any replacement must accept the
// same quality parameter and geometry string"). The internals of image
// post-processing are out of scope; this is the narrow command-line
// contract the rest of the system relies on.
func ConvertPNGToJPEG(pngData []byte, destPath string, quality int, geometry string) error {
	tmp, err := os.CreateTemp("", "navcore-shot-*.png")
	if err != nil {
		return fmt.Errorf("artifacts: create temp png: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(pngData); err != nil {
		tmp.Close()
		return fmt.Errorf("artifacts: write temp png: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("artifacts: close temp png: %w", err)
	}

	args := []string{tmpPath}
	if geometry != "" {
		args = append(args, "-crop", geometry)
	}
	args = append(args, "-quality", fmt.Sprintf("%d", quality), destPath)

	cmd := exec.Command("convert", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("artifacts: convert failed: %w: %s", err, out)
	}
	return nil
}
