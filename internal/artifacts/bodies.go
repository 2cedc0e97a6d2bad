package artifacts

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
)

// BodiesWriter writes {pathBase}_bodies.zip (text bodies only, per spec §6)
// plus the raw {taskDir}/bodies/<reqid> file for every fetched body
// regardless of classification.
type BodiesWriter struct {
	bodiesDir string
	zipPath   string

	zf      *os.File
	zw      *zip.Writer
	counter int
}

// NewBodiesWriter prepares the bodies/ directory; the zip file itself is
// created lazily on the first text body so a run with no text responses
// doesn't leave an empty zip behind.
func NewBodiesWriter(taskDir, pathBase string) (*BodiesWriter, error) {
	dir := filepath.Join(taskDir, "bodies")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifacts: create bodies dir: %w", err)
	}
	return &BodiesWriter{bodiesDir: dir, zipPath: pathBase + "_bodies.zip"}, nil
}

// Add writes the raw body to bodies/<reqid>, and if isText, also appends it
// to the zip under "NNN-<reqid>-body.txt" (NNN a 1-based monotonic counter
// within this writer's lifetime).
func (b *BodiesWriter) Add(requestID string, data []byte, isText bool) error {
	if err := os.WriteFile(filepath.Join(b.bodiesDir, requestID), data, 0o644); err != nil {
		return fmt.Errorf("artifacts: write raw body for %s: %w", requestID, err)
	}
	if !isText {
		return nil
	}
	if b.zw == nil {
		f, err := os.Create(b.zipPath)
		if err != nil {
			return fmt.Errorf("artifacts: create bodies zip: %w", err)
		}
		b.zf = f
		b.zw = zip.NewWriter(f)
	}
	b.counter++
	name := fmt.Sprintf("%03d-%s-body.txt", b.counter, requestID)
	w, err := b.zw.Create(name)
	if err != nil {
		return fmt.Errorf("artifacts: add %s to zip: %w", name, err)
	}
	_, err = w.Write(data)
	return err
}

// Close finalizes the zip, if one was opened.
func (b *BodiesWriter) Close() error {
	if b.zw == nil {
		return nil
	}
	if err := b.zw.Close(); err != nil {
		b.zf.Close()
		return err
	}
	return b.zf.Close()
}
