package recorder

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	_ "image/png"
	"time"

	"github.com/pagewatch/navcore/internal/artifacts"
)

const screenshotTimeout = 10 * time.Second

// captureInitialFrame saves the page's state at recording start as the
// filmstrip's frame 0, written to VideoPrefix() + "000000.jpg".
func (r *Recorder) captureInitialFrame() error {
	data, err := r.captureScreenshotPNG()
	if err != nil {
		return err
	}
	quality := r.job.ImageQuality
	if quality <= 0 {
		quality = 85
	}
	var geometry string
	if r.mobileViewport != nil {
		geometry = r.mobileViewport.Geometry
	}
	path := r.VideoPrefix() + "000000.jpg"
	return artifacts.ConvertPNGToJPEG(data, path, quality, geometry)
}

// captureViewportProbeFrame grabs a throwaway screenshot purely to derive
// the mobile-emulation viewport crop rectangle (spec §4.6); the frame
// itself is not added to the filmstrip.
func (r *Recorder) captureViewportProbeFrame() error {
	data, err := r.captureScreenshotPNG()
	if err != nil {
		return err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("recorder: decode probe frame: %w", err)
	}
	vp := artifacts.DetectViewport(img, r.job.Width, r.job.Height)
	r.mobileViewport = &vp
	return nil
}

func (r *Recorder) captureScreenshotPNG() ([]byte, error) {
	if r.Session.Navigation.MainThreadBlocked() {
		return nil, fmt.Errorf("recorder: refusing screenshot: main thread blocked")
	}
	raw, err := r.Session.SendCommand("Page.captureScreenshot", map[string]interface{}{
		"format": "png",
	}, true, screenshotTimeout)
	if err != nil {
		return nil, err
	}
	var result struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("recorder: parse captureScreenshot result: %w", err)
	}
	return base64.StdEncoding.DecodeString(result.Data)
}
