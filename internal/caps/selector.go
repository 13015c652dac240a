package caps

import (
	"errors"
	"strings"
)

// ErrNoMatch reports that no capture format satisfied the constraint.
var ErrNoMatch = errors.New("no matching capture format")

// Select picks the best format matching the pixel format (case-insensitive)
// and exact resolution: the highest frame rate wins, and the earliest entry
// wins ties, so selection is deterministic in parser emission order.
func Select(formats []CaptureFormat, pixelFormat string, width, height int) (CaptureFormat, error) {
	var best CaptureFormat
	found := false

	for _, f := range formats {
		if !strings.EqualFold(f.PixelFormat, pixelFormat) || f.Width != width || f.Height != height {
			continue
		}
		if !found || f.FPS > best.FPS {
			best = f
			found = true
		}
	}

	if !found {
		return CaptureFormat{}, ErrNoMatch
	}
	return best, nil
}
