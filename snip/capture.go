package snip

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"time"

	"github.com/disintegration/imaging"
)

// CapturedArtifact is a standalone cropped image ready to hand to the
// host. Ownership transfers on creation; the subsystem keeps nothing.
type CapturedArtifact struct {
	ImageData         []byte
	SuggestedFileName string
}

// Capture crops the selection out of the displayed raster and encodes
// it as PNG. This is a pure pixel copy of what is on screen; the
// rendering engine is never re-invoked, so the capture is WYSIWYG.
func Capture(raster *Raster, rect SelectionRect) (*CapturedArtifact, error) {
	if raster == nil || raster.Image == nil {
		return nil, newError(ErrNoSelection, "no rendered page to capture from", nil)
	}
	if rect.Empty() {
		return nil, newError(ErrNoSelection, "no selection rectangle", nil)
	}

	crop := image.Rect(rect.X, rect.Y, rect.X+rect.Width, rect.Y+rect.Height).
		Intersect(image.Rect(0, 0, raster.Width, raster.Height))
	if crop.Empty() {
		return nil, newError(ErrNoSelection, "selection lies outside the page", nil)
	}

	cropped := imaging.Crop(raster.Image, crop)

	var buf bytes.Buffer
	if err := png.Encode(&buf, cropped); err != nil {
		return nil, newError(ErrRenderFailure, "encoding capture failed", err)
	}

	artifact := &CapturedArtifact{
		ImageData:         buf.Bytes(),
		SuggestedFileName: captureFileName(raster.Page, time.Now()),
	}
	Logger.Info("Captured region", "page", raster.Page,
		"width", crop.Dx(), "height", crop.Dy(), "fileName", artifact.SuggestedFileName)
	return artifact, nil
}

// captureFileName encodes the page number and a millisecond timestamp
// so repeated captures on the same page get unique names
func captureFileName(page int, at time.Time) string {
	return fmt.Sprintf("snip-page%d-%d.png", page, at.UnixMilli())
}
