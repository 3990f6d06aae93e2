package processor

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // registers the WebP decoder
)

// DimensionProber reads the displayed size of an image. EXIF orientation is
// applied, so a rotated JPEG reports its upright width and height.
type DimensionProber struct{}

func New() *DimensionProber {
	return &DimensionProber{}
}

func (p *DimensionProber) Dimensions(data []byte) (int, int, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return 0, 0, fmt.Errorf("DimensionProber - Dimensions - imaging.Decode: %w", err)
	}

	b := img.Bounds()

	return b.Dx(), b.Dy(), nil
}
