package photo

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// PlaceholderSize is the edge length of the generated placeholder images
const PlaceholderSize = 64

var (
	placeholder       = imaging.New(PlaceholderSize, PlaceholderSize, color.NRGBA{R: 0xd8, G: 0xd8, B: 0xd8, A: 0xff})
	failedPlaceholder = imaging.New(PlaceholderSize, PlaceholderSize, color.NRGBA{R: 0xc0, G: 0x39, B: 0x2b, A: 0xff})
)

// Placeholder is shown until a record has a downloaded image.
// The returned image is shared and must not be modified.
func Placeholder() image.Image {
	return placeholder
}

// FailedPlaceholder is shown for records that failed to load.
// The returned image is shared and must not be modified.
func FailedPlaceholder() image.Image {
	return failedPlaceholder
}
