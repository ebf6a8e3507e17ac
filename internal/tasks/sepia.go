package tasks

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// DefaultSepiaIntensity matches the classic sepia tone strength
const DefaultSepiaIntensity = 0.8

// Filter transforms an image. Implementations should return promptly once
// ctx is done.
type Filter interface {
	Apply(ctx context.Context, img image.Image) (image.Image, error)
}

// FilterFunc adapts a function to the Filter interface
type FilterFunc func(ctx context.Context, img image.Image) (image.Image, error)

func (f FilterFunc) Apply(ctx context.Context, img image.Image) (image.Image, error) {
	return f(ctx, img)
}

// Sepia blends each pixel towards its sepia tone by Intensity (0 to 1)
type Sepia struct {
	Intensity float64
}

// NewSepia clamps intensity into [0, 1]
func NewSepia(intensity float64) *Sepia {
	return &Sepia{Intensity: math.Max(0, math.Min(1, intensity))}
}

func (s *Sepia) Apply(ctx context.Context, img image.Image) (image.Image, error) {
	if img == nil {
		return nil, errors.New("sepia: nil image")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k := s.Intensity
	out := imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		r, g, b := float64(c.R), float64(c.G), float64(c.B)
		sr := 0.393*r + 0.769*g + 0.189*b
		sg := 0.349*r + 0.686*g + 0.168*b
		sb := 0.272*r + 0.534*g + 0.131*b

		c.R = clampUint8(r + (sr-r)*k)
		c.G = clampUint8(g + (sg-g)*k)
		c.B = clampUint8(b + (sb-b)*k)
		return c
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func clampUint8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
