package editor

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Filter is the closed set of colour transforms the editor offers.
type Filter int

const (
	FilterNone Filter = iota
	FilterGrayscale
	FilterSepia
	FilterContrast
	FilterBright
)

// Filters lists every filter in display order.
var Filters = []Filter{FilterNone, FilterGrayscale, FilterSepia, FilterContrast, FilterBright}

var ErrUnknownFilter = errors.New("unknown filter")

const (
	sepiaAmount    = 0.8
	contrastFactor = 1.4
	brightFactor   = 1.2
)

// sepiaMatrix is the standard sepia matrix interpolated at sepiaAmount.
var sepiaMatrix = func() [3][3]float64 {
	k := 1 - sepiaAmount
	return [3][3]float64{
		{0.393 + 0.607*k, 0.769 - 0.769*k, 0.189 - 0.189*k},
		{0.349 - 0.349*k, 0.686 + 0.314*k, 0.168 - 0.168*k},
		{0.272 - 0.272*k, 0.534 - 0.534*k, 0.131 + 0.869*k},
	}
}()

// ParseFilter maps a form identifier to a Filter.
func ParseFilter(s string) (Filter, error) {
	for _, f := range Filters {
		if f.String() == s {
			return f, nil
		}
	}
	return FilterNone, fmt.Errorf("%w: %q", ErrUnknownFilter, s)
}

func (f Filter) String() string {
	switch f {
	case FilterNone:
		return "none"
	case FilterGrayscale:
		return "grayscale"
	case FilterSepia:
		return "sepia"
	case FilterContrast:
		return "contrast"
	case FilterBright:
		return "bright"
	}
	return fmt.Sprintf("filter(%d)", int(f))
}

// Describe returns the filter as a CSS filter function, suitable for a live
// preview of the unrendered image.
func (f Filter) Describe() string {
	switch f {
	case FilterNone:
		return "none"
	case FilterGrayscale:
		return "grayscale(1)"
	case FilterSepia:
		return fmt.Sprintf("sepia(%.1f)", sepiaAmount)
	case FilterContrast:
		return fmt.Sprintf("contrast(%.1f)", contrastFactor)
	case FilterBright:
		return fmt.Sprintf("brightness(%.1f)", brightFactor)
	}
	return "none"
}

// Apply returns a filtered copy of img.
func (f Filter) Apply(img image.Image) *image.NRGBA {
	switch f {
	case FilterGrayscale:
		return imaging.Grayscale(img)
	case FilterSepia:
		return imaging.AdjustFunc(img, sepia)
	case FilterContrast:
		return imaging.AdjustFunc(img, contrast)
	case FilterBright:
		return imaging.AdjustFunc(img, bright)
	}
	return imaging.Clone(img)
}

func sepia(c color.NRGBA) color.NRGBA {
	r, g, b := float64(c.R), float64(c.G), float64(c.B)
	m := sepiaMatrix
	return color.NRGBA{
		R: clamp8(m[0][0]*r + m[0][1]*g + m[0][2]*b),
		G: clamp8(m[1][0]*r + m[1][1]*g + m[1][2]*b),
		B: clamp8(m[2][0]*r + m[2][1]*g + m[2][2]*b),
		A: c.A,
	}
}

// contrast scales each channel away from mid-grey, like CSS contrast().
func contrast(c color.NRGBA) color.NRGBA {
	scale := func(v uint8) uint8 {
		return clamp8((float64(v)-127.5)*contrastFactor + 127.5)
	}
	return color.NRGBA{R: scale(c.R), G: scale(c.G), B: scale(c.B), A: c.A}
}

func bright(c color.NRGBA) color.NRGBA {
	return color.NRGBA{
		R: clamp8(float64(c.R) * brightFactor),
		G: clamp8(float64(c.G) * brightFactor),
		B: clamp8(float64(c.B) * brightFactor),
		A: c.A,
	}
}

func clamp8(v float64) uint8 {
	v = math.Round(v)
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return uint8(v)
}
