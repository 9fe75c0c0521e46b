// Package editor implements the photo editor: its per-studio state and the
// crop, rotate and filter rasterization pipeline.
package editor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultMaxPixels bounds the output surface a single render may allocate.
const DefaultMaxPixels = 40_000_000

var (
	// ErrImageDecodeFailed means the source image could not be loaded.
	ErrImageDecodeFailed = errors.New("image decode failed")
	// ErrRasterizationUnavailable means no output surface could be acquired.
	ErrRasterizationUnavailable = errors.New("rasterization unavailable")
)

// CropArea is an axis-aligned region in source pixel space.
type CropArea struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect converts the area to an image.Rectangle.
func (a CropArea) Rect() image.Rectangle {
	return image.Rect(a.X, a.Y, a.X+a.Width, a.Y+a.Height)
}

// Rasterizer turns an edit description into pixels.
type Rasterizer struct {
	MaxPixels int
}

func (r Rasterizer) surface(w, h int) (*image.NRGBA, error) {
	limit := r.MaxPixels
	if limit <= 0 {
		limit = DefaultMaxPixels
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: surface %dx%d", ErrRasterizationUnavailable, w, h)
	}
	if int64(w)*int64(h) > int64(limit) {
		return nil, fmt.Errorf("%w: surface %dx%d exceeds %d pixels", ErrRasterizationUnavailable, w, h, limit)
	}
	return image.NewNRGBA(image.Rect(0, 0, w, h)), nil
}

// Rasterize draws the crop region of src into a crop-sized surface, with
// the filter applied and the content rotated rotationDeg degrees clockwise
// about the surface centre. Corners uncovered by the rotation and any part
// of the crop outside src stay transparent.
func (r Rasterizer) Rasterize(src image.Image, crop CropArea, rotationDeg float64, f Filter) (*image.NRGBA, error) {
	dst, err := r.surface(crop.Width, crop.Height)
	if err != nil {
		return nil, err
	}

	cr := crop.Rect()
	visible := cr.Intersect(src.Bounds())
	if visible.Empty() {
		return dst, nil
	}
	region := f.Apply(imaging.Crop(src, visible))
	offset := visible.Min.Sub(cr.Min)

	if math.Mod(rotationDeg, 360) == 0 {
		draw.Draw(dst, region.Bounds().Add(offset), region, image.Point{}, draw.Src)
		return dst, nil
	}

	rad := rotationDeg * math.Pi / 180
	sin, cos := math.Sincos(rad)
	cx, cy := float64(crop.Width)/2, float64(crop.Height)/2
	ox, oy := float64(offset.X)-cx, float64(offset.Y)-cy
	s2d := f64.Aff3{
		cos, -sin, cos*ox - sin*oy + cx,
		sin, cos, sin*ox + cos*oy + cy,
	}
	draw.BiLinear.Transform(dst, s2d, region, region.Bounds(), draw.Src, nil)
	return dst, nil
}

// Decode loads the image held by a data URL.
func Decode(dataURL string) (image.Image, error) {
	_, data, err := DecodeDataURL(dataURL)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageDecodeFailed, err)
	}
	return img, nil
}

// Inspect returns the pixel size of an encoded image without decoding it
// fully.
func Inspect(data []byte) (image.Point, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Point{}, fmt.Errorf("%w: %v", ErrImageDecodeFailed, err)
	}
	return image.Pt(cfg.Width, cfg.Height), nil
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Render decodes dataURL, rasterizes it and returns PNG bytes.
func (r Rasterizer) Render(dataURL string, crop CropArea, rotationDeg float64, f Filter) ([]byte, error) {
	src, err := Decode(dataURL)
	if err != nil {
		return nil, err
	}
	out, err := r.Rasterize(src, crop, rotationDeg, f)
	if err != nil {
		return nil, err
	}
	return EncodePNG(out)
}
