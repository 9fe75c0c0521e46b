package preview3d

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"sort"

	"golang.org/x/image/vector"
)

type vec3 struct{ x, y, z float64 }

var cubeVertices = [8]vec3{
	{-1, -1, -1}, {1, -1, -1}, {1, 1, -1}, {-1, 1, -1},
	{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1},
}

// face windings give positive screen area when facing the camera.
var cubeFaces = [6][4]int{
	{4, 5, 6, 7}, // front
	{1, 0, 3, 2}, // back
	{0, 4, 7, 3}, // left
	{5, 1, 2, 6}, // right
	{3, 7, 6, 2}, // bottom
	{0, 1, 5, 4}, // top
}

// Palette holds one colour per face plus the background.
type Palette struct {
	Background color.NRGBA
	Faces      [6]color.NRGBA
}

// BrandPalette is the default cube palette.
var BrandPalette = Palette{
	Background: color.NRGBA{R: 0x0f, G: 0x17, B: 0x2a, A: 0xff},
	Faces: [6]color.NRGBA{
		{R: 0x63, G: 0x66, B: 0xf1, A: 0xff},
		{R: 0x8b, G: 0x5c, B: 0xf6, A: 0xff},
		{R: 0xec, G: 0x48, B: 0x99, A: 0xff},
		{R: 0xf5, G: 0x9e, B: 0x0b, A: 0xff},
		{R: 0x10, G: 0xb9, B: 0x81, A: 0xff},
		{R: 0x0e, G: 0xa5, B: 0xe9, A: 0xff},
	},
}

func rotate(v vec3, ax, ay float64) vec3 {
	sy, cy := math.Sincos(ay)
	x := v.x*cy + v.z*sy
	z := -v.x*sy + v.z*cy
	sx, cx := math.Sincos(ax)
	y := v.y*cx - z*sx
	z = v.y*sx + z*cx
	return vec3{x, y, z}
}

// drawCube paints the cube rotated by (ax, ay) radians into dst.
func drawCube(dst *image.RGBA, z *vector.Rasterizer, p Palette, ax, ay float64) {
	b := dst.Bounds()
	draw.Draw(dst, b, image.NewUniform(p.Background), image.Point{}, draw.Src)

	w, h := float64(b.Dx()), float64(b.Dy())
	scale := math.Min(w, h) * 0.9
	const camera = 4.0

	var proj [8][2]float32
	var depth [8]float64
	for i, v := range cubeVertices {
		r := rotate(v, ax, ay)
		k := scale / (camera - r.z) // perspective
		proj[i] = [2]float32{float32(w/2 + r.x*k), float32(h/2 + r.y*k)}
		depth[i] = r.z
	}

	type face struct {
		idx   int
		depth float64
	}
	visible := make([]face, 0, 3)
	for i, f := range cubeFaces {
		p0, p1, p2 := proj[f[0]], proj[f[1]], proj[f[2]]
		// back faces project with non-positive signed area
		cross := (p1[0]-p0[0])*(p2[1]-p0[1]) - (p1[1]-p0[1])*(p2[0]-p0[0])
		if cross <= 0 {
			continue
		}
		d := (depth[f[0]] + depth[f[1]] + depth[f[2]] + depth[f[3]]) / 4
		visible = append(visible, face{i, d})
	}
	sort.Slice(visible, func(i, j int) bool { return visible[i].depth < visible[j].depth })

	for _, f := range visible {
		q := cubeFaces[f.idx]
		z.Reset(b.Dx(), b.Dy())
		z.MoveTo(proj[q[0]][0], proj[q[0]][1])
		for _, vi := range q[1:] {
			z.LineTo(proj[vi][0], proj[vi][1])
		}
		z.ClosePath()
		z.Draw(dst, b, image.NewUniform(p.Faces[f.idx]), image.Point{})
	}
}
