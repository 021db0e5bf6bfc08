package host

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
)

const (
	defaultViewportSize = 800
	viewportMargin      = 20
)

// Viewport renders a top-down projection of the document as a PNG. Objects
// draw as bounding-rectangle outlines in their layer color. An empty layer
// name renders every visible layer.
func (d *Document) Viewport(layer string, maxSize int) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = defaultViewportSize
	}

	objs := make([]*Object, 0)
	for _, obj := range d.Objects() {
		if !obj.Visible {
			continue
		}
		if layer != "" && obj.Layer != layer {
			continue
		}
		objs = append(objs, obj)
	}

	img := image.NewRGBA(image.Rect(0, 0, maxSize, maxSize))
	fill(img, color.RGBA{255, 255, 255, 255})

	if len(objs) > 0 {
		minX, minY := math.Inf(1), math.Inf(1)
		maxX, maxY := math.Inf(-1), math.Inf(-1)
		for _, obj := range objs {
			minX = math.Min(minX, obj.Min[0])
			minY = math.Min(minY, obj.Min[1])
			maxX = math.Max(maxX, obj.Max[0])
			maxY = math.Max(maxY, obj.Max[1])
		}
		span := math.Max(maxX-minX, maxY-minY)
		if span == 0 {
			span = 1
		}
		scale := float64(maxSize-2*viewportMargin) / span

		for _, obj := range objs {
			c := color.RGBA{0, 0, 0, 255}
			if l, ok := d.LayerByName(obj.Layer); ok {
				c = color.RGBA{l.Color[0], l.Color[1], l.Color[2], 255}
			}
			x0 := viewportMargin + int((obj.Min[0]-minX)*scale)
			y0 := viewportMargin + int((obj.Min[1]-minY)*scale)
			x1 := viewportMargin + int((obj.Max[0]-minX)*scale)
			y1 := viewportMargin + int((obj.Max[1]-minY)*scale)
			outline(img, x0, y0, x1, y1, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func fill(img *image.RGBA, c color.RGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func outline(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	for x := x0; x <= x1; x++ {
		img.SetRGBA(x, y0, c)
		img.SetRGBA(x, y1, c)
	}
	for y := y0; y <= y1; y++ {
		img.SetRGBA(x0, y, c)
		img.SetRGBA(x1, y, c)
	}
}
