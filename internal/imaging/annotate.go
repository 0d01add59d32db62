package imaging

import (
	"image"
	"image/color"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var annotationGreen = color.RGBA{R: 0, G: 255, B: 0, A: 255}

// AnnotateMatch draws the match marker onto the buffer: a circle around the
// matched face's bounding box and the capture timestamp in the top-left
// corner. bbox is [x1, y1, x2, y2] in pixel coordinates; a short or missing
// bbox skips the circle but still draws the timestamp.
func AnnotateMatch(img *image.RGBA, bbox []float64, capturedAt time.Time) {
	if len(bbox) == 4 {
		x1, y1, x2, y2 := int(bbox[0]), int(bbox[1]), int(bbox[2]), int(bbox[3])
		cx, cy := (x1+x2)/2, (y1+y2)/2
		radius := max((x2-x1)/2, (y2-y1)/2)
		drawCircle(img, cx, cy, radius, 2)
	}
	drawLabel(img, capturedAt.Format("2006-01-02 15:04:05"), 10, 25)
}

// drawCircle plots a midpoint circle of the given stroke thickness.
func drawCircle(img *image.RGBA, cx, cy, radius, thickness int) {
	if radius <= 0 {
		return
	}
	for t := range thickness {
		r := radius + t
		x, y := r, 0
		err := 1 - r
		for x >= y {
			setIfInside(img, cx+x, cy+y)
			setIfInside(img, cx+y, cy+x)
			setIfInside(img, cx-y, cy+x)
			setIfInside(img, cx-x, cy+y)
			setIfInside(img, cx-x, cy-y)
			setIfInside(img, cx-y, cy-x)
			setIfInside(img, cx+y, cy-x)
			setIfInside(img, cx+x, cy-y)
			y++
			if err < 0 {
				err += 2*y + 1
			} else {
				x--
				err += 2*(y-x) + 1
			}
		}
	}
}

func setIfInside(img *image.RGBA, x, y int) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetRGBA(x, y, annotationGreen)
	}
}

// drawLabel renders text at the given baseline position.
func drawLabel(img *image.RGBA, text string, x, y int) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(annotationGreen),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
