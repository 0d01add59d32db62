// Package imaging implements the frame preprocessing filters and the match
// annotation drawing. All operations work on an in-memory RGBA buffer and
// never touch the source file.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// Decode parses raw frame bytes into a mutable RGBA buffer.
func Decode(data []byte) (*image.RGBA, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return toRGBA(img), nil
}

// EncodeJPEG serializes a buffer back to JPEG bytes.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// toRGBA copies an arbitrary image into an RGBA buffer anchored at (0,0).
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == image.Pt(0, 0) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Copy(dst, image.Point{}, img, b, draw.Src, nil)
	return dst
}

// luma returns the BT.601 grayscale plane of an image as float values 0-255.
func luma(img *image.RGBA) [][]float64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([][]float64, h)
	for y := range h {
		out[y] = make([]float64, w)
		for x := range w {
			i := img.PixOffset(x, y)
			r := float64(img.Pix[i])
			g := float64(img.Pix[i+1])
			bl := float64(img.Pix[i+2])
			out[y][x] = 0.299*r + 0.587*g + 0.114*bl
		}
	}
	return out
}

// FocusMeasure returns the variance of the Laplacian of the grayscale image.
// Sharp images have high variance; values below the blur threshold indicate
// a blurry frame.
func FocusMeasure(img *image.RGBA) float64 {
	gray := luma(img)
	h := len(gray)
	if h < 3 {
		return 0
	}
	w := len(gray[0])
	if w < 3 {
		return 0
	}

	var sum, sumSq float64
	n := 0
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			lap := gray[y-1][x] + gray[y+1][x] + gray[y][x-1] + gray[y][x+1] - 4*gray[y][x]
			sum += lap
			sumSq += lap * lap
			n++
		}
	}
	mean := sum / float64(n)
	return sumSq/float64(n) - mean*mean
}

// IsBlurry reports whether the focus measure is below the blur threshold.
func IsBlurry(img *image.RGBA, blurThreshold float64) bool {
	return FocusMeasure(img) < blurThreshold
}

// Sharpen applies an unsharp mask: the gaussian-blurred image is subtracted
// from a boosted original (1.5*src - 0.5*blur), which amplifies edges.
func Sharpen(img *image.RGBA) *image.RGBA {
	blurred := gaussianBlur(img, 3.0)
	out := image.NewRGBA(img.Bounds())
	for i := range img.Pix {
		if i%4 == 3 { // alpha
			out.Pix[i] = img.Pix[i]
			continue
		}
		v := 1.5*float64(img.Pix[i]) - 0.5*float64(blurred.Pix[i])
		out.Pix[i] = clampByte(v)
	}
	return out
}

// MeanLuma returns the mean grayscale value of the image (0-255).
func MeanLuma(img *image.RGBA) float64 {
	gray := luma(img)
	var sum float64
	n := 0
	for _, row := range gray {
		for _, v := range row {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// AdjustBrightness lifts dark frames: the luma histogram is equalized to
// spread local contrast and an additive boost is applied on top.
func AdjustBrightness(img *image.RGBA, boost int) *image.RGBA {
	gray := luma(img)

	// Build the luma histogram and its cumulative distribution.
	var hist [256]int
	n := 0
	for _, row := range gray {
		for _, v := range row {
			hist[int(v)]++
			n++
		}
	}
	if n == 0 {
		return img
	}
	var cdf [256]float64
	acc := 0
	for i := range hist {
		acc += hist[i]
		cdf[i] = float64(acc) / float64(n)
	}

	out := image.NewRGBA(img.Bounds())
	b := img.Bounds()
	for y := range b.Dy() {
		for x := range b.Dx() {
			i := img.PixOffset(x, y)
			old := gray[y][x]
			equalized := cdf[int(old)] * 255.0

			// Scale the RGB channels by the luma gain, then add the boost.
			gain := 1.0
			if old > 0 {
				gain = equalized / old
			}
			for c := range 3 {
				v := float64(img.Pix[i+c])*gain + float64(boost)
				out.Pix[i+c] = clampByte(v)
			}
			out.Pix[i+3] = img.Pix[i+3]
		}
	}
	return out
}

// ResizeToWidth downscales the image to maxWidth preserving aspect ratio.
// Images at or below maxWidth are returned unchanged.
func ResizeToWidth(img *image.RGBA, maxWidth int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxWidth {
		return img
	}

	newH := int(float64(h) * float64(maxWidth) / float64(w))
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, newH))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// gaussianBlur applies a separable gaussian kernel with the given sigma.
func gaussianBlur(img *image.RGBA, sigma float64) *image.RGBA {
	radius := int(math.Ceil(3 * sigma))
	kernel := make([]float64, 2*radius+1)
	var kSum float64
	for i := range kernel {
		d := float64(i - radius)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		kSum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= kSum
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	// Horizontal pass.
	tmp := image.NewRGBA(b)
	for y := range h {
		for x := range w {
			var acc [4]float64
			for k, kv := range kernel {
				sx := x + k - radius
				if sx < 0 {
					sx = 0
				} else if sx >= w {
					sx = w - 1
				}
				i := img.PixOffset(sx, y)
				for c := range 4 {
					acc[c] += kv * float64(img.Pix[i+c])
				}
			}
			i := tmp.PixOffset(x, y)
			for c := range 4 {
				tmp.Pix[i+c] = clampByte(acc[c])
			}
		}
	}

	// Vertical pass.
	out := image.NewRGBA(b)
	for y := range h {
		for x := range w {
			var acc [4]float64
			for k, kv := range kernel {
				sy := y + k - radius
				if sy < 0 {
					sy = 0
				} else if sy >= h {
					sy = h - 1
				}
				i := tmp.PixOffset(x, sy)
				for c := range 4 {
					acc[c] += kv * float64(tmp.Pix[i+c])
				}
			}
			i := out.PixOffset(x, y)
			for c := range 4 {
				out.Pix[i+c] = clampByte(acc[c])
			}
		}
	}
	return out
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
