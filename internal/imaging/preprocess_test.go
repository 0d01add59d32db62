package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"
	"time"
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func noisyImage(w, h int) *image.RGBA {
	rng := rand.New(rand.NewSource(42))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			v := uint8(rng.Intn(256))
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeRoundTrip(t *testing.T) {
	src := solidImage(20, 10, color.RGBA{R: 100, G: 150, B: 200, A: 255})

	img, err := Decode(encodePNG(t, src))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if img.Bounds().Dx() != 20 || img.Bounds().Dy() != 10 {
		t.Errorf("bounds = %v; want 20x10", img.Bounds())
	}

	data, err := EncodeJPEG(img)
	if err != nil {
		t.Fatalf("EncodeJPEG failed: %v", err)
	}
	if _, err := jpeg.Decode(bytes.NewReader(data)); err != nil {
		t.Errorf("re-decode of encoded JPEG failed: %v", err)
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := Decode([]byte("definitely not an image")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestFocusMeasure(t *testing.T) {
	flat := solidImage(64, 64, color.RGBA{R: 128, G: 128, B: 128, A: 255})
	noisy := noisyImage(64, 64)

	if v := FocusMeasure(flat); v > 1e-6 {
		t.Errorf("flat image focus = %v; want ~0", v)
	}
	if FocusMeasure(noisy) <= FocusMeasure(flat) {
		t.Error("noisy image should measure sharper than a flat image")
	}
}

func TestIsBlurry(t *testing.T) {
	flat := solidImage(64, 64, color.RGBA{R: 128, G: 128, B: 128, A: 255})
	noisy := noisyImage(64, 64)

	if !IsBlurry(flat, 100.0) {
		t.Error("flat image should be classified blurry")
	}
	if IsBlurry(noisy, 100.0) {
		t.Error("high-variance image should not be classified blurry")
	}
}

func TestSharpenIncreasesFocus(t *testing.T) {
	img := noisyImage(32, 32)
	blurred := gaussianBlur(img, 2.0)

	before := FocusMeasure(blurred)
	after := FocusMeasure(Sharpen(blurred))
	if after <= before {
		t.Errorf("sharpen did not increase focus: before=%v after=%v", before, after)
	}
}

func TestMeanLuma(t *testing.T) {
	dark := solidImage(10, 10, color.RGBA{R: 20, G: 20, B: 20, A: 255})
	bright := solidImage(10, 10, color.RGBA{R: 220, G: 220, B: 220, A: 255})

	if v := MeanLuma(dark); v < 19 || v > 21 {
		t.Errorf("dark mean luma = %v; want ~20", v)
	}
	if v := MeanLuma(bright); v < 219 || v > 221 {
		t.Errorf("bright mean luma = %v; want ~220", v)
	}
}

func TestAdjustBrightnessLiftsDarkImage(t *testing.T) {
	dark := solidImage(32, 32, color.RGBA{R: 30, G: 30, B: 30, A: 255})

	lifted := AdjustBrightness(dark, 50)
	if got, want := MeanLuma(lifted), MeanLuma(dark); got <= want {
		t.Errorf("brightness not lifted: before=%v after=%v", want, got)
	}
}

func TestResizeToWidth(t *testing.T) {
	tests := []struct {
		name          string
		w, h          int
		maxWidth      int
		expectW       int
		expectH       int
		expectResized bool
	}{
		{"wider than limit", 1000, 500, 500, 500, 250, true},
		{"at limit unchanged", 500, 300, 500, 500, 300, false},
		{"below limit unchanged", 320, 240, 500, 320, 240, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src := solidImage(tc.w, tc.h, color.RGBA{R: 10, G: 20, B: 30, A: 255})
			out := ResizeToWidth(src, tc.maxWidth)

			if out.Bounds().Dx() != tc.expectW || out.Bounds().Dy() != tc.expectH {
				t.Errorf("resized to %v; want %dx%d", out.Bounds(), tc.expectW, tc.expectH)
			}
			if tc.expectResized == (out == src) {
				t.Errorf("resized=%v; want %v", out != src, tc.expectResized)
			}
		})
	}
}

func TestPreprocessingDoesNotMutateSource(t *testing.T) {
	src := noisyImage(32, 32)
	orig := make([]byte, len(src.Pix))
	copy(orig, src.Pix)

	Sharpen(src)
	AdjustBrightness(src, 50)
	ResizeToWidth(src, 16)

	if !bytes.Equal(orig, src.Pix) {
		t.Error("preprocessing mutated the source buffer")
	}
}

func TestAnnotateMatchDrawsMarker(t *testing.T) {
	img := solidImage(100, 100, color.RGBA{R: 0, G: 0, B: 0, A: 255})

	AnnotateMatch(img, []float64{40, 40, 60, 60}, time.Date(2025, 4, 29, 22, 15, 30, 0, time.UTC))

	// Circle: some pixel on the ring at (cx+r, cy) must be green.
	if img.RGBAAt(60, 50) != annotationGreen {
		t.Error("expected circle pixel at (60, 50)")
	}
	// Timestamp text: at least one green pixel in the label region.
	found := false
	for y := 10; y < 30 && !found; y++ {
		for x := 5; x < 95 && !found; x++ {
			if img.RGBAAt(x, y) == annotationGreen {
				found = true
			}
		}
	}
	if !found {
		t.Error("expected timestamp text pixels in the label region")
	}
}

func TestAnnotateMatchWithoutBBox(t *testing.T) {
	img := solidImage(50, 50, color.RGBA{A: 255})
	// Missing bbox must not panic and still draws the timestamp.
	AnnotateMatch(img, nil, time.Now())
}
