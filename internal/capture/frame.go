package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	"golang.org/x/image/draw"
)

// Frame is a captured screenshot plus the window metadata recorded with it.
type Frame struct {
	Data        []byte
	Hash        Hash
	Title       string
	ProcessName string
	ProcessPath string
	Icon        string
	Monitor     Geometry
	Width       int
	Height      int
	CapturedAt  time.Time
}

// Size returns the encoded image size in bytes.
func (f *Frame) Size() int {
	return len(f.Data)
}

// Downscale returns img resized so its longer side is at most maxSide,
// preserving aspect ratio. Images already within bounds are returned as-is.
func Downscale(img image.Image, maxSide int) image.Image {
	if maxSide <= 0 {
		return img
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	longest := max(w, h)
	if longest <= maxSide {
		return img
	}
	scale := float64(maxSide) / float64(longest)
	dst := image.NewRGBA(image.Rect(0, 0, int(float64(w)*scale), int(float64(h)*scale)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}

// EncodeJPEG serializes img at the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
