package ocr

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/disintegration/imaging"
)

// binarize performs a simple global threshold on a grayscale image.
func binarize(img image.Image, threshold uint8) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bb, _ := img.At(x, y).RGBA()
			gray := uint8((r + g + bb) / 3 >> 8)
			var v uint8 = 255
			if gray <= threshold {
				v = 0
			}
			out.Set(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return out
}

// Downscale rewrites src into dst as JPEG, halving the long edge until the
// file fits maxBytes or the image gets too small to read. src is copied
// unchanged when it already fits.
func Downscale(src, dst string, maxBytes int64) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat image: %w", err)
	}
	if info.Size() <= maxBytes {
		data, err := os.ReadFile(src)
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		return os.WriteFile(dst, data, 0o644)
	}

	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	for {
		if err := imaging.Save(img, dst, imaging.JPEGQuality(80)); err != nil {
			return fmt.Errorf("save image: %w", err)
		}
		out, err := os.Stat(dst)
		if err != nil {
			return fmt.Errorf("stat image: %w", err)
		}
		w, h := img.Bounds().Dx(), img.Bounds().Dy()
		if out.Size() <= maxBytes || w < 800 && h < 800 {
			return nil
		}
		if w >= h {
			img = imaging.Resize(img, w/2, 0, imaging.Lanczos)
		} else {
			img = imaging.Resize(img, 0, h/2, imaging.Lanczos)
		}
	}
}
