// Package raster decodes images into an immutable RGB buffer shared by every
// detector, and exposes the container data (quantization tables, embedded
// EXIF, text chunks) the codec saw while decoding.
package raster

import (
	"image"
)

// Image is a decoded raster. It must be treated as read-only once returned by
// a Codec; detectors that need to transform pixels work on copies.
type Image struct {
	Width      int
	Height     int
	Channels   int // channel count of the source color model
	Format     string
	ByteLength int
	Pix        []uint8 // RGB, row-major, 3 bytes per pixel
	Container  Container

	encoded []byte
}

// Encoded returns the original encoded bytes. Callers must not modify them.
func (img *Image) Encoded() []byte {
	return img.encoded
}

// Pixels returns the number of pixels
func (img *Image) Pixels() int {
	return img.Width * img.Height
}

// RGB returns the color of the pixel at (x, y)
func (img *Image) RGB(x, y int) (r, g, b uint8) {
	i := (y*img.Width + x) * 3
	return img.Pix[i], img.Pix[i+1], img.Pix[i+2]
}

// Luma returns the ITU-R 601 luminance of the pixel at (x, y)
func (img *Image) Luma(x, y int) float64 {
	r, g, b := img.RGB(x, y)
	return luma(r, g, b)
}

func luma(r, g, b uint8) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

// Bounds returns the full image rectangle
func (img *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, img.Width, img.Height)
}

// CenterWindow returns the centered rectangle of at most size×size pixels
func (img *Image) CenterWindow(size int) image.Rectangle {
	w, h := min(img.Width, size), min(img.Height, size)
	x0 := (img.Width - w) / 2
	y0 := (img.Height - h) / 2
	return image.Rect(x0, y0, x0+w, y0+h)
}

// GrayPlane returns the luminance of rect as a row-major slice
func (img *Image) GrayPlane(rect image.Rectangle) []float64 {
	rect = rect.Intersect(img.Bounds())
	w, h := rect.Dx(), rect.Dy()
	plane := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := (rect.Min.Y+y)*img.Width + rect.Min.X
		for x := 0; x < w; x++ {
			i := (row + x) * 3
			plane[y*w+x] = luma(img.Pix[i], img.Pix[i+1], img.Pix[i+2])
		}
	}
	return plane
}

// ToRGBA returns a private *image.RGBA copy suitable for encoders
func (img *Image) ToRGBA() *image.RGBA {
	out := image.NewRGBA(img.Bounds())
	for p, q := 0, 0; p < len(img.Pix); p, q = p+3, q+4 {
		out.Pix[q] = img.Pix[p]
		out.Pix[q+1] = img.Pix[p+1]
		out.Pix[q+2] = img.Pix[p+2]
		out.Pix[q+3] = 0xFF
	}
	return out
}

// FromImage converts any image.Image into an RGB raster. Alpha is dropped
// after un-premultiplying.
func FromImage(src image.Image, format string) *Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	img := &Image{
		Width:    w,
		Height:   h,
		Channels: channelsOf(src),
		Format:   format,
		Pix:      make([]uint8, w*h*3),
	}

	switch s := src.(type) {
	case *image.NRGBA:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				si := s.PixOffset(b.Min.X+x, b.Min.Y+y)
				di := (y*w + x) * 3
				copy(img.Pix[di:di+3], s.Pix[si:si+3])
			}
		}
	case *image.Gray:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				v := s.Pix[s.PixOffset(b.Min.X+x, b.Min.Y+y)]
				di := (y*w + x) * 3
				img.Pix[di], img.Pix[di+1], img.Pix[di+2] = v, v, v
			}
		}
	default:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, bl, a := src.At(b.Min.X+x, b.Min.Y+y).RGBA()
				di := (y*w + x) * 3
				img.Pix[di], img.Pix[di+1], img.Pix[di+2] = unpremultiply(r, a), unpremultiply(g, a), unpremultiply(bl, a)
			}
		}
	}

	return img
}

func unpremultiply(c, a uint32) uint8 {
	if a == 0 {
		return 0
	}
	if a == 0xFFFF {
		return uint8(c >> 8)
	}
	return uint8((c * 0xFFFF / a) >> 8)
}

func channelsOf(src image.Image) int {
	if o, ok := src.(interface{ Opaque() bool }); ok && o.Opaque() {
		if _, gray := src.(*image.Gray); !gray {
			return 3
		}
	}
	switch src.(type) {
	case *image.Gray, *image.Gray16:
		return 1
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64, *image.NYCbCrA:
		return 4
	default:
		return 3
	}
}
