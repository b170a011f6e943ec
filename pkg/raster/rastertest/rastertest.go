// Package rastertest builds synthetic images for detector tests.
package rastertest

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"math/rand"
	"testing"

	"DeForge/pkg/raster"
)

// Gradient returns a smooth RGB gradient
func Gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(x * 255 / max(1, w)), uint8(y * 255 / max(1, h)), uint8((x + y) * 255 / max(1, w+h)), 255})
		}
	}
	return img
}

// Flat returns a single-color image
func Flat(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, 255
	}
	return img
}

// Noise returns a seeded, per-channel independent uniform noise image
func Noise(w, h int, seed int64) *image.RGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(rng.Intn(256))
		img.Pix[i+1] = uint8(rng.Intn(256))
		img.Pix[i+2] = uint8(rng.Intn(256))
		img.Pix[i+3] = 255
	}
	return img
}

// Textured returns a natural-looking image: a gradient with seeded grain
// whose channels stay correlated
func Textured(w, h int, seed int64) *image.RGBA {
	rng := rand.New(rand.NewSource(seed))
	img := Gradient(w, h)
	for i := 0; i < len(img.Pix); i += 4 {
		grain := rng.Intn(41) - 20
		for c := 0; c < 3; c++ {
			v := int(img.Pix[i+c]) + grain + rng.Intn(5) - 2
			img.Pix[i+c] = uint8(min(255, max(0, v)))
		}
	}
	return img
}

// Natural returns a gray photo-like image: a smooth ramp with one bright
// blob and seeded Gaussian sensor noise of the given sigma
func Natural(w, h int, sigma float64, seed int64) *image.RGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fw, fh := float64(w), float64(h)
	spread := 2 * (fw / 5) * (fw / 5)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			fx, fy := float64(x), float64(y)
			r2 := (fx-0.6*fw)*(fx-0.6*fw) + (fy-0.4*fh)*(fy-0.4*fh)
			v := 128 + 60*(fx/fw-0.5) + 30*(fy/fh-0.5) + 40*math.Exp(-r2/spread) + rng.NormFloat64()*sigma
			g := uint8(min(255, max(0, math.Round(v))))
			i := img.PixOffset(x, y)
			img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = g, g, g, 255
		}
	}
	return img
}

// CopyBlock copies a size×size square from (sx, sy) to (dx, dy)
func CopyBlock(img *image.RGBA, sx, sy, dx, dy, size int) {
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(dx+x, dy+y, img.RGBAAt(sx+x, sy+y))
		}
	}
}

// EncodePNG encodes img as PNG
func EncodePNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// EncodeJPEG encodes img as JPEG at quality
func EncodeJPEG(t testing.TB, img image.Image, quality int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// Decode decodes data with the standard codec or fails the test
func Decode(t testing.TB, data []byte) *raster.Image {
	t.Helper()
	img, err := raster.NewCodec().Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return img
}

// EXIF tag ids used by BuildEXIF callers
const (
	TagMake              = 0x010F
	TagModel             = 0x0110
	TagSoftware          = 0x0131
	TagDateTime          = 0x0132
	TagDateTimeOriginal  = 0x9003
	TagDateTimeDigitized = 0x9004
	tagExifIFDPointer    = 0x8769
)

// Tag is an ASCII EXIF entry
type Tag struct {
	ID    uint16
	Value string
}

// BuildEXIF assembles a little-endian TIFF structure holding ifd0 entries and
// an Exif sub-IFD with exifIFD entries. Entries must be sorted by ID.
func BuildEXIF(ifd0, exifIFD []Tag) []byte {
	n0 := len(ifd0)
	if len(exifIFD) > 0 {
		n0++
	}
	ifd0Size := 2 + 12*n0 + 4
	exifOffset := 8 + ifd0Size
	exifSize := 0
	if len(exifIFD) > 0 {
		exifSize = 2 + 12*len(exifIFD) + 4
	}
	dataOffset := exifOffset + exifSize

	var head, data bytes.Buffer
	le := binary.LittleEndian
	head.WriteString("II")
	_ = binary.Write(&head, le, uint16(42))
	_ = binary.Write(&head, le, uint32(8))

	writeIFD := func(tags []Tag, pointer bool) {
		count := len(tags)
		if pointer {
			count++
		}
		_ = binary.Write(&head, le, uint16(count))
		for _, tag := range tags {
			value := append([]byte(tag.Value), 0)
			_ = binary.Write(&head, le, tag.ID)
			_ = binary.Write(&head, le, uint16(2)) // ASCII
			_ = binary.Write(&head, le, uint32(len(value)))
			if len(value) <= 4 {
				inline := make([]byte, 4)
				copy(inline, value)
				head.Write(inline)
			} else {
				_ = binary.Write(&head, le, uint32(dataOffset+data.Len()))
				data.Write(value)
				if data.Len()%2 == 1 {
					data.WriteByte(0)
				}
			}
		}
		if pointer {
			_ = binary.Write(&head, le, uint16(tagExifIFDPointer))
			_ = binary.Write(&head, le, uint16(4)) // LONG
			_ = binary.Write(&head, le, uint32(1))
			_ = binary.Write(&head, le, uint32(exifOffset))
		}
		_ = binary.Write(&head, le, uint32(0))
	}

	writeIFD(ifd0, len(exifIFD) > 0)
	if len(exifIFD) > 0 {
		writeIFD(exifIFD, false)
	}

	return append(head.Bytes(), data.Bytes()...)
}

// WithAPP1 inserts an APP1 segment carrying payload right after the JPEG SOI
func WithAPP1(jpegData, payload []byte) []byte {
	segment := []byte{0xFF, 0xE1, 0, 0}
	binary.BigEndian.PutUint16(segment[2:], uint16(2+len(payload)))
	out := append([]byte{}, jpegData[:2]...)
	out = append(out, segment...)
	out = append(out, payload...)
	return append(out, jpegData[2:]...)
}

// WithEXIF embeds a TIFF EXIF structure into a JPEG
func WithEXIF(jpegData, tiff []byte) []byte {
	return WithAPP1(jpegData, append([]byte("Exif\x00\x00"), tiff...))
}
