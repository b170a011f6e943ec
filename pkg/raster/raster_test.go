package raster

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 255 / w), uint8(y * 255 / h), uint8((x + y) % 256), 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image, quality int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}))
	return buf.Bytes()
}

func pngChunk(kind string, payload []byte) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(payload)))
	buf.WriteString(kind)
	buf.Write(payload)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(append([]byte(kind), payload...)))
	return buf.Bytes()
}

// insertAfterIHDR splices extra chunks right after the PNG header chunk
func insertAfterIHDR(data []byte, chunks ...[]byte) []byte {
	const ihdrEnd = 8 + 4 + 4 + 13 + 4
	out := append([]byte{}, data[:ihdrEnd]...)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return append(out, data[ihdrEnd:]...)
}

func TestDecodePNG(t *testing.T) {
	src := gradient(40, 30)
	data := encodePNG(t, src)

	img, err := NewCodec().Decode(data)
	require.NoError(t, err)

	assert.Equal(t, "png", img.Format)
	assert.Equal(t, 40, img.Width)
	assert.Equal(t, 30, img.Height)
	assert.Equal(t, 3, img.Channels)
	assert.Equal(t, len(data), img.ByteLength)
	assert.Equal(t, data, img.Encoded())
	assert.Len(t, img.Pix, 40*30*3)

	r, g, b := img.RGB(10, 20)
	want := src.RGBAAt(10, 20)
	assert.Equal(t, [3]uint8{want.R, want.G, want.B}, [3]uint8{r, g, b})
	assert.Empty(t, img.Container.QuantTables)
}

func TestDecodeJPEGQuantTables(t *testing.T) {
	data := encodeJPEG(t, gradient(64, 64), 50)

	img, err := NewCodec().Decode(data)
	require.NoError(t, err)

	assert.Equal(t, "jpeg", img.Format)
	require.Len(t, img.Container.QuantTables, 2)
	for _, table := range img.Container.QuantTables {
		assert.Len(t, table, 64)
	}
	// quality 50 keeps the reference tables unscaled
	assert.Equal(t, uint16(16), img.Container.QuantTables[0][0])
	assert.Equal(t, uint16(17), img.Container.QuantTables[1][0])
}

func TestDecodeErrors(t *testing.T) {
	jpegData := encodeJPEG(t, gradient(64, 64), 80)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrDecode},
		{"garbage", []byte("definitely not an image"), ErrDecode},
		{"truncated jpeg", jpegData[:len(jpegData)/3], ErrDecode},
		{"svg", []byte(`<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg"></svg>`), ErrUnsupportedFormat},
		{"heic", append([]byte{0, 0, 0, 0x18}, []byte("ftypheic0000")...), ErrUnsupportedFormat},
		{"psd", []byte("8BPS\x00\x01"), ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := NewCodec().Decode(tt.data)
			assert.Nil(t, img)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRecompressIsDeterministic(t *testing.T) {
	codec := NewCodec()
	img, err := codec.Decode(encodePNG(t, gradient(48, 48)))
	require.NoError(t, err)

	a, err := codec.Recompress(img, 90)
	require.NoError(t, err)
	b, err := codec.Recompress(img, 90)
	require.NoError(t, err)

	assert.Equal(t, a.Pix, b.Pix)
	assert.Equal(t, img.Width, a.Width)
	assert.Equal(t, "jpeg", a.Format)
	// the source raster is untouched
	assert.Equal(t, "png", img.Format)
}

func TestPNGTextAndEXIFChunks(t *testing.T) {
	data := insertAfterIHDR(encodePNG(t, gradient(8, 8)),
		pngChunk("tEXt", []byte("Software\x00GIMP 2.10")),
		pngChunk("iTXt", []byte("Comment\x00\x00\x00en\x00\x00hello")),
		pngChunk("eXIf", []byte("II*\x00")),
	)

	img, err := NewCodec().Decode(data)
	require.NoError(t, err)

	assert.Equal(t, "GIMP 2.10", img.Container.Text["Software"])
	assert.Equal(t, "hello", img.Container.Text["Comment"])
	assert.Equal(t, []byte("II*\x00"), img.Container.EXIF)
}

func TestFitWithin(t *testing.T) {
	img := FromImage(gradient(1000, 500), "png")

	small := FitWithin(img, 512)
	assert.Equal(t, 512, small.Width)
	assert.Equal(t, 256, small.Height)

	same := FitWithin(small, 512)
	assert.Same(t, small, same)
}

func TestCenterWindowAndGrayPlane(t *testing.T) {
	img := FromImage(gradient(100, 60), "png")

	win := img.CenterWindow(40)
	assert.Equal(t, image.Rect(30, 10, 70, 50), win)

	full := img.CenterWindow(500)
	assert.Equal(t, img.Bounds(), full)

	plane := img.GrayPlane(win)
	require.Len(t, plane, 40*40)
	assert.InDelta(t, img.Luma(30, 10), plane[0], 1e-9)
	assert.InDelta(t, img.Luma(69, 49), plane[len(plane)-1], 1e-9)
}

func TestFromImageUnpremultipliesAlpha(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 1, 1))
	src.SetRGBA(0, 0, color.RGBA{R: 100, G: 50, B: 0, A: 128})

	img := FromImage(src, "png")
	r, g, _ := img.RGB(0, 0)
	assert.InDelta(t, 199, int(r), 1)
	assert.InDelta(t, 99, int(g), 1)
}
