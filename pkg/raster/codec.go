package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	// ErrDecode means the bytes are not a decodable image
	ErrDecode = errors.New("image decode failed")
	// ErrUnsupportedFormat means the bytes are a recognised image format the codec cannot decode
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

// SupportedFormats lists the formats the standard codec decodes
var SupportedFormats = []string{"jpeg", "png", "gif", "bmp", "tiff", "webp"}

// Codec decodes images and re-encodes them for error level analysis
type Codec interface {
	// Decode turns encoded bytes into an immutable raster
	Decode(data []byte) (*Image, error)

	// Recompress encodes img as JPEG at quality and decodes the result
	Recompress(img *Image, quality int) (*Image, error)
}

// StdCodec is the Codec backed by the Go image packages
type StdCodec struct{}

// NewCodec creates the standard codec
func NewCodec() *StdCodec {
	return &StdCodec{}
}

// Decode implements Codec
func (StdCodec) Decode(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecode)
	}
	if format := sniffUnsupported(data); format != "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if src.Bounds().Empty() {
		return nil, fmt.Errorf("%w: image has no pixels", ErrDecode)
	}

	img := FromImage(src, format)
	img.ByteLength = len(data)
	img.encoded = data
	img.Container = ReadContainer(format, data)

	return img, nil
}

// Recompress implements Codec
func (StdCodec) Recompress(img *Image, quality int) (*Image, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img.ToRGBA(), &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg at quality %d: %w", quality, err)
	}

	src, err := jpeg.Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("decode recompressed jpeg: %w", err)
	}

	out := FromImage(src, "jpeg")
	out.ByteLength = buf.Len()
	return out, nil
}

// sniffUnsupported names image formats recognised by signature that the
// standard codec has no decoder for
func sniffUnsupported(data []byte) string {
	switch {
	case len(data) >= 12 && string(data[4:8]) == "ftyp":
		brand := string(data[8:12])
		switch brand {
		case "heic", "heix", "hevc", "mif1", "msf1":
			return "heif"
		case "avif", "avis":
			return "avif"
		}
	case bytes.HasPrefix(data, []byte("8BPS")):
		return "psd"
	case bytes.HasPrefix(data, []byte{0x00, 0x00, 0x00, 0x0C, 'j', 'P', ' ', ' '}):
		return "jpeg2000"
	case bytes.HasPrefix(data, []byte{0xFF, 0x0A}):
		return "jpegxl"
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	trimmed := bytes.TrimSpace(head)
	if bytes.HasPrefix(trimmed, []byte("<svg")) ||
		(bytes.HasPrefix(trimmed, []byte("<?xml")) && bytes.Contains(trimmed, []byte("<svg"))) {
		return "svg"
	}
	return ""
}
