package raster

import (
	"bytes"
	"encoding/binary"
)

// Container carries format-level data observed next to the pixels
type Container struct {
	HasEXIF     bool              // an EXIF block is present (APP1, TIFF IFD or PNG eXIf)
	QuantTables [][]uint16        // JPEG quantization tables in definition order
	EXIF        []byte            // EXIF payload stored outside JPEG/TIFF framing (PNG eXIf)
	Text        map[string]string // PNG tEXt/iTXt keyword -> value
}

// ReadContainer extracts container data for the given decoded format.
// Malformed segments are ignored; the pixels already decoded successfully.
func ReadContainer(format string, data []byte) Container {
	switch format {
	case "jpeg":
		tables, hasEXIF := parseJPEGHeader(data)
		return Container{HasEXIF: hasEXIF, QuantTables: tables}
	case "tiff":
		return Container{HasEXIF: true}
	case "png":
		exif, text := parsePNGChunks(data)
		return Container{HasEXIF: len(exif) > 0, EXIF: exif, Text: text}
	default:
		return Container{}
	}
}

// parseJPEGHeader walks the JPEG marker segments up to the first scan,
// collecting every DQT table and noting whether an EXIF APP1 segment exists
func parseJPEGHeader(data []byte) ([][]uint16, bool) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return nil, false
	}

	var tables [][]uint16
	hasEXIF := false
	pos := 2
	for pos+4 <= len(data) {
		if data[pos] != 0xFF {
			pos++
			continue
		}
		marker := data[pos+1]
		pos += 2

		// fill bytes and standalone markers carry no length
		if marker == 0xFF {
			pos--
			continue
		}
		if marker == 0x01 || (marker >= 0xD0 && marker <= 0xD8) {
			continue
		}
		// start of scan or end of image: no more tables in the header
		if marker == 0xDA || marker == 0xD9 {
			break
		}

		if pos+2 > len(data) {
			break
		}
		segmentLength := int(binary.BigEndian.Uint16(data[pos : pos+2]))
		if segmentLength < 2 || pos+segmentLength > len(data) {
			break
		}

		if marker == 0xE1 && bytes.HasPrefix(data[pos+2:pos+segmentLength], []byte("Exif\x00\x00")) {
			hasEXIF = true
		}

		if marker == 0xDB {
			end := pos + segmentLength
			offset := pos + 2
			for offset < end {
				precision := (data[offset] >> 4) & 0x0F // 0 = 8 bit, 1 = 16 bit
				offset++

				size := 64
				if precision != 0 {
					size = 128
				}
				if offset+size > end {
					break
				}

				table := make([]uint16, 64)
				for i := 0; i < 64; i++ {
					if precision == 0 {
						table[i] = uint16(data[offset+i])
					} else {
						table[i] = binary.BigEndian.Uint16(data[offset+i*2 : offset+i*2+2])
					}
				}
				tables = append(tables, table)
				offset += size
			}
		}

		pos += segmentLength
	}

	return tables, hasEXIF
}

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}

// parsePNGChunks returns the eXIf payload and the uncompressed text chunks
func parsePNGChunks(data []byte) ([]byte, map[string]string) {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, nil
	}

	var exif []byte
	text := make(map[string]string)

	pos := len(pngSignature)
	for pos+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		kind := string(data[pos+4 : pos+8])
		start := pos + 8
		end := start + length
		if length < 0 || end+4 > len(data) {
			break
		}
		chunk := data[start:end]

		switch kind {
		case "eXIf":
			exif = chunk
		case "tEXt":
			if k, v, ok := bytes.Cut(chunk, []byte{0}); ok {
				text[string(k)] = string(v)
			}
		case "iTXt":
			if k, v, ok := parseITXt(chunk); ok {
				text[k] = v
			}
		case "IEND":
			return exif, text
		}

		pos = end + 4 // skip CRC
	}

	return exif, text
}

// parseITXt decodes an uncompressed international text chunk
func parseITXt(chunk []byte) (string, string, bool) {
	keyword, rest, ok := bytes.Cut(chunk, []byte{0})
	if !ok || len(rest) < 2 || rest[0] != 0 {
		return "", "", false
	}
	rest = rest[2:] // compression flag and method
	_, rest, ok = bytes.Cut(rest, []byte{0}) // language tag
	if !ok {
		return "", "", false
	}
	_, rest, ok = bytes.Cut(rest, []byte{0}) // translated keyword
	if !ok {
		return "", "", false
	}
	return string(keyword), string(rest), true
}
