package relocator

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
)

// DefaultDPI is assumed when a bitmap does not declare its resolution.
const DefaultDPI = 72.0

const inchesPerMeter = 0.0254

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// ReadDPI returns the horizontal and vertical resolution declared in a PNG
// pHYs chunk or a JPEG JFIF header. ok is false when none is declared.
func ReadDPI(path string) (x, y float64, ok bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, false
	}
	defer f.Close()

	// Resolution metadata lives near the start of the file.
	head := make([]byte, 64*1024)
	n, _ := io.ReadFull(f, head)
	return parseDPI(head[:n])
}

func parseDPI(data []byte) (x, y float64, ok bool) {
	switch {
	case bytes.HasPrefix(data, pngSignature):
		return pngDPI(data[len(pngSignature):])
	case len(data) > 2 && data[0] == 0xFF && data[1] == 0xD8:
		return jfifDPI(data[2:])
	}
	return 0, 0, false
}

// pngDPI walks PNG chunks until pHYs or IDAT.
func pngDPI(data []byte) (float64, float64, bool) {
	for len(data) >= 12 {
		length := int(binary.BigEndian.Uint32(data[0:4]))
		kind := string(data[4:8])
		if length < 0 || len(data) < 12+length {
			return 0, 0, false
		}
		body := data[8 : 8+length]
		switch kind {
		case "pHYs":
			if length < 9 || body[8] != 1 { // unit 1 = metre
				return 0, 0, false
			}
			px := float64(binary.BigEndian.Uint32(body[0:4]))
			py := float64(binary.BigEndian.Uint32(body[4:8]))
			if px == 0 || py == 0 {
				return 0, 0, false
			}
			return px * inchesPerMeter, py * inchesPerMeter, true
		case "IDAT", "IEND":
			return 0, 0, false
		}
		data = data[12+length:]
	}
	return 0, 0, false
}

// jfifDPI reads the density fields of the APP0 JFIF segment.
func jfifDPI(data []byte) (float64, float64, bool) {
	for len(data) >= 4 && data[0] == 0xFF {
		marker := data[1]
		length := int(binary.BigEndian.Uint16(data[2:4]))
		if length < 2 || len(data) < 2+length {
			return 0, 0, false
		}
		seg := data[4 : 2+length]
		if marker == 0xE0 && len(seg) >= 12 && bytes.HasPrefix(seg, []byte("JFIF\x00")) {
			units := seg[7]
			dx := float64(binary.BigEndian.Uint16(seg[8:10]))
			dy := float64(binary.BigEndian.Uint16(seg[10:12]))
			if dx == 0 || dy == 0 {
				return 0, 0, false
			}
			switch units {
			case 1: // dots per inch
				return dx, dy, true
			case 2: // dots per cm
				return dx * 2.54, dy * 2.54, true
			default: // aspect ratio only
				return 0, 0, false
			}
		}
		if marker == 0xDA { // start of scan
			return 0, 0, false
		}
		data = data[2+length:]
	}
	return 0, 0, false
}
