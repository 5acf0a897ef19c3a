// Package editor reads LaTeX and BibTeX sources as UTF-8 text regardless of
// the encoding they were saved in.
package editor

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"

	"latex-camera-ready/internal/logger"
)

// Encoding names reported by DetectEncoding
const (
	EncodingUTF8    = "UTF-8"
	EncodingUTF8BOM = "UTF-8-BOM"
	EncodingUTF16LE = "UTF-16LE"
	EncodingUTF16BE = "UTF-16BE"
	EncodingGBK     = "GBK"
	EncodingLatin1  = "ISO-8859-1"
)

var bomUTF8 = []byte{0xEF, 0xBB, 0xBF}

// DetectEncoding guesses the encoding of data.
// BOMs win; otherwise valid UTF-8, then GBK, then Latin-1 which accepts any input.
func DetectEncoding(data []byte) string {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return EncodingUTF8BOM
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		return EncodingUTF16LE
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		return EncodingUTF16BE
	case utf8.Valid(data):
		return EncodingUTF8
	case isValidGBK(data):
		return EncodingGBK
	default:
		return EncodingLatin1
	}
}

// isValidGBK reports whether data decodes as GBK without replacement characters.
func isValidGBK(data []byte) bool {
	decoded, err := simplifiedchinese.GBK.NewDecoder().Bytes(data)
	if err != nil {
		return false
	}
	return utf8.Valid(decoded) && !bytes.ContainsRune(decoded, utf8.RuneError)
}

func decoderFor(name string) encoding.Encoding {
	switch name {
	case EncodingUTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
	case EncodingUTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM)
	case EncodingGBK:
		return simplifiedchinese.GBK
	case EncodingLatin1:
		return charmap.ISO8859_1
	default:
		return nil
	}
}

// Decode converts data to a UTF-8 string and reports the detected encoding.
func Decode(data []byte) (string, string, error) {
	name := DetectEncoding(data)
	switch name {
	case EncodingUTF8:
		return string(data), name, nil
	case EncodingUTF8BOM:
		return string(data[len(bomUTF8):]), name, nil
	}

	decoded, err := decoderFor(name).NewDecoder().Bytes(data)
	if err != nil {
		return "", name, fmt.Errorf("failed to decode from %s: %w", name, err)
	}
	return string(decoded), name, nil
}

// ReadFile reads path and returns its content as UTF-8.
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	content, name, err := Decode(data)
	if err != nil {
		logger.Error("failed to decode file", err, logger.String("path", path))
		return "", err
	}
	if name != EncodingUTF8 {
		logger.Debug("converted source to UTF-8", logger.String("path", path), logger.String("from", name))
	}
	return content, nil
}

// ReadLines reads path as UTF-8 and splits it into lines. Each line keeps its
// trailing newline (if any) so that rewritten output preserves line endings.
func ReadLines(path string) ([]string, error) {
	content, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return SplitLines(content), nil
}

// SplitLines splits content after every '\n'.
func SplitLines(content string) []string {
	if content == "" {
		return nil
	}
	var lines []string
	reader := bufio.NewReader(strings.NewReader(content))
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			lines = append(lines, line)
		}
		if err != nil {
			break
		}
	}
	return lines
}
