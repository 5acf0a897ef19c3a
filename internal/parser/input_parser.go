// Package parser recognises the LaTeX constructs the exporter cares about and
// validates the user's input file.
package parser

import (
	"os"
	"path/filepath"
	"strings"

	"latex-camera-ready/internal/logger"
	"latex-camera-ready/internal/types"
)

// SupportedExtensions lists the root document extensions accepted by ParseInput.
var SupportedExtensions = []string{".tex"}

// ParseInput checks that input names an existing LaTeX document.
//
// Input type rules:
// - Extension (case-insensitive) must be one of SupportedExtensions → otherwise UNSUPPORTED_INPUT
// - The file must exist and be a regular file → otherwise IO_ERROR
func ParseInput(input string) (types.SourceType, error) {
	logger.Debug("parsing input", logger.String("input", input))

	input = strings.TrimSpace(input)
	if input == "" {
		logger.Warn("parse input failed: empty input")
		return "", types.NewAppError(types.ErrUnsupportedInput, "input file must not be empty", nil)
	}

	if !isSupported(input) {
		logger.Warn("unsupported document format", logger.String("input", input))
		return "", types.NewAppErrorWithDetails(types.ErrUnsupportedInput,
			"unsupported document format", filepath.Base(input), nil)
	}

	info, err := os.Stat(input)
	if err != nil {
		return "", types.NewAppErrorWithDetails(types.ErrIO, "cannot open input", input, err)
	}
	if info.IsDir() {
		return "", types.NewAppErrorWithDetails(types.ErrIO, "input is a directory", input, nil)
	}

	logger.Debug("input identified as LaTeX document", logger.String("input", input))
	return types.SourceTypeLaTeX, nil
}

func isSupported(input string) bool {
	ext := strings.ToLower(filepath.Ext(input))
	for _, supported := range SupportedExtensions {
		if ext == supported {
			return true
		}
	}
	return false
}
