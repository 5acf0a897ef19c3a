// Package types defines core data types and enums for the camera-ready exporter.
package types

import (
	"errors"
)

// Config 应用配置
type Config struct {
	OutputDirectory     string   `json:"output_directory" yaml:"output_directory"`
	AliasMacros         []string `json:"alias_macros" yaml:"alias_macros"`                 // path-prefix macros such as \FigPath
	TrackedEnvironments []string `json:"tracked_environments" yaml:"tracked_environments"` // environments that get numbered include names
	BibliographyFile    string   `json:"bibliography_file" yaml:"bibliography_file"`       // consolidated database name under bib/
	JPEGQuality         int      `json:"jpeg_quality" yaml:"jpeg_quality"`
	LogFile             string   `json:"log_file" yaml:"log_file"`
	LogLevel            string   `json:"log_level" yaml:"log_level"`
}

// Options controls a single export run. It is built from Config plus CLI flags.
type Options struct {
	InputFile           string
	OutputDir           string
	Crop                bool
	Verbose             bool
	Force               bool
	FilterBibliography  bool
	AliasMacros         []string
	TrackedEnvironments []string
	BibliographyFile    string
	JPEGQuality         int
}

// SourceType 源码类型枚举
type SourceType string

const (
	SourceTypeLaTeX SourceType = "latex"
)

// RefactorMode selects which inclusion commands are recognised and whether
// tracked environments name the relocated files.
type RefactorMode int

const (
	// ModeRoot processes the top-level document: includes go to includes/ and are
	// named after the enclosing tracked environment.
	ModeRoot RefactorMode = iota
	// ModeSubFile processes an included sub-document: resources go to
	// resources/<stem>/<basename>.
	ModeSubFile
)

// String returns the string representation of the mode
func (m RefactorMode) String() string {
	switch m {
	case ModeRoot:
		return "root"
	case ModeSubFile:
		return "subfile"
	default:
		return "unknown"
	}
}

// InclusionRecord describes one rewritten inclusion command.
type InclusionRecord struct {
	Source    string `json:"source"`    // file containing the command
	Line      int    `json:"line"`      // 1-based line number in Source
	Command   string `json:"command"`   // includegraphics, input, table, ...
	Context   string `json:"context"`   // e.g. "figure 03b" or "document"
	Original  string `json:"original"`  // target as written in the source
	Rewritten string `json:"rewritten"` // target written to the output
	Missing   bool   `json:"missing"`
	Cropped   bool   `json:"cropped"`
	Bytes     int64  `json:"bytes"`
	Pages     int    `json:"pages,omitempty"` // page count for PDF resources
}

// ErrorCode 错误代码枚举
type ErrorCode string

const (
	ErrUnsupportedInput   ErrorCode = "UNSUPPORTED_INPUT"
	ErrOutputExists       ErrorCode = "OUTPUT_EXISTS"
	ErrStructure          ErrorCode = "STRUCTURE_ERROR"
	ErrConfig             ErrorCode = "CONFIG_ERROR"
	ErrMissingSubDocument ErrorCode = "MISSING_SUBDOCUMENT"
	ErrIO                 ErrorCode = "IO_ERROR"
	ErrBibliography       ErrorCode = "BIB_ERROR"
	ErrInternal           ErrorCode = "INTERNAL_ERROR"
)

// AppError 应用错误
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface for AppError
func (e *AppError) Error() string {
	msg := e.Message
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new AppError with the given code, message, and optional cause
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewAppErrorWithDetails creates a new AppError with details
func NewAppErrorWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// exitCodes maps fatal error codes to process exit codes.
var exitCodes = map[ErrorCode]int{
	ErrUnsupportedInput:   1,
	ErrOutputExists:       2,
	ErrStructure:          3,
	ErrConfig:             4,
	ErrMissingSubDocument: 5,
	ErrIO:                 6,
	ErrBibliography:       6,
	ErrInternal:           7,
}

// ExitCode returns the process exit code for err. Nil maps to 0 and errors
// that are not AppErrors map to the internal error code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		if code, ok := exitCodes[appErr.Code]; ok {
			return code
		}
	}
	return exitCodes[ErrInternal]
}

// CodeOf returns the ErrorCode carried by err, or "" if err is not an AppError.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
