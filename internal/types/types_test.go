package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError(t *testing.T) {
	cause := errors.New("permission denied")
	err := NewAppErrorWithDetails(ErrIO, "failed to write output", "final/main.tex", cause)

	if got := err.Error(); got != "failed to write output: final/main.tex: permission denied" {
		t.Errorf("unexpected message %q", got)
	}
	if !errors.Is(err, cause) {
		t.Error("AppError does not unwrap to its cause")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"unsupported input", NewAppError(ErrUnsupportedInput, "bad", nil), 1},
		{"output exists", NewAppError(ErrOutputExists, "exists", nil), 2},
		{"structure", NewAppError(ErrStructure, "unbalanced", nil), 3},
		{"config", NewAppError(ErrConfig, "bad config", nil), 4},
		{"missing sub-document", NewAppError(ErrMissingSubDocument, "missing", nil), 5},
		{"wrapped", fmt.Errorf("run: %w", NewAppError(ErrMissingSubDocument, "missing", nil)), 5},
		{"plain error", errors.New("boom"), 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRefactorModeString(t *testing.T) {
	if ModeRoot.String() != "root" || ModeSubFile.String() != "subfile" {
		t.Error("unexpected mode names")
	}
}
