package utils

import (
	"fmt"
	"os"
)

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// RequireFile returns an error naming what the file was expected to be
// when path does not exist.
func RequireFile(kind, path string) error {
	if !FileExists(path) {
		return fmt.Errorf("%s not found: %s", kind, path)
	}
	return nil
}

// FormatError formats an error message with additional context
func FormatError(context string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}
