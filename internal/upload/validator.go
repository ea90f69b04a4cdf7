package upload

import (
	"fmt"
	"strings"

	"SahakariChat/internal/config"
)

// ValidationError reports a file rejected before any network round trip.
type ValidationError struct {
	Filename string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Filename, e.Reason)
}

// Validate checks a candidate file's extension and size against the
// backend's ingestion rules. The extension match is case-insensitive on the
// substring after the final dot; a file with no extension is rejected.
func Validate(filename string, sizeBytes int64) error {
	dot := strings.LastIndex(filename, ".")
	if dot < 0 || dot == len(filename)-1 {
		return &ValidationError{Filename: filename, Reason: "missing file extension"}
	}

	ext := strings.ToLower(filename[dot:])
	allowed := false
	for _, a := range config.AllowedExtensions {
		if ext == a {
			allowed = true
			break
		}
	}
	if !allowed {
		return &ValidationError{
			Filename: filename,
			Reason: fmt.Sprintf("file type %s not allowed (allowed: %s)",
				ext, strings.Join(config.AllowedExtensions, ", ")),
		}
	}

	if sizeBytes > config.MaxUploadBytes {
		return &ValidationError{
			Filename: filename,
			Reason:   fmt.Sprintf("file exceeds the %d MB limit", config.MaxUploadBytes/(1024*1024)),
		}
	}

	return nil
}
