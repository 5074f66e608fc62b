package upload

import (
	"fmt"
	"net/http"
)

// ValidationError rejects an upload before any storage write.
type ValidationError struct {
	Code    string // "too_large" or "unsupported_type"
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate checks an upload payload against the size limit and the accepted
// image types. The returned content type is sniffed from the payload bytes,
// not taken from the client's declared type.
func Validate(data []byte, maxBytes int64) (string, error) {
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return "", &ValidationError{
			Code:    "too_large",
			Message: fmt.Sprintf("payload of %d bytes exceeds limit of %d", len(data), maxBytes),
		}
	}

	contentType := http.DetectContentType(data)
	if _, ok := extensions[contentType]; !ok {
		return "", &ValidationError{
			Code:    "unsupported_type",
			Message: fmt.Sprintf("content type %s is not an accepted image format", contentType),
		}
	}

	return contentType, nil
}
