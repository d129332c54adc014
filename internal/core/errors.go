// internal/core/errors.go
package core

import "errors"

// Define custom errors for better error handling and classification
var (
	ErrNetworkTimeout        = errors.New("network request timed out")
	ErrNetworkError          = errors.New("network error occurred")
	ErrInvalidConfig         = errors.New("invalid configuration")
	ErrUnsupportedRecordType = errors.New("unsupported record type")
	ErrMalformedRecord       = errors.New("malformed record value")
	ErrBind                  = errors.New("failed to bind listener")
	ErrOutputFormat          = errors.New("unsupported output format")
	ErrFileWrite             = errors.New("failed to write to file")
)
