package errors

import (
	"fmt"
	"net/http"
)

// LoadErrorKind classifies a load failure.
type LoadErrorKind string

const (
	// KindDecode marks malformed or unsupported byte content for the
	// declared format.
	KindDecode LoadErrorKind = "decode"
	// KindEmptySource marks a zero-byte input.
	KindEmptySource LoadErrorKind = "empty_source"
	// KindUnsupportedFormat marks a declared format that is not recognized.
	KindUnsupportedFormat LoadErrorKind = "unsupported_format"
	// KindArchive marks a container that could not be opened at all.
	KindArchive LoadErrorKind = "archive"
)

// LoadError is a load failure carried as data. The loader returns it inside
// load results and archive entries instead of propagating an error across
// the component boundary, so a caller always gets a definite outcome.
type LoadError struct {
	Kind   LoadErrorKind `json:"kind"`
	Format string        `json:"format"`
	Reason string        `json:"reason"`
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Format, e.Reason)
}

// NewDecodeError reports malformed content for the attempted format.
func NewDecodeError(format, reason string) *LoadError {
	return &LoadError{Kind: KindDecode, Format: format, Reason: reason}
}

// NewDecodeErrorf reports malformed content with a formatted reason.
func NewDecodeErrorf(format, reasonFmt string, args ...any) *LoadError {
	return NewDecodeError(format, fmt.Sprintf(reasonFmt, args...))
}

// NewEmptySourceError reports a zero-byte source.
func NewEmptySourceError(format string) *LoadError {
	return &LoadError{Kind: KindEmptySource, Format: format, Reason: "source is empty"}
}

// NewUnsupportedFormatError reports an unrecognized declared format.
func NewUnsupportedFormatError(format string) *LoadError {
	return &LoadError{
		Kind:   KindUnsupportedFormat,
		Format: format,
		Reason: fmt.Sprintf("unsupported format %q", format),
	}
}

// NewArchiveError reports a container that could not be opened.
func NewArchiveError(reason string) *LoadError {
	return &LoadError{Kind: KindArchive, Format: "zip", Reason: reason}
}

// APIError maps a load failure to the HTTP error envelope.
func (e *LoadError) APIError() *APIError {
	switch e.Kind {
	case KindEmptySource:
		return NewWithDetails(http.StatusUnprocessableEntity, "EMPTY_SOURCE", "Uploaded file is empty", e)
	case KindUnsupportedFormat:
		return NewWithDetails(http.StatusUnsupportedMediaType, "UNSUPPORTED_FORMAT", e.Reason, e)
	case KindArchive:
		return NewWithDetails(http.StatusUnprocessableEntity, "ARCHIVE_CORRUPT", "Archive could not be opened", e)
	default:
		return NewWithDetails(http.StatusUnprocessableEntity, "DECODE_FAILED", "File could not be decoded", e)
	}
}
