package lifecycle

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrMissingSelection  = errors.New("no personnel selected")
	ErrMissingImage      = errors.New("no ticket image selected for this complaint")
	ErrOcrExtraction     = errors.New("no ticket number found in image")
	ErrUnauthorized      = errors.New("no session")
)

// ValidationError maps each offending form field to its message.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string]string{}}
}

func (e *ValidationError) Add(field, message string) {
	if _, exists := e.Fields[field]; exists {
		return
	}
	e.Fields[field] = message
}

func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

// OrNil returns nil when no field failed so callers can return it directly.
func (e *ValidationError) OrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "validation failed: " + strings.Join(names, ", ")
}

type MissingSelectionError struct {
	ComplaintID int64
}

func (e *MissingSelectionError) Error() string {
	return fmt.Sprintf("complaint %d: %s", e.ComplaintID, ErrMissingSelection)
}

func (e *MissingSelectionError) Unwrap() error {
	return ErrMissingSelection
}

type MissingImageError struct {
	ComplaintID int64
}

func (e *MissingImageError) Error() string {
	return fmt.Sprintf("complaint %d: %s", e.ComplaintID, ErrMissingImage)
}

func (e *MissingImageError) Unwrap() error {
	return ErrMissingImage
}

type OcrExtractionError struct {
	Text string
}

func (e *OcrExtractionError) Error() string {
	return ErrOcrExtraction.Error()
}

func (e *OcrExtractionError) Unwrap() error {
	return ErrOcrExtraction
}

// AuthorizationError means the view needs a session of Role and has none.
type AuthorizationError struct {
	Role string
}

func (e *AuthorizationError) Error() string {
	if e.Role == "" {
		return ErrUnauthorized.Error()
	}
	return fmt.Sprintf("%s session required", e.Role)
}

func (e *AuthorizationError) Unwrap() error {
	return ErrUnauthorized
}
