package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by stores when a referenced record does not exist.
var ErrNotFound = errors.New("not found")

// FieldError describes one missing or malformed input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Field + " " + e.Message
}

// ValidationError collects every field problem found in one input.
type ValidationError struct {
	Fields []FieldError
}

// Add records a problem with field.
func (v *ValidationError) Add(field, message string) {
	v.Fields = append(v.Fields, FieldError{Field: field, Message: message})
}

// Merge appends the problems of other, if it is a ValidationError.
func (v *ValidationError) Merge(other error) {
	var verr *ValidationError
	if errors.As(other, &verr) {
		v.Fields = append(v.Fields, verr.Fields...)
	}
}

// OrNil returns v as an error when it holds at least one problem.
func (v *ValidationError) OrNil() error {
	if len(v.Fields) == 0 {
		return nil
	}
	return v
}

func (v *ValidationError) Error() string {
	parts := make([]string, len(v.Fields))
	for i, f := range v.Fields {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(parts, "; "))
}
