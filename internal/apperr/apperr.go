// Package apperr defines the error kinds surfaced by the inspection core.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"syscall"
)

// Code identifies an error kind. Callers branch on codes, never on messages.
type Code string

const (
	CodeValidation     Code = "VALIDATION_ERROR"
	CodeNotFound       Code = "NOT_FOUND"
	CodeEmptySelection Code = "EMPTY_SELECTION"
	CodeStorageFull    Code = "STORAGE_FULL"
	CodeAppUnavailable Code = "APP_UNAVAILABLE"
	CodePhotoWrite     Code = "PHOTO_WRITE"
	CodeExportFailed   Code = "EXPORT_FAILED"
	CodeCanceled       Code = "CANCELED"
)

// StorageFullGuidance is shown alongside CodeStorageFull errors.
const StorageFullGuidance = "Free up space on the device, or delete old inspection records and photos, then try again."

// Error is an application error with a code, a user-facing message and an
// optional cause.
type Error struct {
	Code    Code
	Message string
	// Fields maps form field names to problems, for validation errors.
	Fields map[string]string
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap wraps err with a code and message.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Validation builds a validation error from per-field problems.
func Validation(fields map[string]string) *Error {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, k := range names {
		parts = append(parts, k+": "+fields[k])
	}
	return &Error{
		Code:    CodeValidation,
		Message: strings.Join(parts, "; "),
		Fields:  fields,
	}
}

// NotFound builds a not-found error for a record id.
func NotFound(id string) *Error {
	return New(CodeNotFound, fmt.Sprintf("inspection %q not found", id))
}

// DiskFull reports whether err was caused by the device running out of space.
func DiskFull(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ENOSPC) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no space left") || strings.Contains(msg, "database or disk is full")
}

// StorageFull wraps a disk-full cause with the remediation guidance.
func StorageFull(err error) *Error {
	return Wrap(CodeStorageFull, "storage is full. "+StorageFullGuidance, err)
}

// Is reports whether any error in err's chain carries code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the code of the first Error in err's chain, or "" if none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
