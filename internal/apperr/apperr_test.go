package apperr

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"testing"
)

func TestIsThroughWrapping(t *testing.T) {
	base := NotFound("abc")
	wrapped := fmt.Errorf("deleting inspection: %w", base)

	if !Is(wrapped, CodeNotFound) {
		t.Error("expected wrapped error to match CodeNotFound")
	}
	if Is(wrapped, CodeValidation) {
		t.Error("did not expect wrapped error to match CodeValidation")
	}
	if Is(errors.New("plain"), CodeNotFound) {
		t.Error("plain errors carry no code")
	}
	if got := CodeOf(wrapped); got != CodeNotFound {
		t.Errorf("CodeOf = %q, want %q", got, CodeNotFound)
	}
}

func TestValidationMessageIsSorted(t *testing.T) {
	err := Validation(map[string]string{
		"qualityInspector": "required",
		"invoiceNumber":    "required",
	})
	want := "[VALIDATION_ERROR] invoiceNumber: required; qualityInspector: required"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
	if err.Fields["invoiceNumber"] != "required" {
		t.Errorf("expected field detail, got %v", err.Fields)
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("disk on fire")
	err := Wrap(CodeExportFailed, "writing summary", cause)
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to reach the cause")
	}
}

func TestDiskFull(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("permission denied"), false},
		{&os.PathError{Op: "open", Path: "/x", Err: syscall.ENOSPC}, true},
		{fmt.Errorf("writing: %w", syscall.ENOSPC), true},
		{errors.New("sqlite: database or disk is full (13)"), true},
	}
	for _, tt := range tests {
		if got := DiskFull(tt.err); got != tt.want {
			t.Errorf("DiskFull(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}

	err := StorageFull(syscall.ENOSPC)
	if !Is(err, CodeStorageFull) || !strings.Contains(err.Message, StorageFullGuidance) {
		t.Errorf("unexpected storage full error %v", err)
	}
}
