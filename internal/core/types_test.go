package core

import (
	"errors"
	"testing"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"PROCESSED", StatusProcessed, false},
		{"ARCHIVED", StatusArchived, false},
		{" archived ", StatusArchived, false},
		{"processing", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseStatus(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStatus(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrUnknownStatus) {
			t.Errorf("ParseStatus(%q) error = %v, want UNKNOWN_STATUS", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseOperation(t *testing.T) {
	if op, err := ParseOperation("archive"); err != nil || op != OperationArchive {
		t.Errorf("archive: got %q, %v", op, err)
	}
	if op, err := ParseOperation("unarchive"); err != nil || op != OperationUnarchive {
		t.Errorf("unarchive: got %q, %v", op, err)
	}
	_, err := ParseOperation("freeze")
	if !errors.Is(err, ErrUnrecognizedOperation) {
		t.Errorf("freeze: expected UNRECOGNIZED_OPERATION, got %v", err)
	}
}

func TestOperation_Target(t *testing.T) {
	if OperationArchive.Target() != StatusArchived {
		t.Error("archive should target ARCHIVED")
	}
	if OperationUnarchive.Target() != StatusProcessed {
		t.Error("unarchive should target PROCESSED")
	}
}

func TestLocation_IsZero(t *testing.T) {
	if !(Location{}).IsZero() {
		t.Error("empty location should be zero")
	}
	if (Location{ObjectKey: "k"}).IsZero() {
		t.Error("location with key should not be zero")
	}
}
