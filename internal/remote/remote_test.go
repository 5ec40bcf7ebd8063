package remote

import (
	"errors"
	"fmt"
	"testing"
)

func TestKnownTable(t *testing.T) {
	for _, table := range Tables {
		if !KnownTable(table) {
			t.Errorf("KnownTable(%q) = false", table)
		}
	}
	if KnownTable("bogus") {
		t.Error("KnownTable accepted an unknown table")
	}
}

func TestIsPermissionDenied(t *testing.T) {
	base := &PermissionError{Table: TableChapters, Op: "delete", Err: errors.New("permission denied")}

	if !IsPermissionDenied(base) {
		t.Error("direct PermissionError not detected")
	}
	wrapped := fmt.Errorf("mirror upload: %w", fmt.Errorf("wipe: %w", base))
	if !IsPermissionDenied(wrapped) {
		t.Error("wrapped PermissionError not detected")
	}
	if IsPermissionDenied(errors.New("permission denied")) {
		t.Error("plain error misclassified as permission denial")
	}
	if IsPermissionDenied(nil) {
		t.Error("nil misclassified as permission denial")
	}
}

func TestPermissionErrorUnwrap(t *testing.T) {
	cause := errors.New("rls violation")
	err := &PermissionError{Table: TableSubjects, Op: "insert", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("PermissionError does not unwrap to its cause")
	}
}
