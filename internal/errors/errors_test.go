package errors

import (
	"errors"
	"testing"
)

func TestStoreIOKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := StoreIO("append archive record", cause)

	if !IsStoreIO(err) {
		t.Errorf("expected ErrStoreIO to match, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected cause to remain reachable, got %v", err)
	}
	if StoreIO("noop", nil) != nil {
		t.Errorf("expected nil for nil cause")
	}
}

func TestIsIntegrity(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"duplicate", Wrap(ErrDuplicateTimestamp, "append"), true},
		{"out of order", Wrapf(ErrOutOfOrder, "append %d", 90), true},
		{"not found", ErrNotFound, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsIntegrity(tt.err); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
