package pdf

import (
	"context"
	"errors"
	"testing"
)

func TestDisabledRenderer(t *testing.T) {
	r := New(false)
	if _, err := r.Render(context.Background(), "<p>x</p>"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
	if _, ok := New(true).(*ChromiumRenderer); !ok {
		t.Fatal("expected chromium renderer when enabled")
	}
}
