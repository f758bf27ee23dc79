package scan

import (
	"strings"
	"testing"
)

func TestNewWithoutAddressIsNoop(t *testing.T) {
	s := New("")
	if _, ok := s.(Noop); !ok {
		t.Fatalf("expected Noop, got %T", s)
	}
	if err := s.Scan(strings.NewReader("anything")); err != nil {
		t.Fatalf("Noop.Scan: %v", err)
	}
}

func TestNewWithAddressUsesClamd(t *testing.T) {
	if _, ok := New("tcp://127.0.0.1:3310").(*ClamdScanner); !ok {
		t.Fatal("expected *ClamdScanner")
	}
}
