// Package scan checks uploads with clamd before they are staged.
package scan

import (
	"errors"
	"fmt"
	"io"

	"github.com/dutchcoders/go-clamd"
)

// ErrInfected is returned when clamd reports a signature match.
var ErrInfected = errors.New("malicious file detected")

// Scanner inspects an upload stream.
type Scanner interface {
	Scan(r io.Reader) error
}

// New returns a clamd scanner, or a Noop when addr is empty.
func New(addr string) Scanner {
	if addr == "" {
		return Noop{}
	}
	return &ClamdScanner{client: clamd.NewClamd(addr)}
}

// Noop accepts everything.
type Noop struct{}

// Scan implements Scanner.
func (Noop) Scan(io.Reader) error { return nil }

// ClamdScanner streams uploads to a clamd daemon.
type ClamdScanner struct {
	client *clamd.Clamd
}

// Scan returns ErrInfected for a match and a wrapped error when clamd fails.
func (s *ClamdScanner) Scan(r io.Reader) error {
	abortChan := make(chan bool)
	defer close(abortChan)

	scanChan, err := s.client.ScanStream(r, abortChan)
	if err != nil {
		return fmt.Errorf("scan stream: %w", err)
	}

	var verdict error
	for result := range scanChan {
		switch result.Status {
		case clamd.RES_OK:
		case clamd.RES_FOUND:
			verdict = fmt.Errorf("%w: %s", ErrInfected, result.Description)
		default:
			if verdict == nil {
				verdict = fmt.Errorf("clamd %s: %s", result.Status, result.Description)
			}
		}
	}
	return verdict
}
