// Package calendar post-processes AI generated iCalendar text.
package calendar

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	ics "github.com/arran4/golang-ical"
)

const (
	beginMarker = "BEGIN:VCALENDAR"
	endMarker   = "END:VCALENDAR"

	// ContentType is served with calendar downloads.
	ContentType = "text/calendar; charset=utf-8"
)

// Normalized is the outcome of Normalize.
type Normalized struct {
	Data []byte
	// Delimited is true when Data opens and closes with the calendar markers.
	Delimited bool
	// Events is the VEVENT count when the payload parses; -1 otherwise.
	Events int
}

// Normalize strips a surrounding code fence and checks for the VCALENDAR
// markers. The bytes are returned either way; the caller decides whether a
// payload without markers is kept.
func Normalize(raw string) Normalized {
	text := stripFence(strings.TrimSpace(raw))
	out := Normalized{Data: []byte(text), Events: -1}

	out.Delimited = strings.Contains(text, beginMarker) && strings.Contains(text, endMarker)
	if !out.Delimited {
		return out
	}
	if n, err := CountEvents(out.Data); err == nil {
		out.Events = n
	}
	return out
}

func stripFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	// Drop the opening fence together with an info string such as ```ics.
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	} else {
		text = strings.TrimPrefix(text, "```")
	}
	text = strings.TrimRightFunc(text, unicode.IsSpace)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// CountEvents parses data and returns the number of VEVENT components.
func CountEvents(data []byte) (int, error) {
	cal, err := ics.ParseCalendar(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("parse calendar: %w", err)
	}
	return len(cal.Events()), nil
}

// SafeName keeps only letters, digits, spaces, hyphens and underscores of a
// course name, falling back to "course".
func SafeName(courseName string) string {
	var b strings.Builder
	for _, r := range courseName {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	safe := strings.TrimSpace(b.String())
	if safe == "" {
		safe = "course"
	}
	return safe
}

// Filename is the calendar download name for a course.
func Filename(courseName string) string {
	return SafeName(courseName) + "_calendar.ics"
}
