package calendar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//syllabus//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:lecture-1@syllabus\r\n" +
	"DTSTART:20240108T090000Z\r\n" +
	"DTEND:20240108T103000Z\r\n" +
	"SUMMARY:Lecture 1\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:midterm@syllabus\r\n" +
	"DTSTART:20240304T090000Z\r\n" +
	"SUMMARY:Midterm\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR"

func TestNormalizePlainCalendar(t *testing.T) {
	got := Normalize(sampleICS)
	assert.True(t, got.Delimited)
	assert.Equal(t, sampleICS, string(got.Data))
	assert.Equal(t, 2, got.Events)
}

func TestNormalizeStripsFence(t *testing.T) {
	got := Normalize("```ics\n" + sampleICS + "\n```\n")
	require.True(t, got.Delimited)
	assert.Equal(t, sampleICS, string(got.Data))

	got = Normalize("```\n" + sampleICS + "\n```")
	assert.Equal(t, sampleICS, string(got.Data))
}

func TestNormalizeWithoutMarkersKeepsBytes(t *testing.T) {
	got := Normalize("Sorry, I cannot produce a calendar.")
	assert.False(t, got.Delimited)
	assert.Equal(t, "Sorry, I cannot produce a calendar.", string(got.Data))
	assert.Equal(t, -1, got.Events)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "CS 101 Intro_calendar.ics", Filename("CS 101: Intro!"))
	assert.Equal(t, "Bio-Chem_2_calendar.ics", Filename("Bio-Chem_2"))
	assert.Equal(t, "course_calendar.ics", Filename("../\";"))
	assert.Equal(t, "course_calendar.ics", Filename(""))
}
