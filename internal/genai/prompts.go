package genai

import (
	"fmt"
	"strings"
)

const (
	validatePrompt = "Is the following document a course syllabus? Answer only \"yes\" or \"no\"."

	summarizePrompt = "Summarize the following course syllabus concisely. Cover the course topics, " +
		"grading breakdown, major assignments and exams, and course policies."

	resourcesPrompt = "From the following course syllabus, list the instructors and their contact details, " +
		"required and recommended textbooks, and any other supplementary materials or study resources. " +
		"Format the answer as a markdown bullet list."
)

func calendarPrompt(req CalendarRequest) string {
	var b strings.Builder
	b.WriteString("Generate an iCalendar (ICS) document for the following course syllabus. ")
	b.WriteString("Include weekly class meetings, assignment deadlines, exams and office hours as VEVENT entries. ")
	b.WriteString("Reply with the ICS content only, starting with BEGIN:VCALENDAR and ending with END:VCALENDAR.\n")
	fmt.Fprintf(&b, "Course name: %s\n", req.CourseName)
	if req.Start != nil {
		fmt.Fprintf(&b, "Semester start date: %s\n", req.Start.Format("2006-01-02"))
	}
	if req.End != nil {
		fmt.Fprintf(&b, "Semester end date: %s\n", req.End.Format("2006-01-02"))
	}
	return b.String()
}

// IsAffirmative reports whether a validation reply contains "yes".
func IsAffirmative(reply string) bool {
	return strings.Contains(strings.ToLower(reply), "yes")
}
