// Package export writes a user's results to downloadable formats.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"syllabusai/internal/database"
)

const sheetName = "Courses"

var headers = []string{"Course", "Created", "Semester start", "Semester end", "Calendar", "Summary", "Resources"}

// WriteXLSX renders results as a single-sheet workbook.
func WriteXLSX(w io.Writer, results []database.Result) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		_ = f.SetRowStyle(sheetName, 1, 1, style)
	}

	for r, res := range results {
		row := []any{
			res.CourseName,
			res.CreatedAt.Format("2006-01-02"),
			formatDate(res),
			formatEnd(res),
			yesNo(res.HasCalendar()),
			res.Summary,
			res.Resources,
		}
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return fmt.Errorf("write row %d: %w", r+2, err)
			}
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 30)
	_ = f.SetColWidth(sheetName, "F", "G", 80)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func formatDate(res database.Result) string {
	if res.SemesterStartDate == nil {
		return ""
	}
	return res.SemesterStartDate.Format("2006-01-02")
}

func formatEnd(res database.Result) string {
	if res.SemesterEndDate == nil {
		return ""
	}
	return res.SemesterEndDate.Format("2006-01-02")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
