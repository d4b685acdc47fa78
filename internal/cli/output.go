package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/me/tutordesk/pkg/model"
)

// money formats an amount the way the center quotes prices: 500,000 so'm.
func money(a model.Amount) string {
	return humanize.Comma(int64(a)) + " so'm"
}

func attendanceLabel(status string) string {
	switch status {
	case model.AttendancePresent:
		return "present"
	case model.AttendanceAbsent:
		return "absent"
	default:
		return status
	}
}

func printAttendance(w io.Writer, entries []model.AttendanceEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "  No attendance recorded.")
		return
	}
	present := 0
	fmt.Fprintf(w, "  %-12s  %-6s  %s\n", "DATE", "LESSON", "STATUS")
	for _, e := range entries {
		lesson := "-"
		if e.Lesson > 0 {
			lesson = strconv.Itoa(e.Lesson)
		}
		if e.Present() {
			present++
		}
		fmt.Fprintf(w, "  %-12s  %-6s  %s\n", e.Date, lesson, attendanceLabel(e.Status))
	}
	fmt.Fprintf(w, "  %d of %d lessons attended\n", present, len(entries))
}

func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive number", kind, s)
	}
	return id, nil
}
