package runner

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
)

// PrintSummary writes the human-readable run report.
func PrintSummary(w io.Writer, s Summary) {
	headerColor := color.New(color.FgHiCyan, color.Bold).SprintFunc()
	sectionColor := color.New(color.FgHiYellow).SprintFunc()
	labelColor := color.New(color.FgWhite).SprintFunc()
	valueColor := color.New(color.FgHiWhite).SprintFunc()
	successColor := color.New(color.FgGreen, color.Bold).SprintFunc()
	errorColor := color.New(color.FgRed, color.Bold).SprintFunc()

	fmt.Fprintln(w, "\n"+headerColor("[Palinsesto Booker Run Log]"))
	fmt.Fprintf(w, "%s   : %s\n", labelColor("Run ID"), valueColor(s.RunID))
	fmt.Fprintf(w, "%s     : %s\n", labelColor("Mode"), valueColor(string(s.Mode)))
	fmt.Fprintf(w, "%s   : %s\n", labelColor("Course"), valueColor(s.Course))
	slot := s.Date + " " + s.Start
	if s.End != "" {
		slot += "-" + s.End
	}
	fmt.Fprintf(w, "%s     : %s\n", labelColor("Slot"), valueColor(slot))
	fmt.Fprintf(w, "%s : %s\n", labelColor("Duration"), valueColor(s.Finished.Sub(s.Started).Round(time.Millisecond).String()))

	for i, o := range s.Outcomes {
		fmt.Fprintln(w, "\n"+sectionColor("--------------------------------------------------"))
		fmt.Fprintln(w, sectionColor(fmt.Sprintf("[%d] %s", i+1, o.User)))
		fmt.Fprintln(w, sectionColor("--------------------------------------------------"))
		fmt.Fprintf(w, "%s      : %s\n", labelColor("Stage"), valueColor(o.Stage))
		if o.Resolution != "" {
			fmt.Fprintf(w, "%s : %s\n", labelColor("Resolution"), valueColor(o.Resolution))
		}
		if o.SlotID != "" {
			fmt.Fprintf(w, "%s    : %s (%s)\n", labelColor("Slot ID"), valueColor(o.SlotID), o.DayLabel)
			fmt.Fprintf(w, "%s : %s\n", labelColor("Free seats"), valueColor(fmt.Sprint(o.FreeSeats)))
		}
		if o.Reason != "" {
			fmt.Fprintf(w, "%s     : %s\n", labelColor("Reason"), valueColor(o.Reason))
		}
		if o.Attempts > 0 {
			fmt.Fprintf(w, "%s   : %s\n", labelColor("Attempts"), valueColor(fmt.Sprint(o.Attempts)))
		}
		if o.Error != "" {
			fmt.Fprintf(w, "%s      : %s\n", labelColor("Error"), errorColor(o.Error))
		}

		switch {
		case o.Booked:
			fmt.Fprintln(w, successColor("✅ PRENOTATO (BOOKED)"))
		case o.OK:
			fmt.Fprintln(w, successColor("✅ OK"))
		default:
			fmt.Fprintln(w, errorColor("❌ FALLITO (FAILED)"))
		}
	}
}

// WriteJSON writes the summary as a single JSON line.
func WriteJSON(w io.Writer, s Summary) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	_, err = io.WriteString(w, "\n")
	return err
}
