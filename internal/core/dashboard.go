package core

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/table"
)

// DashboardStats is the plain-value view of the responder counters.
type DashboardStats struct {
	Requests  uint64
	Spoofed   uint64
	Forwarded uint64
	Errors    uint64
	StartTime time.Time
}

// RenderStatsTable writes the responder counters as a table.
func RenderStatsTable(w io.Writer, title string, stats DashboardStats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleColoredBright)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Requests", "Spoofed", "Forwarded", "Errors", "Uptime"})
	uptime := "-"
	if !stats.StartTime.IsZero() {
		uptime = time.Since(stats.StartTime).Truncate(time.Second).String()
	}
	t.AppendRow(table.Row{stats.Requests, stats.Spoofed, stats.Forwarded, stats.Errors, uptime})
	t.Render()
}

// RenderRecordTable writes name/type/value rows, e.g. a transferred zone or
// the spoof records in force.
func RenderRecordTable(w io.Writer, title string, rows [][3]string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Name", "Type", "Value"})
	for _, r := range rows {
		t.AppendRow(table.Row{r[0], r[1], r[2]})
	}
	t.Render()
}

// StartSpinner shows a spinner on stderr until the returned func is called.
func StartSpinner(suffix string) func() {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " " + suffix
	s.Start()
	return s.Stop
}

func formatCounter(name string, v uint64) string {
	return fmt.Sprintf("%s=%d", name, v)
}

// String renders a one-line summary.
func (s DashboardStats) String() string {
	return fmt.Sprintf("%s %s %s %s",
		formatCounter("requests", s.Requests),
		formatCounter("spoofed", s.Spoofed),
		formatCounter("forwarded", s.Forwarded),
		formatCounter("errors", s.Errors))
}
