// internal/reporting/report_gen.go
package reporting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/SaudiLinux/urlget/internal/core"
	"github.com/SaudiLinux/urlget/internal/core/logger"
	"github.com/SaudiLinux/urlget/internal/resolver"
	"github.com/SaudiLinux/urlget/internal/spoof"
	"github.com/sirupsen/logrus"
)

// ToolName heads every report.
const ToolName = "URLGET"

const rule = "============================================================"

// Entry is one line of a report. Non-string values are written as JSON.
type Entry struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// Line renders the entry as a single line.
func (e Entry) Line() string {
	switch v := e.Value.(type) {
	case string:
		return e.Key + ": " + v
	case fmt.Stringer:
		return e.Key + ": " + strings.ReplaceAll(strings.TrimSpace(v.String()), "\n", " | ")
	}
	b, err := marshalJSON(e.Value, "")
	if err != nil {
		return fmt.Sprintf("%s: %v", e.Key, e.Value)
	}
	return e.Key + ": " + string(b)
}

// marshalJSON encodes v without escaping <, > and &; values are written
// verbatim to text and escaped once more for HTML.
func marshalJSON(v interface{}, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ReportGenerator collects entries and writes them as a text, JSON or HTML
// report.
type ReportGenerator struct {
	entries []Entry
	log     *logrus.Logger
	now     func() time.Time
}

// NewReportGenerator creates a generator holding entries.
func NewReportGenerator(entries ...Entry) *ReportGenerator {
	return &ReportGenerator{
		entries: entries,
		log:     logger.GetLogger(),
		now:     time.Now,
	}
}

// Add appends an entry.
func (r *ReportGenerator) Add(key string, value interface{}) {
	r.entries = append(r.entries, Entry{Key: key, Value: value})
}

// Entries returns the collected entries.
func (r *ReportGenerator) Entries() []Entry { return r.entries }

// DefaultReportName is the file name used when no path is given.
func DefaultReportName(t time.Time) string {
	return fmt.Sprintf("urlget_results_%s.txt", t.Format("20060102_150405"))
}

// Save writes the report in the format implied by the extension of path
// (.json, .html/.htm, anything else is text) and returns the path written.
func (r *ReportGenerator) Save(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return path, r.GenerateJSONReport(path)
	case ".html", ".htm":
		return path, r.GenerateHTMLReport(path)
	default:
		return r.SaveResults(path)
	}
}

// SaveResults writes the text report: a fixed header with the tool name and
// generation time, a blank line, then one line per entry. An empty path
// picks a timestamped name in the working directory.
func (r *ReportGenerator) SaveResults(path string) (string, error) {
	now := r.now()
	if path == "" {
		path = DefaultReportName(now)
	}

	var b strings.Builder
	b.WriteString(rule + "\n")
	b.WriteString(ToolName + " - Scan Results\n")
	b.WriteString("Date: " + now.Format("2006-01-02 15:04:05") + "\n")
	b.WriteString(rule + "\n\n")
	for _, e := range r.entries {
		b.WriteString(e.Line() + "\n")
	}

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		r.log.Errorf("Failed to write results to %s: %v", path, err)
		return "", fmt.Errorf("%w: %s: %v", core.ErrFileWrite, path, err)
	}
	r.log.Infof("Results saved to %s", path)
	return path, nil
}

// GenerateJSONReport writes the entries as a JSON document.
func (r *ReportGenerator) GenerateJSONReport(path string) error {
	doc := struct {
		Tool      string  `json:"tool"`
		Generated string  `json:"generated"`
		Entries   []Entry `json:"entries"`
	}{ToolName, r.now().Format(time.RFC3339), r.entries}

	data, err := marshalJSON(doc, "    ")
	if err != nil {
		return fmt.Errorf("failed to prepare report data: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		r.log.Errorf("Failed to write JSON report to %s: %v", path, err)
		return fmt.Errorf("%w: %s: %v", core.ErrFileWrite, path, err)
	}
	r.log.Infof("JSON report saved to %s", path)
	return nil
}

// GenerateHTMLReport writes a single page with one section per entry.
func (r *ReportGenerator) GenerateHTMLReport(path string) error {
	r.log.Infof("Generating HTML report and saving to %s...", path)

	var sections strings.Builder
	for _, e := range r.entries {
		body, err := marshalJSON(e.Value, "    ")
		if err != nil {
			return fmt.Errorf("failed to prepare report data: %w", err)
		}
		fmt.Fprintf(&sections, "    <h2>%s</h2>\n    <pre>%s</pre>\n", html.EscapeString(e.Key), html.EscapeString(string(body)))
	}

	htmlContent := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <title>%s Report</title>
    <style>
        body { font-family: sans-serif; margin: 20px; }
        h1 { color: #333; }
        pre { background-color: #eee; padding: 10px; border-radius: 5px; overflow-x: auto; }
    </style>
</head>
<body>
    <h1>%s DNS Report</h1>
    <p>Report generated on: %s</p>
%s</body>
</html>
`, ToolName, ToolName, r.now().Format("2006-01-02 15:04:05 MST"), sections.String())

	if err := os.WriteFile(path, []byte(htmlContent), 0644); err != nil {
		r.log.Errorf("Failed to write HTML report to %s: %v", path, err)
		return fmt.Errorf("%w: %s: %v", core.ErrFileWrite, path, err)
	}
	r.log.Info("HTML report generated successfully.")
	return nil
}

// HijackSession builds the report of a responder run: when it ended, where
// it listened, its counters and the records it served.
func HijackSession(at time.Time, addr string, stats resolver.StatsSnapshot, records []spoof.SpoofRecord) *ReportGenerator {
	lines := make([]string, 0, len(records))
	for _, rec := range records {
		lines = append(lines, rec.String())
	}
	return NewReportGenerator(
		Entry{Key: "timestamp", Value: at.Format("2006-01-02 15:04:05")},
		Entry{Key: "server", Value: addr},
		Entry{Key: "stats", Value: stats},
		Entry{Key: "spoof_records", Value: lines},
	)
}
