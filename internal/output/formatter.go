// internal/output/formatter.go
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/SaudiLinux/urlget/internal/core"
	"github.com/SaudiLinux/urlget/internal/core/logger"
	"github.com/SaudiLinux/urlget/internal/modules/dns_attacks"
)

// Formats accepted by the Format* functions.
var Formats = []string{"console", "json", "txt", "csv"}

// FormatServers formats discovered DNS servers into the specified format.
func FormatServers(servers []string, network string, outputFormat string) (string, error) {
	log := logger.GetLogger()
	switch outputFormat {
	case "json":
		data := map[string]interface{}{
			"network": network,
			"servers": servers,
		}
		jsonData, err := json.MarshalIndent(data, "", "    ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return string(jsonData), nil
	case "txt":
		return strings.Join(servers, "\n"), nil
	case "csv":
		var b strings.Builder
		writer := csv.NewWriter(&b)
		if err := writer.Write([]string{"server"}); err != nil {
			return "", fmt.Errorf("failed to write CSV header: %w", err)
		}
		for _, s := range servers {
			if err := writer.Write([]string{s}); err != nil {
				return "", fmt.Errorf("failed to write server to CSV: %w", err)
			}
		}
		writer.Flush()
		return b.String(), nil
	case "console":
		if len(servers) > 0 {
			header := fmt.Sprintf("\n--- DNS Servers in %s ---\n", network)
			return header + strings.Join(servers, "\n") + "\n------------------------------------", nil
		}
		return fmt.Sprintf("No DNS servers found in %s.", network), nil
	default:
		log.Errorf("Unsupported output format: %s", outputFormat)
		return "", fmt.Errorf("%w: %s", core.ErrOutputFormat, outputFormat)
	}
}

// FormatZone formats transferred zone records into the specified format.
func FormatZone(records dns_attacks.ZoneRecords, domain string, outputFormat string) (string, error) {
	log := logger.GetLogger()
	rows := records.Rows()
	switch outputFormat {
	case "json":
		data := map[string]interface{}{
			"domain":  domain,
			"records": records,
		}
		jsonData, err := json.MarshalIndent(data, "", "    ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return string(jsonData), nil
	case "txt":
		lines := make([]string, 0, len(rows))
		for _, r := range rows {
			lines = append(lines, fmt.Sprintf("%s %s %s", r[0], r[1], r[2]))
		}
		return strings.Join(lines, "\n"), nil
	case "csv":
		var b strings.Builder
		writer := csv.NewWriter(&b)
		if err := writer.Write([]string{"name", "type", "value"}); err != nil {
			return "", fmt.Errorf("failed to write CSV header: %w", err)
		}
		for _, r := range rows {
			if err := writer.Write(r[:]); err != nil {
				return "", fmt.Errorf("failed to write record to CSV: %w", err)
			}
		}
		writer.Flush()
		return b.String(), nil
	case "console":
		if len(rows) == 0 {
			return fmt.Sprintf("No records transferred for %s.", domain), nil
		}
		var b strings.Builder
		core.RenderRecordTable(&b, "Zone "+domain, rows)
		return b.String(), nil
	default:
		log.Errorf("Unsupported output format: %s", outputFormat)
		return "", fmt.Errorf("%w: %s", core.ErrOutputFormat, outputFormat)
	}
}

// WriteOutput writes content to a specified file.
func WriteOutput(filepath string, content string) error {
	log := logger.GetLogger()
	err := os.WriteFile(filepath, []byte(content), 0644)
	if err != nil {
		log.Errorf("Failed to write output to %s: %v", filepath, err)
		return fmt.Errorf("%w: %s: %v", core.ErrFileWrite, filepath, err)
	}
	return nil
}
