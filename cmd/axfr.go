// cmd/axfr.go
package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/SaudiLinux/urlget/internal/core"
	"github.com/SaudiLinux/urlget/internal/modules/dns_attacks"
	"github.com/SaudiLinux/urlget/internal/output"
	"github.com/SaudiLinux/urlget/internal/reporting"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	axfrNameservers []string
	axfrTimeout     time.Duration
	axfrOutputPath  string
	axfrFormat      string
)

var axfrCmd = &cobra.Command{
	Use:   "axfr <domain>",
	Short: "Attempt a DNS zone transfer.",
	Long: `Requests the full zone of DOMAIN (AXFR) from the given name servers, or from
every NS of the domain when none are given. A refused transfer is reported,
not treated as an error.`,
	Example: `  urlget axfr example.com
  urlget axfr internal.corp -n 10.0.0.53 -o zone.txt`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		domain := args[0]
		servers := axfrNameservers
		if len(servers) == 0 && config.Nameserver != "" {
			servers = strings.Split(config.Nameserver, ",")
		}

		color.Cyan("\n🗂️  Attempting zone transfer of %s...", domain)
		stopSpinner := core.StartSpinner("requesting AXFR")
		result := dns_attacks.DNSZoneTransfer(domain, servers, axfrTimeout)
		stopSpinner()

		if len(result.Successful) == 0 {
			color.Yellow("⚠️  No name server allowed a transfer of %s (tried %v).", domain, result.Failed)
		}
		for _, ns := range result.Servers {
			records, ok := result.Successful[ns]
			if !ok {
				continue
			}
			color.Red("🚨 %s allowed a zone transfer: %d records", ns, records.Count())
			formatted, err := output.FormatZone(records, domain, axfrFormat)
			if err != nil {
				return err
			}
			fmt.Println(formatted)
		}

		path := axfrOutputPath
		if path == "" {
			path = config.Output
		}
		if path != "" {
			report := reporting.NewReportGenerator(reporting.Entry{Key: "domain", Value: domain})
			for _, ns := range result.Servers {
				if records, ok := result.Successful[ns]; ok {
					report.Add("zone "+ns, records)
				}
			}
			if len(result.Failed) > 0 {
				report.Add("failed", result.Failed)
			}
			saved, err := report.Save(path)
			if err != nil {
				return err
			}
			color.Cyan("📄 Results saved to %s", saved)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(axfrCmd)
	f := axfrCmd.Flags()
	f.StringSliceVarP(&axfrNameservers, "nameserver", "n", nil, "Name servers to ask, host or host:port (default: the domain's NS set)")
	f.DurationVarP(&axfrTimeout, "timeout", "w", 5*time.Second, "Timeout for DNS connections")
	f.StringVarP(&axfrOutputPath, "output", "o", "", "Save the transferred zones (.txt, .json or .html)")
	f.StringVarP(&axfrFormat, "format", "F", "console", "Console format: console, json, txt, csv.")
}
