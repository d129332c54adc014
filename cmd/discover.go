// cmd/discover.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/SaudiLinux/urlget/internal/core"
	"github.com/SaudiLinux/urlget/internal/core/logger"
	"github.com/SaudiLinux/urlget/internal/modules/dns_attacks"
	"github.com/SaudiLinux/urlget/internal/output"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	discoverTimeout     time.Duration
	discoverConcurrency int
	discoverProbeName   string
	discoverOutputPath  string
	discoverFormat      string
)

var discoverCmd = &cobra.Command{
	Use:   "discover [cidr]",
	Short: "Find DNS servers on a network.",
	Long: `Connects to TCP/53 on every host of the network and confirms each candidate
by resolving a well-known name through it. Only hosts that answer are listed.`,
	Example: `  urlget discover 192.168.1.0/24
  urlget discover 10.0.0.0/22 --timeout 500ms -o servers.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		network := config.Network
		if len(args) == 1 {
			network = args[0]
		}
		if network == "" {
			return fmt.Errorf("%w: a network in CIDR form is required", core.ErrInvalidConfig)
		}

		scanner := dns_attacks.NewDNSServerScanner(network, config.Timeout.Std())
		scanner.Concurrency = config.Concurrency
		scanner.ProbeName = config.ProbeName
		scanner.Log = logger.GetLogger()
		f := cmd.Flags()
		if f.Changed("timeout") {
			scanner.Timeout = discoverTimeout
		}
		if f.Changed("concurrency") {
			scanner.Concurrency = discoverConcurrency
		}
		if f.Changed("probe-name") {
			scanner.ProbeName = discoverProbeName
		}
		if _, err := dns_attacks.HostAddresses(network); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		color.Cyan("\n📡 Scanning %s for DNS servers...", network)
		stopSpinner := core.StartSpinner("probing hosts")
		result, err := scanner.Scan(ctx)
		stopSpinner()
		if err != nil {
			return err
		}
		if len(result.Servers) == 0 {
			color.Yellow("⚠️  No DNS servers found in %s.", network)
		} else {
			color.Green("🎯 Found %d DNS servers in %s!", len(result.Servers), network)
		}

		formatted, err := output.FormatServers(result.Servers, network, discoverFormat)
		if err != nil {
			return err
		}
		path := discoverOutputPath
		if path == "" {
			path = config.Output
		}
		if path != "" {
			if discoverFormat == "console" {
				formatted, _ = output.FormatServers(result.Servers, network, "txt")
			}
			if err := output.WriteOutput(path, formatted); err != nil {
				return err
			}
			color.Cyan("📄 Results saved to %s", path)
			return nil
		}
		fmt.Println(formatted)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(discoverCmd)
	f := discoverCmd.Flags()
	f.DurationVarP(&discoverTimeout, "timeout", "w", core.DefaultProbeTimeout, "Connect and query timeout per host")
	f.IntVarP(&discoverConcurrency, "concurrency", "c", core.DefaultConcurrency, "Hosts probed in parallel")
	f.StringVar(&discoverProbeName, "probe-name", core.DefaultProbeName, "Name resolved to confirm a server")
	f.StringVarP(&discoverOutputPath, "output", "o", "", "Output file to save results.")
	f.StringVarP(&discoverFormat, "format", "F", "console", "Output format: console, json, txt, csv.")
}
