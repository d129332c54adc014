// cmd/serve.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SaudiLinux/urlget/internal/api"
	"github.com/SaudiLinux/urlget/internal/core"
	"github.com/SaudiLinux/urlget/internal/core/logger"
	"github.com/SaudiLinux/urlget/internal/reporting"
	"github.com/SaudiLinux/urlget/internal/resolver"
	"github.com/SaudiLinux/urlget/internal/server"
	"github.com/SaudiLinux/urlget/internal/spoof"
	"github.com/SaudiLinux/urlget/internal/upstream"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	serveInterface     string
	serveIP            string
	servePort          int
	serveTCP           bool
	serveUpstream      []string
	serveUpstreamWait  time.Duration
	serveSpoofFile     string
	serveSpoof         []string
	serveDomains       []string
	serveRedirect      string
	serveTTL           uint32
	serveStatsInterval time.Duration
	serveOutput        string
	serveAdmin         string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the DNS hijacking responder.",
	Long: `Binds a DNS responder that answers the configured names with spoofed
records (subdomains included) and forwards every other query to the upstream
resolver. Runs until interrupted, then prints a summary and optionally saves
a report.`,
	Example: `  urlget serve -f spoof.txt
  urlget serve -d bank.example -d mail.bank.example -r 10.0.0.66
  urlget serve --spoof "evil.com,TXT,v=spf1 -all" --ip 127.0.0.1 -p 5353 --tcp`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := *config
		applyServeFlags(cmd, &cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
		log := logger.GetLogger()

		server.CheckPrivileges(cfg.Port, log)
		addr, err := server.BindAddress(cfg.Interface, cfg.IP, cfg.Port)
		if err != nil {
			return err
		}

		store, err := buildStore(&cfg, log)
		if err != nil {
			return err
		}
		if store.Len() == 0 {
			color.Yellow("⚠️  No spoof records configured; every query will be forwarded.")
		}

		up := upstream.NewClient(cfg.Upstream, cfg.UpstreamTimeout.Std())
		engine := resolver.NewEngine(store, up, resolver.NewStats(), cfg.SpoofTTL, log)
		srv := server.New(server.Options{Addr: addr, TCP: cfg.TCP, StatsInterval: cfg.StatsInterval.Std()}, engine, log)
		if err := srv.Start(); err != nil {
			return err
		}
		color.Green("🕸️  DNS hijacking on %s, forwarding to %v", srv.Addr(), up.Nameservers)

		var admin *api.Server
		if cfg.AdminListen != "" {
			admin = api.New(store, engine.Stats(), cfg.SpoofFile, cfg.AdminOrigins, log)
			if _, err := admin.Start(cfg.AdminListen); err != nil {
				srv.Stop()
				return err
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()
		color.Yellow("\n🛑 Shutting down...")

		if admin != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			admin.Shutdown(shutdownCtx)
			cancel()
		}
		if err := srv.Stop(); err != nil {
			log.Errorf("Stopping DNS server: %v", err)
		}
		srv.Wait()

		snap := engine.Stats().Snapshot()
		core.RenderStatsTable(os.Stdout, "DNS Hijack Summary", snap.Dashboard())
		if records := store.Records(); len(records) > 0 {
			rows := make([][3]string, 0, len(records))
			for _, r := range records {
				rows = append(rows, [3]string{r.Domain, r.Type.String(), r.Value})
			}
			core.RenderRecordTable(os.Stdout, "Spoof Records", rows)
		}

		if cfg.Output != "" {
			report := reporting.HijackSession(time.Now(), srv.Addr().String(), snap, store.Records())
			path, err := report.Save(cfg.Output)
			if err != nil {
				return err
			}
			color.Cyan("📄 Results saved to %s", path)
		}
		return nil
	},
}

// buildStore loads spoof records from the file, inline entries and the
// redirect domain list, in that order.
func buildStore(cfg *core.Config, log *logrus.Logger) (*spoof.Store, error) {
	store := spoof.NewStore(log)
	if cfg.SpoofFile != "" {
		if _, err := store.LoadFromFile(cfg.SpoofFile); err != nil {
			return nil, err
		}
	}
	for _, line := range cfg.Spoof {
		rec, err := spoof.ParseLine(line)
		if err != nil {
			return nil, fmt.Errorf("%w: --spoof %q: %v", core.ErrInvalidConfig, line, err)
		}
		if err := store.AddRecord(rec.Domain, rec.Type.String(), rec.Value); err != nil {
			return nil, err
		}
	}
	if len(cfg.Domains) > 0 && cfg.Redirect == "" {
		return nil, fmt.Errorf("%w: domains given without a redirect address", core.ErrInvalidConfig)
	}
	for _, d := range cfg.Domains {
		if err := store.AddRecord(d, "A", cfg.Redirect); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func applyServeFlags(cmd *cobra.Command, cfg *core.Config) {
	f := cmd.Flags()
	if f.Changed("interface") {
		cfg.Interface = serveInterface
	}
	if f.Changed("ip") {
		cfg.IP = serveIP
	}
	if f.Changed("port") {
		cfg.Port = servePort
	}
	if f.Changed("tcp") {
		cfg.TCP = serveTCP
	}
	if f.Changed("upstream") {
		cfg.Upstream = serveUpstream
	}
	if f.Changed("upstream-timeout") {
		cfg.UpstreamTimeout = core.Duration(serveUpstreamWait)
	}
	if f.Changed("spoof-file") {
		cfg.SpoofFile = serveSpoofFile
	}
	if f.Changed("spoof") {
		cfg.Spoof = append(cfg.Spoof, serveSpoof...)
	}
	if f.Changed("domain") {
		cfg.Domains = serveDomains
	}
	if f.Changed("redirect") {
		cfg.Redirect = serveRedirect
	}
	if f.Changed("ttl") {
		cfg.SpoofTTL = serveTTL
	}
	if f.Changed("stats-interval") {
		cfg.StatsInterval = core.Duration(serveStatsInterval)
	}
	if f.Changed("output") {
		cfg.Output = serveOutput
	}
	if f.Changed("admin") {
		cfg.AdminListen = serveAdmin
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.StringVarP(&serveInterface, "interface", "i", "", "Network interface to bind (its first IPv4 address)")
	f.StringVar(&serveIP, "ip", "", "IP address to bind (overrides --interface)")
	f.IntVarP(&servePort, "port", "p", core.DefaultPort, "Port to listen on")
	f.BoolVar(&serveTCP, "tcp", false, "Also serve DNS over TCP")
	f.StringSliceVarP(&serveUpstream, "upstream", "u", nil, "Upstream resolvers (default: /etc/resolv.conf)")
	f.DurationVar(&serveUpstreamWait, "upstream-timeout", core.DefaultUpstreamTimeout, "Timeout for forwarded queries")
	f.StringVarP(&serveSpoofFile, "spoof-file", "f", "", "File of domain,type,value spoof records")
	f.StringArrayVarP(&serveSpoof, "spoof", "s", nil, "Spoof record domain,type,value (repeatable)")
	f.StringSliceVarP(&serveDomains, "domain", "d", nil, "Domains to redirect (needs --redirect)")
	f.StringVarP(&serveRedirect, "redirect", "r", "", "IPv4 address the --domain list resolves to")
	f.Uint32Var(&serveTTL, "ttl", core.DefaultSpoofTTL, "TTL of spoofed records")
	f.DurationVar(&serveStatsInterval, "stats-interval", core.DefaultStatsInterval, "How often to log statistics")
	f.StringVarP(&serveOutput, "output", "o", "", "Save a report on shutdown (.txt, .json or .html)")
	f.StringVar(&serveAdmin, "admin", "", "Serve the admin HTTP API on this address, e.g. 127.0.0.1:8053")
}
