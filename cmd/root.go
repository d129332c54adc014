// cmd/root.go
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/SaudiLinux/urlget/internal/core"
	"github.com/SaudiLinux/urlget/internal/core/logger"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	version    = "1.0.0"
	configPath string
	logFile    string
	config     *core.Config
	logCloser  io.Closer
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "urlget",
	Short: "URLGET: DNS hijacking and DNS attack toolkit.",
	Long: `URLGET runs a DNS responder that answers chosen names with forged records
and forwards everything else to a real resolver. It also carries the DNS
attacks that go with it: resolver discovery on a network, zone transfer
(AXFR) testing and resolver cache poisoning.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch {
		case verbose:
			logger.SetupLogger("debug")
		case config.LogLevel != "":
			logger.SetupLogger(config.LogLevel)
		default:
			logger.SetupLogger("info")
		}
		if logFile == "" {
			logFile = config.LogFile
		}
		if logFile != "" {
			c, err := logger.AddFileOutput(logFile)
			if err != nil {
				return err
			}
			logCloser = c
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	printBanner()
	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func loadConfigOrExit() {
	cfg := &core.Config{}
	if configPath != "" {
		loaded, err := core.LoadConfig(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	cfg.ApplyDefaults()
	config = cfg
}

func printBanner() {
	banner := `
   __  ______  __    ____________________
  / / / / __ \/ /   / ____/ ____/_  __/
 / / / / /_/ / /   / / __/ __/   / /
/ /_/ / _, _/ /___/ /_/ / /___  / /
\____/_/ |_/_____/\____/_____/ /_/
`
	color.Red(banner)
	color.Green("URLGET v%s - DNS hijacking and attack toolkit", version)
	color.Yellow("https://github.com/SaudiLinux\n")
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output for debugging.")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVarP(&logFile, "log", "l", "", "Also write log output to this file")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	cobra.OnInitialize(loadConfigOrExit)
}
