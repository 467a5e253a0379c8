package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/riskfeed/pkg/config"
	"github.com/cuemby/riskfeed/pkg/log"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "riskfeed",
	Short: "riskfeed - real-time fraud demo event feed",
	Long: `riskfeed synthesizes transactions, alerts and investigation cases,
stores them in an embedded database and pushes every new alert with
fresh dashboard metrics to connected clients.

Run "riskfeed serve" to start the server; the other commands talk to a
running server over HTTP.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"riskfeed version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", "", "YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Log in JSON format")

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(alertsCmd)
	rootCmd.AddCommand(casesCmd)
	rootCmd.AddCommand(transactionsCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(feedCmd)
}

// loadConfig reads the config file and environment, then applies any flags
// set on the command line
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-json") {
		cfg.LogJSON, _ = flags.GetBool("log-json")
	}
	if flags.Lookup("data-dir") != nil && flags.Changed("data-dir") {
		cfg.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Lookup("seed-file") != nil && flags.Changed("seed-file") {
		cfg.SeedFile, _ = flags.GetString("seed-file")
	}
	if flags.Lookup("api-addr") != nil && flags.Changed("api-addr") {
		cfg.APIAddr, _ = flags.GetString("api-addr")
	}
	if flags.Lookup("interval") != nil && flags.Changed("interval") {
		cfg.Interval, _ = flags.GetDuration("interval")
	}
	if flags.Lookup("seed") != nil && flags.Changed("seed") {
		cfg.Seed, _ = flags.GetUint64("seed")
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
		Output:     os.Stderr,
	})
	return cfg, nil
}
