package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/atrium-iot/netsvc/base/config"
	"github.com/atrium-iot/netsvc/base/log"
)

var (
	cfg *config.Config

	configPath  string
	hostname    string
	ifaceName   string
	nameservers []string
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "udns",
	Short: "DNS and mDNS resolver and responder of the node",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig(cmd)
		if err != nil {
			return err
		}
		return log.Start(cfg.LogLevel, os.Stderr)
	},
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "path to the YAML config file")
	flags.StringVar(&hostname, "hostname", "", "own hostname, announced as <hostname>.local")
	flags.StringVarP(&ifaceName, "interface", "i", "", "network interface for mDNS")
	flags.StringSliceVarP(&nameservers, "nameserver", "n", nil, "unicast nameserver, may be repeated (max 4)")
	flags.StringVar(&logLevel, "log", "", "log level (trace, debug, info, warning, error, critical)")
}

// loadConfig loads the config file, if any, and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	c := config.Defaults()
	if configPath != "" {
		var err error
		c, err = config.Load(configPath)
		if err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("hostname") {
		c.Hostname = hostname
	}
	if flags.Changed("interface") {
		c.Interface = ifaceName
	}
	if flags.Changed("nameserver") {
		c.Nameservers = nameservers
	}
	if flags.Changed("log") {
		c.LogLevel = logLevel
	}
	return c, c.Validate()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
