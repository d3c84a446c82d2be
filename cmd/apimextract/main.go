package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rflorenc/apim-template-extractor/internal/config"
	"github.com/rflorenc/apim-template-extractor/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "apimextract",
		Short:        "Export an API Management service as deployment templates",
		Version:      version,
		SilenceUsage: true,
	}
	cmd.SetVersionTemplate(fmt.Sprintf("apimextract %s (commit: %s, built: %s)\n", version, commit, date))

	cmd.AddCommand(extractCmd(), serveCmd(), kindsCmd())
	return cmd
}

// commonFlags binds the flags shared by extract and serve.
func commonFlags(cmd *cobra.Command, cfg *config.Config, configFile *string) {
	f := cmd.Flags()
	f.StringVar(configFile, "config", "", "Path to config file (YAML)")
	f.StringVar(&cfg.FileFolder, "fileFolder", "", "Folder the templates are written to")
	f.StringVar(&cfg.Endpoint, "endpoint", "", "Management endpoint (default https://management.azure.com)")
	f.StringVar(&cfg.APIVersion, "apiVersion", "", "Management API version")
	f.IntVar(&cfg.Workers, "workers", 0, "Concurrent reads and writes")
	f.IntVar(&cfg.MaxRetries, "maxRetries", 0, "Retries of throttled or failed requests")
	f.DurationVar(&cfg.Timeout, "timeout", 0, "Per-request timeout")
	f.StringVar(&cfg.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	f.StringVar(&cfg.LogFormat, "log-format", "", "Log format: text or json")
}

// loadConfig overlays the config file under the flags and applies defaults.
func loadConfig(cfg *config.Config, configFile string) error {
	if configFile != "" {
		if err := cfg.LoadFile(configFile); err != nil {
			return err
		}
	}
	cfg.ApplyDefaults()
	return nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	lc := cfg.Logging()
	lc.Output = cmd.ErrOrStderr()
	return logging.New(lc)
}
