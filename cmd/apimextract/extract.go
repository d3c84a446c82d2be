package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rflorenc/apim-template-extractor/internal/config"
	"github.com/rflorenc/apim-template-extractor/internal/output"
	"github.com/rflorenc/apim-template-extractor/internal/platform"
)

func extractCmd() *cobra.Command {
	var (
		cfg        config.Config
		configFile string
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract the templates of a service into a folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(&cfg, configFile); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger := newLogger(cmd, &cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := append(cfg.ClientOptions(), platform.WithLogger(logger))
			client := platform.NewClient(cfg.Service(), platform.DefaultTokenSource(cfg.Token), opts...)
			src := platform.NewSource(client, logger)

			info, err := src.Describe(ctx)
			if err != nil {
				return fmt.Errorf("connecting to %s: %w", cfg.Service(), err)
			}
			logger.Info("source service", "stage", "connect", "service", info.Name,
				"location", info.Location, "sku", info.SKU, "gateway", info.GatewayURL)

			summary, err := output.Run(ctx, src, cfg.ExtractOptions(), cfg.FileFolder, logger)
			if err != nil {
				if ctx.Err() == context.Canceled {
					return fmt.Errorf("interrupted: %w", err)
				}
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %d files to %s\n", len(summary.Files), summary.Folder)
			if summary.Master != "" {
				fmt.Fprintf(out, "Master template: %s\n", summary.Master)
			}
			for _, f := range summary.Flags {
				fmt.Fprintf(out, "  DROPPED: %s %q from %s/%s (%s): %s\n", f.Target, f.Key, f.Kind, f.EntityID, f.Source, f.Reason)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.SourceService, "sourceApimName", "", "Name of the service to extract from")
	f.StringVar(&cfg.DestinationService, "destinationApimName", "", "Name of the service the templates deploy to")
	f.StringVar(&cfg.ResourceGroup, "resourceGroup", "", "Resource group of the source service")
	f.StringVar(&cfg.SubscriptionID, "subscriptionId", "", "Subscription of the source service")
	f.StringVar(&cfg.APIName, "apiName", "", "Extract only this API and what it references")
	f.StringVar(&cfg.LinkedTemplatesBaseURL, "linkedTemplatesBaseUrl", "", "Base URL of the linked templates; enables the master template")
	f.StringVar(&cfg.LinkedTemplatesURLQueryString, "linkedTemplatesUrlQueryString", "", "Query string appended to linked template URLs")
	f.StringVar(&cfg.PolicyXMLBaseURL, "policyXMLBaseUrl", "", "Base URL of externalized policy files")
	f.StringVar(&cfg.Token, "token", "", "Bearer token (default $AZURE_ACCESS_TOKEN, then the Azure CLI)")
	commonFlags(cmd, &cfg, &configFile)
	return cmd
}
