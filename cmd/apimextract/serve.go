package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rflorenc/apim-template-extractor/internal/api"
	"github.com/rflorenc/apim-template-extractor/internal/config"
	"github.com/rflorenc/apim-template-extractor/internal/models"
)

func serveCmd() *cobra.Command {
	var (
		cfg        config.Config
		configFile string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run extractions as jobs behind an HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(&cfg, configFile); err != nil {
				return err
			}
			logger := newLogger(cmd, &cfg)

			server := &api.Server{
				Jobs:     models.NewJobStore(),
				Defaults: cfg,
				Logger:   logger,
			}
			srv := &http.Server{
				Addr:              cfg.Listen,
				Handler:           api.NewRouter(server),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.ListenAndServe()
			}()
			fmt.Fprintf(cmd.OutOrStdout(), "apimextract %s listening on %s\n", version, cfg.Listen)

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			for _, j := range server.Jobs.List() {
				if !j.Done() {
					j.Cancel()
				}
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&cfg.Listen, "listen", "", "HTTP listen address (default "+config.DefaultListen+")")
	cmd.Flags().StringVar(&cfg.ResourceGroup, "resourceGroup", "", "Default resource group")
	cmd.Flags().StringVar(&cfg.SubscriptionID, "subscriptionId", "", "Default subscription")
	cmd.Flags().StringVar(&cfg.Token, "token", "", "Bearer token (default $AZURE_ACCESS_TOKEN, then the Azure CLI)")
	commonFlags(cmd, &cfg, &configFile)
	return cmd
}
