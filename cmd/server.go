package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ataxihosur-pookie/Milk-delivery-sub000/api"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/internal/telemetry"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/messaging"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the API server",
	Run:   runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) {
	log.Info().Msg("Starting server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := buildStack(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer s.close()

	nrApp, err := telemetry.InitNewRelic(cfg.NewRelic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize New Relic, continuing without tracing")
	}
	defer telemetry.Shutdown(nrApp)

	if cfg.Azure.ConsumeEnabled {
		azureClient, err := messaging.NewAzureClient(cfg.Azure)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Azure Service Bus")
		}
		defer azureClient.Close(context.Background())

		msgProcessor := messaging.NewProcessor(s.engine)
		go func() {
			if err := azureClient.StartConsumers(ctx, cfg.Azure.CommandsQueue, msgProcessor); err != nil {
				log.Error().Err(err).Msg("Commands queue consumer stopped")
			}
		}()
	}

	server := api.NewServer(cfg, s.engine, nrApp)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	}()

	<-ctx.Done()

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
