package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ataxihosur-pookie/Milk-delivery-sub000/domain"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/engine"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/projections"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the projection and audit worker",
	Long:  `Start the worker that projects ledger events into Elasticsearch and audits today's allocations`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	log.Info().Msg("Starting worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	s, err := buildStack(cfg)
	if err != nil {
		return err
	}
	defer s.close()

	if err := checkWorkerStorage(cfg, s.db != nil); err != nil {
		return err
	}

	esClient, err := projections.NewElasticsearchClient(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without projections")
	} else if err := projections.EnsureIndices(esClient, cfg); err != nil {
		return err
	}

	if esClient != nil {
		ledgerProjector := projections.NewLedgerProjector(esClient, s.events, s.repo, cfg)
		processor := projections.NewEventProcessor(s.events, ledgerProjector, cfg.Worker)

		g.Go(func() error {
			log.Info().Msg("Starting projection processor")
			processor.Start()
			<-ctx.Done()
			processor.Stop()
			return nil
		})
	}

	g.Go(func() error {
		return runAuditJob(ctx, s.engine)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker exited properly")
	return nil
}

// runAuditJob compares today's remaining quantities with completed deliveries on a schedule
func runAuditJob(ctx context.Context, eng *engine.Engine) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	interval := cfg.Worker.AuditInterval
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			date := domain.FormatDate(time.Now())
			drifted, err := eng.AuditAll(ctx, date)
			if err != nil {
				log.Error().Err(err).Msg("Failed to audit allocations")
				return
			}
			for _, report := range drifted {
				log.Warn().
					Str("partnerID", report.PartnerID).
					Str("date", report.Date).
					Str("remaining", report.Remaining.String()).
					Str("expected", report.Expected.String()).
					Str("drift", report.Drift.String()).
					Msg("Allocation drift detected")
			}
			log.Info().Str("date", date).Int("drifted", len(drifted)).Msg("Allocation audit finished")
		}),
	)
	if err != nil {
		return err
	}

	scheduler.Start()
	<-ctx.Done()

	return scheduler.Shutdown()
}
