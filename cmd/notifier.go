package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/betagouv/zacharie-sub006/config"
	"github.com/betagouv/zacharie-sub006/internal/api"
	"github.com/betagouv/zacharie-sub006/internal/db"
	"github.com/betagouv/zacharie-sub006/internal/model"
	"github.com/betagouv/zacharie-sub006/internal/notify"
	"github.com/betagouv/zacharie-sub006/internal/repository"
	"github.com/betagouv/zacharie-sub006/internal/tracing"
)

var notifierCmd = &cobra.Command{
	Use:   "notifier",
	Short: "Run the notification dispatch worker",
	Long: `Run the server-side notification dispatch gate: at-most-once guard per
(subject, kind, channel) and a globally rate-limited delivery worker.`,
	RunE: runNotifier,
}

var disabledRedis = config.RedisConfig{Enabled: false}

func init() {
	rootCmd.AddCommand(notifierCmd)
}

func runNotifier(cmd *cobra.Command, args []string) error {
	log := newLogger()

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	database, err := db.Connect(&cfg.Database, log)
	if err != nil {
		return err
	}
	if err := db.Migrate(database); err != nil {
		return err
	}

	logRepo := repository.NewNotificationLogRepository(database)
	hopRepo := repository.NewIntermediaireRepository(database)

	guardCache, err := notify.NewRedisGuardCache(&cfg.Redis)
	if err != nil {
		log.WithError(err).Warn("Failed to initialize Redis guard cache, continuing without caching")
		guardCache, _ = notify.NewRedisGuardCache(&disabledRedis)
	}

	tracer, err := tracing.NewTracer(cfg.Tracing, log)
	if err != nil {
		log.WithError(err).Warn("Failed to initialize tracer, continuing without tracing")
		tracer = &tracing.NewRelicTracer{}
	}

	transports := map[model.NotificationChannel]notify.Transport{
		model.ChannelEmail: &notify.LogEmailTransport{From: cfg.Notify.EmailFrom, Log: log},
	}
	if cfg.ServiceBus.ConnectionString != "" {
		push, err := notify.NewServiceBusPushTransport(&cfg.ServiceBus)
		if err != nil {
			return err
		}
		transports[model.ChannelPush] = push
	} else {
		log.Warn("No Service Bus connection string, push channel disabled")
	}

	gate := notify.NewGate(logRepo, guardCache, transports, cfg.Notify.Interval, tracer, log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return gate.Run(ctx)
	})

	// Ingest API the field agents replay their hop mutations against
	ingest := api.NewIngestServer(&cfg.Server, hopRepo, gate, tracer, log)
	g.Go(func() error {
		log.WithField("address", cfg.Server.Address).Info("Starting ingest server")
		return ingest.Run(ctx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.WithError(err).Error("Notifier error")
		return err
	}

	log.Info("Notifier shutting down gracefully")
	return nil
}
