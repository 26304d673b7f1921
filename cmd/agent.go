package cmd

import (
	"context"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-co-op/gocron/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/betagouv/zacharie-sub006/internal/api"
	"github.com/betagouv/zacharie-sub006/internal/domainstore"
	"github.com/betagouv/zacharie-sub006/internal/localstore"
	syncengine "github.com/betagouv/zacharie-sub006/internal/sync"
	"github.com/betagouv/zacharie-sub006/internal/tracing"
	"github.com/betagouv/zacharie-sub006/internal/transport"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the field agent",
	Long: `Run the on-device field agent: local cache, pending-mutation queue,
sync engine and the local status server. The agent keeps working with no
network and reconciles with the authoritative store when connectivity
returns.`,
	RunE: runAgent,
}

func init() {
	rootCmd.AddCommand(agentCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	log := newLogger()

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// On-device storage; a version mismatch clears it before anything else
	local, err := localstore.Open(cfg.Agent.StorePath, cfg.Agent.Version, log)
	if err != nil {
		return err
	}
	defer local.Close()

	queue := localstore.NewQueue(local)
	conn := &transport.Connectivity{}
	client := transport.NewClient(&cfg.API)

	tracer, err := tracing.NewTracer(cfg.Tracing, log)
	if err != nil {
		log.WithError(err).Warn("Failed to initialize tracer, continuing without tracing")
		tracer = &tracing.NewRelicTracer{}
	}

	engine := syncengine.NewEngine(queue, client, conn, tracer, log)

	store, err := domainstore.NewStore(local, engine, log)
	if err != nil {
		return err
	}

	intercept := transport.NewReadThrough(client, local, conn, log)
	intercept.OnFichesRefresh(cfg.Agent.FichesTarget, func(raw []byte) {
		if err := store.FoldSyncPayload(raw); err != nil {
			log.WithError(err).Warn("Failed to fold fiches refresh")
			return
		}
		log.WithField("badge", store.PendingActionCount()).Debug("Badge recomputed")
	})

	engine.OnReconciled(func(ctx context.Context) {
		payload, fromCache := intercept.Get(ctx, cfg.Agent.FichesTarget, url.Values{})
		if fromCache {
			// Connectivity dropped again mid-refresh; the cached state stands
			return
		}
		if err := store.FoldSyncPayload(payload); err != nil {
			log.WithError(err).Warn("Failed to fold reconciled state")
		}
	})

	// Come online at startup only if the authoritative store answers; a
	// device booting in the field stays offline instead of flapping on every
	// read
	if engine.Reachable(ctx, cfg.Agent.FichesTarget) {
		if result, err := engine.SetOnline(ctx); err != nil {
			log.WithError(err).Warn("Initial reconciliation failed, staying in degraded mode")
		} else if result.Remaining > 0 {
			log.WithField("remaining", result.Remaining).Warn("Some queued mutations were not accepted")
		}
	} else {
		log.Info("Authoritative store unreachable, starting offline")
	}

	g, ctx := errgroup.WithContext(ctx)

	// Local status server (health, sync state, badge)
	server := api.NewServer(&cfg.Server, engine, store, tracer, log)
	g.Go(func() error {
		log.WithField("address", cfg.Server.Address).Info("Starting status server")
		return server.Run(ctx)
	})

	// Periodic fallback: re-trigger replay for envelopes left behind by a
	// failed pass, and reconnect a device that started (or went) offline
	g.Go(func() error {
		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}
		_, err = scheduler.NewJob(
			gocron.DurationJob(cfg.Agent.SyncInterval),
			gocron.NewTask(func() {
				switch engine.State() {
				case syncengine.StateOnline:
					if _, err := engine.Replay(ctx); err != nil {
						log.WithError(err).Error("Fallback replay failed")
					}
				case syncengine.StateOffline:
					if !engine.Reachable(ctx, cfg.Agent.FichesTarget) {
						return
					}
					if _, err := engine.SetOnline(ctx); err != nil {
						log.WithError(err).Warn("Reconnect reconciliation failed")
					}
				}
			}),
		)
		if err != nil {
			return err
		}
		scheduler.Start()
		<-ctx.Done()
		return scheduler.Shutdown()
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.WithError(err).Error("Agent error")
		return err
	}

	log.Info("Agent shutting down gracefully")
	return nil
}
