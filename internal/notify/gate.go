package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/betagouv/zacharie-sub006/internal/model"
	"github.com/betagouv/zacharie-sub006/internal/repository"
	"github.com/betagouv/zacharie-sub006/internal/tracing"
)

// defaultQueueDepth bounds the in-process job queue; batch close-outs can
// schedule hundreds of notifications at once.
const defaultQueueDepth = 1024

type job struct {
	SubjectID string
	Kind      string
	Channel   model.NotificationChannel
	Message   Message
}

// Gate is the server-side notification dispatch gate: an at-most-once guard
// per (subject, kind, channel) for the lifetime of the subject, in front of a
// single globally serialized worker that delivers one job per fixed interval.
// The pacing protects third-party delivery APIs from bursts when many fiches
// change state at once. A failed attempt still writes the guard: duplicate
// regulatory notices are worse than an occasional missed one.
type Gate struct {
	repo       repository.NotificationLogRepository
	cache      GuardCache
	transports map[model.NotificationChannel]Transport
	interval   time.Duration
	tracer     tracing.Tracer
	log        *logrus.Logger

	jobs chan job

	// scheduled dedupes triples whose delivery has not been attempted yet
	mu        sync.Mutex
	scheduled map[string]bool
}

// NewGate creates a notification dispatch gate
func NewGate(
	repo repository.NotificationLogRepository,
	cache GuardCache,
	transports map[model.NotificationChannel]Transport,
	interval time.Duration,
	tracer tracing.Tracer,
	log *logrus.Logger,
) *Gate {
	if interval <= 0 {
		interval = time.Second
	}
	return &Gate{
		repo:       repo,
		cache:      cache,
		transports: transports,
		interval:   interval,
		tracer:     tracer,
		log:        log,
		jobs:       make(chan job, defaultQueueDepth),
		scheduled:  make(map[string]bool),
	}
}

func tripleKey(subjectID, kind string, channel model.NotificationChannel) string {
	return fmt.Sprintf("%s|%s|%s", subjectID, kind, channel)
}

// Schedule enqueues one delivery for the (subject, kind, channel) triple. A
// triple already logged, cached or waiting for its attempt is a no-op.
func (g *Gate) Schedule(ctx context.Context, subjectID, kind string, channel model.NotificationChannel, msg Message) error {
	seen, err := g.cache.Seen(ctx, subjectID, kind, channel)
	if err != nil {
		// Log the error but continue to the log itself
		g.log.WithError(err).Warn("Failed to check guard cache")
	}
	if seen {
		return nil
	}

	exists, err := g.repo.Exists(ctx, subjectID, kind, channel)
	if err != nil {
		return err
	}
	if exists {
		if err := g.cache.Mark(ctx, subjectID, kind, channel); err != nil {
			g.log.WithError(err).Warn("Failed to mark guard cache")
		}
		return nil
	}

	key := tripleKey(subjectID, kind, channel)
	g.mu.Lock()
	if g.scheduled[key] {
		g.mu.Unlock()
		return nil
	}
	g.scheduled[key] = true
	g.mu.Unlock()

	select {
	case g.jobs <- job{SubjectID: subjectID, Kind: kind, Channel: channel, Message: msg}:
		return nil
	default:
		g.mu.Lock()
		delete(g.scheduled, key)
		g.mu.Unlock()
		return fmt.Errorf("notification queue full, dropping %s", key)
	}
}

// Run processes exactly one job per interval until the context is cancelled
func (g *Gate) Run(ctx context.Context) error {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	g.log.WithField("interval", g.interval).Info("Notification dispatch gate started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			select {
			case j := <-g.jobs:
				g.process(ctx, j)
			default:
				// Nothing scheduled this tick
			}
		}
	}
}

// process attempts one delivery and writes the guard entry whatever the
// outcome
func (g *Gate) process(ctx context.Context, j job) {
	txn := g.tracer.StartTransaction("notification-dispatch")
	defer g.tracer.EndTransaction(txn)

	transport, ok := g.transports[j.Channel]
	entry := &model.NotificationLog{
		Base:      model.Base{UUID: uuid.New().String()},
		SubjectID: j.SubjectID,
		Kind:      j.Kind,
		Channel:   j.Channel,
		Recipient: j.Message.Recipient,
	}

	if !ok {
		g.log.WithField("channel", j.Channel).Error("No transport for channel")
	} else {
		span := g.tracer.StartSpan("deliver", txn)
		receipt, err := transport.Deliver(ctx, j.Message)
		span.End()

		now := time.Now()
		entry.AttemptedAt = &now
		entry.Receipt = receipt
		entry.Delivered = err == nil

		if err != nil {
			g.log.WithError(err).WithFields(logrus.Fields{
				"subject": j.SubjectID,
				"kind":    j.Kind,
				"channel": j.Channel,
			}).Error("Delivery attempt failed, guard is marked anyway")
			g.tracer.RecordError(txn, err)
		}
	}

	if _, err := g.repo.Create(ctx, entry); err != nil {
		g.log.WithError(err).Error("Failed to write notification log entry")
		g.tracer.RecordError(txn, err)
	}
	if err := g.cache.Mark(ctx, j.SubjectID, j.Kind, j.Channel); err != nil {
		g.log.WithError(err).Warn("Failed to mark guard cache")
	}

	g.mu.Lock()
	delete(g.scheduled, tripleKey(j.SubjectID, j.Kind, j.Channel))
	g.mu.Unlock()
}
