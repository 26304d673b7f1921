package sync

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/betagouv/zacharie-sub006/internal/localstore"
	"github.com/betagouv/zacharie-sub006/internal/tracing"
	"github.com/betagouv/zacharie-sub006/internal/transport"
)

// State defines the connectivity state of the sync engine
type State string

const (
	// StateOffline represents a device with no network
	StateOffline State = "offline"
	// StateReconciling represents a device replaying its pending queue
	StateReconciling State = "reconciling"
	// StateOnline represents a device whose queue has been replayed
	StateOnline State = "online"
)

// ReplayResult summarizes one replay pass over the pending queue
type ReplayResult struct {
	Sent      int
	Remaining int
}

// Engine owns the transition between offline and online. It is the only
// writer that talks to the authoritative store: immediate sends while online,
// queue replay in enqueue order on reconnect. Replay is best-effort: a failed
// envelope stays in the queue and replay continues with the next one, which
// can let a later state land before an earlier dependency — the risk is
// surfaced through logs and the inspectable queue, not hidden.
type Engine struct {
	mu     sync.Mutex
	state  State
	queue  *localstore.Queue
	client *transport.Client
	conn   *transport.Connectivity
	tracer tracing.Tracer
	log    *logrus.Logger

	// onReconciled refreshes the affected collections after a replay pass
	onReconciled func(ctx context.Context)
}

// NewEngine creates a sync engine starting in the offline state
func NewEngine(queue *localstore.Queue, client *transport.Client, conn *transport.Connectivity, tracer tracing.Tracer, log *logrus.Logger) *Engine {
	return &Engine{
		state:  StateOffline,
		queue:  queue,
		client: client,
		conn:   conn,
		tracer: tracer,
		log:    log,
	}
}

// OnReconciled registers the read-through refresh triggered after the queue
// drains (or is exhausted with entries remaining)
func (e *Engine) OnReconciled(hook func(ctx context.Context)) {
	e.onReconciled = hook
}

// State returns the current connectivity state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SetOffline records the explicit offline signal. Reads in flight are allowed
// to fail and fall back to cache; there is no cancellation threaded through.
func (e *Engine) SetOffline() {
	e.mu.Lock()
	e.state = StateOffline
	e.mu.Unlock()
	e.conn.SetOnline(false)
	e.log.Info("Device offline, mutations will be queued")
}

// Reachable reports whether the authoritative store answers at the given
// target. An authorization rejection still proves reachability; only a
// transport-level failure counts as unreachable.
func (e *Engine) Reachable(ctx context.Context, target string) bool {
	_, _, err := e.client.Get(ctx, target, nil)
	return err == nil || err == transport.ErrUnauthorized
}

// SetOnline handles the explicit offline-to-online signal: replay the pending
// queue in enqueue order, then refresh the affected collections.
func (e *Engine) SetOnline(ctx context.Context) (ReplayResult, error) {
	e.mu.Lock()
	e.state = StateReconciling
	e.mu.Unlock()
	e.conn.SetOnline(true)

	result, err := e.Replay(ctx)

	e.mu.Lock()
	e.state = StateOnline
	e.mu.Unlock()

	if e.onReconciled != nil {
		e.onReconciled(ctx)
	}
	return result, err
}

// Replay sends every pending mutation in enqueue order. A successful (or
// duplicate-accepted) send deletes the envelope; any failure leaves it in
// place for the next trigger and replay continues with the next envelope.
func (e *Engine) Replay(ctx context.Context) (ReplayResult, error) {
	txn := e.tracer.StartTransaction("sync-replay")
	defer e.tracer.EndTransaction(txn)

	mutations, err := e.queue.List()
	if err != nil {
		e.tracer.RecordError(txn, err)
		return ReplayResult{}, err
	}

	var result ReplayResult
	for _, m := range mutations {
		span := e.tracer.StartSpan("replay-mutation", txn)
		err := e.send(ctx, m)
		span.End()

		if err != nil {
			// Leave the envelope in the queue and keep going; halting here
			// would block every later mutation behind one failure.
			e.log.WithError(err).WithFields(logrus.Fields{
				"target":      m.Target,
				"method":      m.Method,
				"enqueued_at": m.EnqueuedAt,
			}).Error("Failed to replay mutation, leaving in queue")
			e.tracer.RecordError(txn, err)
			result.Remaining++
			continue
		}

		if err := e.queue.Delete(m.EnqueuedAt); err != nil {
			e.log.WithError(err).Error("Failed to remove replayed mutation from queue")
			result.Remaining++
			continue
		}
		result.Sent++
	}

	e.log.WithFields(logrus.Fields{
		"sent":      result.Sent,
		"remaining": result.Remaining,
	}).Info("Replay pass finished")
	return result, nil
}

// send replays one envelope verbatim and classifies the outcome
func (e *Engine) send(ctx context.Context, m localstore.PendingMutation) error {
	envelope, status, err := e.client.Send(ctx, m.Method, m.Target, m.Headers, m.Payload)
	if err != nil {
		return err
	}
	if transport.IsSuccess(status) {
		return nil
	}
	if transport.IsPermanentRejection(status) {
		// Rejections stay in the queue for operator-visible inspection
		// rather than being silently dropped.
		return &RejectedError{Status: status, Reason: envelope.Error}
	}
	return &TransientError{Status: status}
}

// SendOrQueue delivers one mutation: sent immediately while online, queued
// while offline. An online send that fails transiently is queued instead of
// surfacing a failure; a permanent rejection is returned to the caller.
func (e *Engine) SendOrQueue(ctx context.Context, m localstore.PendingMutation) error {
	if e.State() == StateOnline && e.conn.IsOnline() {
		err := e.send(ctx, m)
		if err == nil {
			return nil
		}
		if rejected, ok := err.(*RejectedError); ok {
			return rejected
		}
		e.log.WithError(err).WithField("target", m.Target).
			Warn("Online send failed, queuing mutation")
	}

	if _, err := e.queue.Enqueue(m); err != nil {
		return err
	}
	return nil
}

// PendingCount returns the number of envelopes still in the queue
func (e *Engine) PendingCount() (int, error) {
	return e.queue.Len()
}
