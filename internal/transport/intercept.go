package transport

import (
	"context"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/betagouv/zacharie-sub006/internal/localstore"
)

// ReadThrough intercepts outbound reads: when online it fetches and clones the
// response into the local cache keyed by request identity; when the network
// fails (or is known down) it serves the cached response, then the cached
// application shell, then a synthesized offline envelope. It never returns an
// error to the caller. Non-GET requests are not intercepted here; they belong
// to the sync engine and domain store pairing.
type ReadThrough struct {
	client *Client
	store  *localstore.Store
	conn   *Connectivity
	log    *logrus.Logger

	// fichesTarget is the "list of records relevant to me" target; refreshing
	// it triggers the badge recompute hook.
	fichesTarget   string
	onFichesCached func(raw []byte)
}

// NewReadThrough creates the interception layer
func NewReadThrough(client *Client, store *localstore.Store, conn *Connectivity, log *logrus.Logger) *ReadThrough {
	return &ReadThrough{
		client: client,
		store:  store,
		conn:   conn,
		log:    log,
	}
}

// OnFichesRefresh registers the hook invoked after the fiche-list response for
// the given target has been cached. The hook recomputes the pending-action
// badge count; it is purely derivative and never authoritative.
func (r *ReadThrough) OnFichesRefresh(target string, hook func(raw []byte)) {
	r.fichesTarget = target
	r.onFichesCached = hook
}

// Get evaluates one outbound read. The returned payload is always non-nil;
// fromCache reports whether it was served from the device rather than the
// network.
func (r *ReadThrough) Get(ctx context.Context, target string, query url.Values) (payload []byte, fromCache bool) {
	key := RequestKey("GET", target, query)

	if r.conn.IsOnline() {
		body, status, err := r.client.Get(ctx, target, query)
		switch {
		case err == nil && status >= 200 && status < 300:
			// Only a fresh success may replace the cached snapshot; error
			// bodies must never become the offline fallback.
			if storeErr := r.store.SetResponse(key, body); storeErr != nil {
				// Log the error but continue; the caller still gets the fresh response
				r.log.WithError(storeErr).Warn("Failed to cache response")
			}
			if target == r.fichesTarget && r.onFichesCached != nil {
				r.onFichesCached(body)
			}
			return body, false
		case err == ErrUnauthorized:
			r.invalidateActor()
			return OfflineEnvelope(), false
		case err != nil:
			r.log.WithError(err).WithField("target", target).Debug("Network fetch failed, falling back to cache")
		default:
			r.log.WithFields(logrus.Fields{
				"target": target,
				"status": status,
			}).Debug("Upstream returned an error status, falling back to cache")
		}
	}

	if cached, err := r.store.GetResponse(key); err == nil {
		return cached, true
	} else if err != localstore.ErrNotFound {
		r.log.WithError(err).Warn("Failed to read cached response")
	}

	if shell, err := r.store.GetEntity(localstore.KeyAppShell); err == nil {
		return shell, true
	}

	return OfflineEnvelope(), true
}

// invalidateActor drops the local actor identity so the next interaction
// forces re-authentication.
func (r *ReadThrough) invalidateActor() {
	if err := r.store.DeleteEntity(localstore.KeyCurrentUser); err != nil {
		r.log.WithError(err).Error("Failed to invalidate local actor identity")
		return
	}
	r.log.Info("Local actor identity invalidated, re-authentication required")
}
