package domainstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betagouv/zacharie-sub006/internal/custody"
	"github.com/betagouv/zacharie-sub006/internal/localstore"
	"github.com/betagouv/zacharie-sub006/internal/model"
	"github.com/betagouv/zacharie-sub006/internal/transport"
)

// Outbound delivers one mutation envelope: sent immediately when the device is
// online, appended to the persistent queue when it is not. The sync engine is
// the only implementation in production.
type Outbound interface {
	SendOrQueue(ctx context.Context, m localstore.PendingMutation) error
}

// Mutation targets on the authoritative store
const (
	TargetFiche         = "/api/fei/"
	TargetCarcasse      = "/api/fei-carcasse/"
	TargetIntermediaire = "/api/fei-intermediaire/"
)

// Store is the in-memory, normalized projection of the local cache: entities
// keyed by id plus the current actor. Every mutation applies in memory, marks
// the entity unsynced, persists the collection slice to the local cache and
// hands the corresponding write to the outbound side as one logical step, so
// readers never observe a torn state.
type Store struct {
	mu       sync.Mutex
	local    *localstore.Store
	outbound Outbound
	log      *logrus.Logger

	currentUser    *model.User
	fiches         map[string]*model.Fiche
	carcasses      map[string]*model.Carcasse
	intermediaires map[string]*model.Intermediaire
	users          map[string]*model.User
	organizations  map[string]*model.Organization
}

// NewStore creates the domain store and hydrates it from the local cache
func NewStore(local *localstore.Store, outbound Outbound, log *logrus.Logger) (*Store, error) {
	s := &Store{
		local:          local,
		outbound:       outbound,
		log:            log,
		fiches:         make(map[string]*model.Fiche),
		carcasses:      make(map[string]*model.Carcasse),
		intermediaires: make(map[string]*model.Intermediaire),
		users:          make(map[string]*model.User),
		organizations:  make(map[string]*model.Organization),
	}
	if err := s.hydrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) hydrate() error {
	if err := loadCollection(s.local, localstore.KeyFiches, s.fiches); err != nil {
		return err
	}
	if err := loadCollection(s.local, localstore.KeyCarcasses, s.carcasses); err != nil {
		return err
	}
	if err := loadCollection(s.local, localstore.KeyIntermediaires, s.intermediaires); err != nil {
		return err
	}
	if err := loadCollection(s.local, localstore.KeyUsers, s.users); err != nil {
		return err
	}
	if err := loadCollection(s.local, localstore.KeyOrganizations, s.organizations); err != nil {
		return err
	}

	payload, err := s.local.GetEntity(localstore.KeyCurrentUser)
	switch err {
	case nil:
		var user model.User
		if err := json.Unmarshal(payload, &user); err != nil {
			return errors.Wrap(err, "failed to decode current user")
		}
		s.currentUser = &user
	case localstore.ErrNotFound:
		// No actor on this device yet
	default:
		return err
	}
	return nil
}

func loadCollection[T any](local *localstore.Store, key string, into map[string]*T) error {
	payload, err := local.GetEntity(key)
	if err == localstore.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, &into); err != nil {
		return errors.Wrapf(err, "failed to decode collection %s", key)
	}
	return nil
}

func persistCollection[T any](local *localstore.Store, key string, from map[string]*T) error {
	payload, err := json.Marshal(from)
	if err != nil {
		return errors.Wrapf(err, "failed to encode collection %s", key)
	}
	return local.SetEntity(key, payload)
}

// CurrentUser returns the acting identity, or nil when the device has none
func (s *Store) CurrentUser() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentUser
}

// SetCurrentUser records the acting identity on the device
func (s *Store) SetCurrentUser(user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "failed to encode current user")
	}
	if err := s.local.SetEntity(localstore.KeyCurrentUser, payload); err != nil {
		return err
	}
	s.currentUser = user
	return nil
}

// Snapshot returns one atomic view of the domain state. Classification always
// runs against a single snapshot, never against the network.
func (s *Store) Snapshot() *custody.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := &custody.Snapshot{
		Fiches:         make(map[string]*model.Fiche, len(s.fiches)),
		Carcasses:      make(map[string]*model.Carcasse, len(s.carcasses)),
		Intermediaires: make(map[string]*model.Intermediaire, len(s.intermediaires)),
		Users:          make(map[string]*model.User, len(s.users)),
		Organizations:  make(map[string]*model.Organization, len(s.organizations)),
	}
	for id, f := range s.fiches {
		snap.Fiches[id] = f
	}
	for id, c := range s.carcasses {
		snap.Carcasses[id] = c
	}
	for id, h := range s.intermediaires {
		snap.Intermediaires[id] = h
	}
	for id, u := range s.users {
		snap.Users[id] = u
	}
	for id, o := range s.organizations {
		snap.Organizations[id] = o
	}
	return snap
}

// SaveFiche is the mutation entry point for fiches
func (s *Store) SaveFiche(ctx context.Context, fiche *model.Fiche) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fiche.IsSynced = false
	fiche.UpdatedAt = time.Now()
	s.fiches[fiche.UUID] = fiche

	if err := persistCollection(s.local, localstore.KeyFiches, s.fiches); err != nil {
		return err
	}
	return s.dispatch(ctx, "PUT", TargetFiche+fiche.UUID, fiche)
}

// SaveCarcasse is the mutation entry point for carcasses
func (s *Store) SaveCarcasse(ctx context.Context, carcasse *model.Carcasse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	carcasse.IsSynced = false
	carcasse.UpdatedAt = time.Now()
	s.carcasses[carcasse.UUID] = carcasse

	if err := persistCollection(s.local, localstore.KeyCarcasses, s.carcasses); err != nil {
		return err
	}
	return s.dispatch(ctx, "PUT", TargetCarcasse+carcasse.UUID, carcasse)
}

// SaveIntermediaire is the mutation entry point for custody hops. The hop id
// is derived from its composite business key so repeated offline submissions
// upsert rather than duplicate.
func (s *Store) SaveIntermediaire(ctx context.Context, hop *model.Intermediaire) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if hop.UUID == "" {
		actor := ""
		if hop.UserID != nil {
			actor = *hop.UserID
		} else if hop.OrgID != nil {
			actor = *hop.OrgID
		}
		hop.UUID = model.IntermediaireID(hop.FicheID, actor, hop.Sequence)
	}
	hop.UpdatedAt = time.Now()
	s.intermediaires[hop.UUID] = hop

	if err := persistCollection(s.local, localstore.KeyIntermediaires, s.intermediaires); err != nil {
		return err
	}
	return s.dispatch(ctx, "POST", TargetIntermediaire+hop.UUID, hop)
}

// dispatch builds the mutation envelope and hands it to the outbound side.
// Called with the store mutex held so the in-memory update, the persistence
// write and the send-or-queue decision form one logical step.
func (s *Store) dispatch(ctx context.Context, method, target string, entity interface{}) error {
	payload, err := json.Marshal(entity)
	if err != nil {
		return errors.Wrap(err, "failed to encode mutation payload")
	}
	m := localstore.PendingMutation{
		Target:  target,
		Method:  method,
		Headers: map[string]string{"Content-Type": "application/json"},
		Payload: payload,
	}
	if err := s.outbound.SendOrQueue(ctx, m); err != nil {
		return err
	}
	return nil
}

// ApplySynced folds entities returned by the authoritative store back into the
// projection. They are marked synced and produce no outbound write.
func (s *Store) ApplySynced(fiches []model.Fiche, carcasses []model.Carcasse, hops []model.Intermediaire) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range fiches {
		f := fiches[i]
		f.IsSynced = true
		s.fiches[f.UUID] = &f
	}
	for i := range carcasses {
		c := carcasses[i]
		c.IsSynced = true
		s.carcasses[c.UUID] = &c
	}
	for i := range hops {
		h := hops[i]
		s.intermediaires[h.UUID] = &h
	}

	if err := persistCollection(s.local, localstore.KeyFiches, s.fiches); err != nil {
		return err
	}
	if err := persistCollection(s.local, localstore.KeyCarcasses, s.carcasses); err != nil {
		return err
	}
	return persistCollection(s.local, localstore.KeyIntermediaires, s.intermediaires)
}

// ApplyActors folds users and organizations from the authoritative store into
// the projection
func (s *Store) ApplyActors(users []model.User, orgs []model.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range users {
		u := users[i]
		s.users[u.UUID] = &u
	}
	for i := range orgs {
		o := orgs[i]
		s.organizations[o.UUID] = &o
	}

	if err := persistCollection(s.local, localstore.KeyUsers, s.users); err != nil {
		return err
	}
	return persistCollection(s.local, localstore.KeyOrganizations, s.organizations)
}

// FoldSyncPayload decodes an authoritative response envelope and folds its
// entities back into the projection. Envelopes that are not ok (offline
// synthesis included) are ignored without error; a decodable ok envelope with
// a malformed payload is reported.
func (s *Store) FoldSyncPayload(raw []byte) error {
	var envelope transport.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil || !envelope.OK {
		return nil
	}

	var payload model.SyncPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return errors.Wrap(err, "failed to decode sync payload")
	}

	if payload.User != nil {
		if err := s.SetCurrentUser(payload.User); err != nil {
			return err
		}
	}
	if err := s.ApplySynced(payload.Fiches, payload.Carcasses, payload.Intermediaires); err != nil {
		return err
	}
	return s.ApplyActors(payload.Users, payload.Organizations)
}

// Fiche returns the fiche with the given id, or nil
func (s *Store) Fiche(id string) *model.Fiche {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fiches[id]
}

// PendingActionCount is the badge count for the current actor, derived from
// one snapshot
func (s *Store) PendingActionCount() int {
	snap := s.Snapshot()
	return custody.PendingActionCount(snap, s.CurrentUser())
}
