package localstore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

// ErrNotFound is returned when a key has no cached value
var ErrNotFound = errors.New("localstore: not found")

// ErrClearFailed is returned when the store could not be verified empty after
// the bounded retry ceiling
var ErrClearFailed = errors.New("localstore: clear could not be verified")

// clearAttempts bounds the clear-and-verify loop. The underlying storage may
// report success before a close-in-flight transaction lands, so Clear re-reads
// until empty.
const clearAttempts = 5

// Logical collection keys for the entity snapshot namespace
const (
	KeyCurrentUser    = "me"
	KeyFiches         = "fiches"
	KeyCarcasses      = "carcasses"
	KeyIntermediaires = "intermediaires"
	KeyUsers          = "users"
	KeyOrganizations  = "organizations"
	KeyAppShell       = "app-shell"
)

// Namespaces for the two durable areas of the on-device store
const (
	nsEntities  = "entities"
	nsResponses = "responses"
)

// Store is the durable on-device key/value store holding the latest known
// snapshot of domain entities, cached read responses and the current actor.
// It is owned exclusively by one device.
type Store struct {
	db      *sql.DB
	version string
	log     *logrus.Logger
}

// Open opens (or creates) the on-device store at path and stamps the runtime
// version marker. A version mismatch triggers a full clear of the cache and
// the pending-mutation queue before any other operation, so no stale-schema
// entity ever leaks into a newer client build.
func Open(path, version string, log *logrus.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	s := &Store{db: db, version: version, log: log}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	if err := s.checkVersion(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cache (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (namespace, key)
		)`,
		`CREATE TABLE IF NOT EXISTS pending_mutations (
			enqueued_at INTEGER PRIMARY KEY,
			target TEXT NOT NULL,
			method TEXT NOT NULL,
			headers BLOB,
			payload BLOB
		)`,
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to migrate local store: %w", err)
		}
	}
	return nil
}

// checkVersion stamps the version marker on first use and clears everything
// when the stored marker does not match the running version.
func (s *Store) checkVersion() error {
	var stored string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'version'`).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
		// First use for this device
	case err != nil:
		return fmt.Errorf("failed to read version marker: %w", err)
	case stored == s.version:
		return nil
	default:
		s.log.WithFields(logrus.Fields{
			"stored":  stored,
			"running": s.version,
		}).Info("Local store version mismatch, clearing device state")
		if err := s.Clear(); err != nil {
			return err
		}
	}

	_, err = s.db.Exec(
		`INSERT INTO meta (key, value) VALUES ('version', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		s.version,
	)
	if err != nil {
		return fmt.Errorf("failed to stamp version marker: %w", err)
	}
	return nil
}

func (s *Store) get(namespace, key string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRow(
		`SELECT payload FROM cache WHERE namespace = ? AND key = ?`,
		namespace, key,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", namespace, key, err)
	}
	return payload, nil
}

func (s *Store) set(namespace, key string, payload []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO cache (namespace, key, payload) VALUES (?, ?, ?)
		 ON CONFLICT(namespace, key) DO UPDATE SET payload = excluded.payload`,
		namespace, key, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", namespace, key, err)
	}
	return nil
}

// GetEntity reads one logical collection from the entity snapshot namespace
func (s *Store) GetEntity(key string) ([]byte, error) {
	return s.get(nsEntities, key)
}

// SetEntity writes one logical collection into the entity snapshot namespace
func (s *Store) SetEntity(key string, payload []byte) error {
	return s.set(nsEntities, key, payload)
}

// DeleteEntity removes one logical collection from the entity snapshot
func (s *Store) DeleteEntity(key string) error {
	if _, err := s.db.Exec(
		`DELETE FROM cache WHERE namespace = ? AND key = ?`, nsEntities, key,
	); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// GetResponse reads a cached read response by request identity
func (s *Store) GetResponse(requestKey string) ([]byte, error) {
	return s.get(nsResponses, requestKey)
}

// SetResponse caches a read response by request identity
func (s *Store) SetResponse(requestKey string, payload []byte) error {
	return s.set(nsResponses, requestKey, payload)
}

// Clear empties both cache namespaces and the pending-mutation queue. It is
// idempotent and verified by re-reading until empty, with a hard failure after
// the retry ceiling.
func (s *Store) Clear() error {
	for attempt := 1; attempt <= clearAttempts; attempt++ {
		if _, err := s.db.Exec(`DELETE FROM cache`); err != nil {
			s.log.WithError(err).WithField("attempt", attempt).Warn("Failed to clear cache, retrying")
			continue
		}
		if _, err := s.db.Exec(`DELETE FROM pending_mutations`); err != nil {
			s.log.WithError(err).WithField("attempt", attempt).Warn("Failed to clear queue, retrying")
			continue
		}

		var remaining int
		err := s.db.QueryRow(
			`SELECT (SELECT COUNT(*) FROM cache) + (SELECT COUNT(*) FROM pending_mutations)`,
		).Scan(&remaining)
		if err == nil && remaining == 0 {
			return nil
		}
		s.log.WithField("remaining", remaining).WithField("attempt", attempt).
			Warn("Local store not empty after clear, retrying")
	}
	return ErrClearFailed
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}
