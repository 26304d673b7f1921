package localstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PendingMutation is one outbound write captured while disconnected. Enqueue
// order is the intended replay order; an envelope is removed only after the
// authoritative store acknowledges that exact envelope.
type PendingMutation struct {
	EnqueuedAt int64             `json:"enqueued_at"`
	Target     string            `json:"target"`
	Method     string            `json:"method"`
	Headers    map[string]string `json:"headers"`
	Payload    []byte            `json:"payload"`
}

// Queue is the durable on-device queue of pending mutations, keyed by
// monotonic enqueue time.
type Queue struct {
	store *Store
}

// NewQueue returns the pending-mutation queue backed by the store
func NewQueue(store *Store) *Queue {
	return &Queue{store: store}
}

// Enqueue appends a mutation. The enqueue timestamp is bumped on collision so
// two mutations captured in the same nanosecond keep their submission order.
func (q *Queue) Enqueue(m PendingMutation) (PendingMutation, error) {
	if m.EnqueuedAt == 0 {
		m.EnqueuedAt = time.Now().UnixNano()
	}
	headers, err := json.Marshal(m.Headers)
	if err != nil {
		return m, fmt.Errorf("failed to marshal mutation headers: %w", err)
	}

	for {
		_, err := q.store.db.Exec(
			`INSERT INTO pending_mutations (enqueued_at, target, method, headers, payload)
			 VALUES (?, ?, ?, ?, ?)`,
			m.EnqueuedAt, m.Target, m.Method, headers, m.Payload,
		)
		if err == nil {
			return m, nil
		}
		if isUniqueViolation(err) {
			m.EnqueuedAt++
			continue
		}
		return m, fmt.Errorf("failed to enqueue mutation: %w", err)
	}
}

// List returns all pending mutations in enqueue order
func (q *Queue) List() ([]PendingMutation, error) {
	rows, err := q.store.db.Query(
		`SELECT enqueued_at, target, method, headers, payload
		 FROM pending_mutations ORDER BY enqueued_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending mutations: %w", err)
	}
	defer rows.Close()

	var mutations []PendingMutation
	for rows.Next() {
		var m PendingMutation
		var headers []byte
		if err := rows.Scan(&m.EnqueuedAt, &m.Target, &m.Method, &headers, &m.Payload); err != nil {
			return nil, fmt.Errorf("failed to scan pending mutation: %w", err)
		}
		if len(headers) > 0 {
			if err := json.Unmarshal(headers, &m.Headers); err != nil {
				return nil, fmt.Errorf("failed to unmarshal mutation headers: %w", err)
			}
		}
		mutations = append(mutations, m)
	}
	return mutations, rows.Err()
}

// Delete removes the envelope with the given enqueue timestamp
func (q *Queue) Delete(enqueuedAt int64) error {
	if _, err := q.store.db.Exec(
		`DELETE FROM pending_mutations WHERE enqueued_at = ?`, enqueuedAt,
	); err != nil {
		return fmt.Errorf("failed to delete pending mutation: %w", err)
	}
	return nil
}

// Len returns the number of pending mutations
func (q *Queue) Len() (int, error) {
	var count int
	err := q.store.db.QueryRow(`SELECT COUNT(*) FROM pending_mutations`).Scan(&count)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to count pending mutations: %w", err)
	}
	return count, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
