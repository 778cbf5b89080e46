// Package store persists the latest forecast event per entity and
// granularity, so a restarted card renders from cache while the live
// streams reconnect.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/simonhale/forecastcard/internal/forecast"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// SaveEvent upserts the latest event for one entity and granularity and
// appends to the event log.
func (s *Store) SaveEvent(entityID string, ev forecast.Event) error {
	payload := ev.Raw
	if len(payload) == 0 {
		b, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		payload = b
	}
	now := time.Now().UTC()

	_, err := s.db.Exec(`
		INSERT INTO forecast_events (entity_id, forecast_type, payload, received_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(entity_id, forecast_type) DO UPDATE SET
			payload = excluded.payload,
			received_at = excluded.received_at
	`, entityID, string(ev.Type), string(payload), now)
	if err != nil {
		return fmt.Errorf("upsert event: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO event_log (entity_id, forecast_type, sample_count, received_at)
		VALUES (?, ?, ?, ?)
	`, entityID, string(ev.Type), len(ev.Forecast), now)
	if err != nil {
		return fmt.Errorf("log event: %w", err)
	}
	return nil
}

// LatestEvent returns the cached event for one entity and granularity, or
// nil when none has been stored.
func (s *Store) LatestEvent(entityID string, t forecast.Type) (*forecast.Event, error) {
	row := s.db.QueryRow(`
		SELECT payload FROM forecast_events
		WHERE entity_id = ? AND forecast_type = ?
	`, entityID, string(t))

	var payload string
	err := row.Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	ev, err := forecast.ParseEvent([]byte(payload))
	if err != nil {
		return nil, fmt.Errorf("parse cached event: %w", err)
	}
	return ev, nil
}

// LatestEvents returns all cached events for one entity.
func (s *Store) LatestEvents(entityID string) ([]forecast.Event, error) {
	rows, err := s.db.Query(`
		SELECT payload FROM forecast_events
		WHERE entity_id = ?
		ORDER BY forecast_type
	`, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []forecast.Event
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		ev, err := forecast.ParseEvent([]byte(payload))
		if err != nil {
			return nil, fmt.Errorf("parse cached event: %w", err)
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

// PruneEventLog drops log rows older than the retention window. Returns
// the number of rows removed.
func (s *Store) PruneEventLog(retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	res, err := s.db.Exec(`DELETE FROM event_log WHERE received_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// EventCounts returns per-granularity event totals for one entity from
// the event log.
func (s *Store) EventCounts(entityID string) (map[forecast.Type]int, error) {
	rows, err := s.db.Query(`
		SELECT forecast_type, COUNT(*) FROM event_log
		WHERE entity_id = ?
		GROUP BY forecast_type
	`, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[forecast.Type]int)
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		counts[forecast.Type(t)] = n
	}
	return counts, rows.Err()
}
