// ABOUTME: Append-only thread event log backed by SQLite
// ABOUTME: Store-assigned sequence numbers give each thread a stable replay order

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// AppendEvent appends an event to its thread's log. The store assigns the
// next sequence number and writes it back to event.Seq. Payloads default to
// an empty JSON object when nil.
func (s *SQLiteStore) AppendEvent(ctx context.Context, event *ThreadEvent) error {
	if event.ThreadID == "" {
		return fmt.Errorf("appending event: thread id is required")
	}

	payload := event.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO thread_events (thread_id, job_id, event_type, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		event.ThreadID,
		nullString(event.JobID),
		event.EventType,
		string(payload),
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting thread event: %w", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting event sequence: %w", err)
	}
	event.Seq = seq

	s.logger.Debug("appended event", "thread_id", event.ThreadID, "seq", seq, "type", event.EventType)
	return nil
}

// ThreadEvents returns the full event log for a thread in append order.
// A stored payload that is no longer valid JSON is tolerated: it is logged
// and returned as a raw JSON string so replay never fails.
func (s *SQLiteStore) ThreadEvents(ctx context.Context, threadID string) ([]*ThreadEvent, error) {
	query := `
		SELECT seq, thread_id, job_id, event_type, payload, created_at
		FROM thread_events
		WHERE thread_id = ?
		ORDER BY seq ASC
	`

	rows, err := s.db.QueryContext(ctx, query, threadID)
	if err != nil {
		return nil, fmt.Errorf("querying thread events: %w", err)
	}
	defer rows.Close()

	var events []*ThreadEvent
	for rows.Next() {
		var event ThreadEvent
		var jobID *string
		var payloadStr, createdAtStr string

		if err := rows.Scan(&event.Seq, &event.ThreadID, &jobID, &event.EventType, &payloadStr, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}

		if jobID != nil {
			event.JobID = *jobID
		}

		event.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing event created_at: %w", err)
		}

		payload := json.RawMessage(payloadStr)
		if !json.Valid(payload) {
			s.logger.Warn("stored event payload is not valid JSON, returning raw",
				"thread_id", threadID, "seq", event.Seq)
			quoted, err := json.Marshal(payloadStr)
			if err != nil {
				quoted = json.RawMessage(`""`)
			}
			payload = quoted
		}
		event.Payload = payload

		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating event rows: %w", err)
	}

	return events, nil
}
