// ABOUTME: Content-addressed SQL knowledge store with hash-based deduplication
// ABOUTME: Normalizes snippets, hashes with BLAKE2b, counts saved vs duplicate entries

package store

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// NormalizeSQL reduces a snippet to its canonical form for hashing:
// line endings are unified and surrounding whitespace is trimmed.
func NormalizeSQL(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.TrimSpace(text)
}

// HashSQL returns the hex BLAKE2b-256 digest of normalized snippet text
func HashSQL(normalized string) string {
	sum := blake2b.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// SaveKnowledgeEntries saves a batch of SQL snippets, deduplicating by
// content hash both within the batch and against previously stored entries.
// Blank snippets are skipped. Resubmitting a saved batch is idempotent:
// every entry counts as a duplicate and nothing is written.
func (s *SQLiteStore) SaveKnowledgeEntries(ctx context.Context, entries []*KnowledgeEntry) (*SaveKnowledgeResult, error) {
	result := &SaveKnowledgeResult{}
	seen := make(map[string]bool)

	query := `
		INSERT INTO knowledge_entries (id, agent_type, thread_id, message_id, sql_text, sql_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	for _, entry := range entries {
		text := NormalizeSQL(entry.SQLText)
		if text == "" {
			continue
		}

		hash := HashSQL(text)
		if seen[hash] {
			result.Duplicates++
			continue
		}
		seen[hash] = true

		_, err := s.db.ExecContext(ctx, query,
			entry.ID,
			nullString(entry.AgentType),
			nullString(entry.ThreadID),
			nullString(entry.MessageID),
			text,
			hash,
			time.Now().UTC().Format(time.RFC3339),
		)
		if err != nil {
			if isConstraintViolation(err) {
				result.Duplicates++
				continue
			}
			return nil, fmt.Errorf("inserting knowledge entry: %w", err)
		}

		entry.SQLHash = hash
		result.Saved++
	}

	s.logger.Debug("saved knowledge entries", "saved", result.Saved, "duplicates", result.Duplicates)
	return result, nil
}

// ListKnowledgeEntries returns stored snippets, newest first.
// An empty agentType lists entries for all agent types.
// If limit is 0 or negative, a default limit of 100 is used.
func (s *SQLiteStore) ListKnowledgeEntries(ctx context.Context, agentType string, limit int) ([]*KnowledgeEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	query := `
		SELECT id, agent_type, thread_id, message_id, sql_text, sql_hash, created_at
		FROM knowledge_entries
	`
	args := []any{}
	if agentType != "" {
		query += ` WHERE agent_type = ?`
		args = append(args, agentType)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying knowledge entries: %w", err)
	}
	defer rows.Close()

	var entries []*KnowledgeEntry
	for rows.Next() {
		var entry KnowledgeEntry
		var entryAgentType, threadID, messageID *string
		var createdAtStr string

		if err := rows.Scan(&entry.ID, &entryAgentType, &threadID, &messageID, &entry.SQLText, &entry.SQLHash, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning knowledge row: %w", err)
		}

		if entryAgentType != nil {
			entry.AgentType = *entryAgentType
		}
		if threadID != nil {
			entry.ThreadID = *threadID
		}
		if messageID != nil {
			entry.MessageID = *messageID
		}

		entry.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating knowledge rows: %w", err)
	}

	return entries, nil
}

// DeleteKnowledgeEntry removes a stored snippet.
// Returns ErrNotFound if the entry doesn't exist.
func (s *SQLiteStore) DeleteKnowledgeEntry(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM knowledge_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting knowledge entry: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted knowledge entry", "id", id)
	return nil
}
