// ABOUTME: Tests for the deduplicating SQL knowledge store
// ABOUTME: Covers idempotent saves, intra-batch duplicates, and text normalization

package store

import (
	"context"
	"testing"
)

func TestSaveKnowledgeEntries_IdempotentBySQLHash(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	batch := []*KnowledgeEntry{
		{ID: "k1", AgentType: "data_analysis", SQLText: "SELECT * FROM orders"},
	}

	result, err := store.SaveKnowledgeEntries(ctx, batch)
	if err != nil {
		t.Fatalf("SaveKnowledgeEntries failed: %v", err)
	}
	if result.Saved != 1 || result.Duplicates != 0 {
		t.Errorf("first save: got {saved:%d, duplicates:%d}, want {1, 0}", result.Saved, result.Duplicates)
	}

	// Resubmitting the same snippet (fresh id) must count as a duplicate.
	again := []*KnowledgeEntry{
		{ID: "k2", AgentType: "data_analysis", SQLText: "SELECT * FROM orders"},
	}
	result, err = store.SaveKnowledgeEntries(ctx, again)
	if err != nil {
		t.Fatalf("SaveKnowledgeEntries failed: %v", err)
	}
	if result.Saved != 0 || result.Duplicates != 1 {
		t.Errorf("resubmit: got {saved:%d, duplicates:%d}, want {0, 1}", result.Saved, result.Duplicates)
	}

	entries, err := store.ListKnowledgeEntries(ctx, "", 0)
	if err != nil {
		t.Fatalf("ListKnowledgeEntries failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected a single stored entry, got %d", len(entries))
	}
}

func TestSaveKnowledgeEntries_IntraBatchDuplicates(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	batch := []*KnowledgeEntry{
		{ID: "k1", SQLText: "SELECT 1"},
		{ID: "k2", SQLText: "SELECT 1"},
		{ID: "k3", SQLText: "SELECT 2"},
	}

	result, err := store.SaveKnowledgeEntries(context.Background(), batch)
	if err != nil {
		t.Fatalf("SaveKnowledgeEntries failed: %v", err)
	}
	if result.Saved != 2 || result.Duplicates != 1 {
		t.Errorf("got {saved:%d, duplicates:%d}, want {2, 1}", result.Saved, result.Duplicates)
	}
}

func TestSaveKnowledgeEntries_NormalizationDedupes(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	first := []*KnowledgeEntry{{ID: "k1", SQLText: "SELECT a\nFROM b"}}
	if _, err := store.SaveKnowledgeEntries(ctx, first); err != nil {
		t.Fatalf("SaveKnowledgeEntries failed: %v", err)
	}

	// Same snippet with CRLF endings and padding hashes identically.
	variant := []*KnowledgeEntry{{ID: "k2", SQLText: "  SELECT a\r\nFROM b  \n"}}
	result, err := store.SaveKnowledgeEntries(ctx, variant)
	if err != nil {
		t.Fatalf("SaveKnowledgeEntries failed: %v", err)
	}
	if result.Saved != 0 || result.Duplicates != 1 {
		t.Errorf("normalized variant not deduped: {saved:%d, duplicates:%d}", result.Saved, result.Duplicates)
	}
}

func TestSaveKnowledgeEntries_SkipsBlankSnippets(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	batch := []*KnowledgeEntry{
		{ID: "k1", SQLText: "   \n\t  "},
		{ID: "k2", SQLText: "SELECT 1"},
	}

	result, err := store.SaveKnowledgeEntries(context.Background(), batch)
	if err != nil {
		t.Fatalf("SaveKnowledgeEntries failed: %v", err)
	}
	if result.Saved != 1 || result.Duplicates != 0 {
		t.Errorf("blank snippet miscounted: {saved:%d, duplicates:%d}", result.Saved, result.Duplicates)
	}
}

func TestListKnowledgeEntries_FilterByAgentType(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	batch := []*KnowledgeEntry{
		{ID: "k1", AgentType: "data_analysis", SQLText: "SELECT 1"},
		{ID: "k2", AgentType: "chit_chat", SQLText: "SELECT 2"},
	}
	if _, err := store.SaveKnowledgeEntries(ctx, batch); err != nil {
		t.Fatalf("SaveKnowledgeEntries failed: %v", err)
	}

	entries, err := store.ListKnowledgeEntries(ctx, "data_analysis", 0)
	if err != nil {
		t.Fatalf("ListKnowledgeEntries failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].AgentType != "data_analysis" {
		t.Errorf("filter leaked agent type %q", entries[0].AgentType)
	}
	if entries[0].SQLHash == "" {
		t.Error("stored entry missing hash")
	}
}

func TestDeleteKnowledgeEntry(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	if _, err := store.SaveKnowledgeEntries(ctx, []*KnowledgeEntry{{ID: "k1", SQLText: "SELECT 1"}}); err != nil {
		t.Fatalf("SaveKnowledgeEntries failed: %v", err)
	}

	if err := store.DeleteKnowledgeEntry(ctx, "k1"); err != nil {
		t.Fatalf("DeleteKnowledgeEntry failed: %v", err)
	}
	if err := store.DeleteKnowledgeEntry(ctx, "k1"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// Deleting frees the hash for re-saving
	result, err := store.SaveKnowledgeEntries(ctx, []*KnowledgeEntry{{ID: "k2", SQLText: "SELECT 1"}})
	if err != nil {
		t.Fatalf("SaveKnowledgeEntries failed: %v", err)
	}
	if result.Saved != 1 {
		t.Errorf("re-save after delete failed: %+v", result)
	}
}

func TestNormalizeSQL(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"SELECT 1", "SELECT 1"},
		{"  SELECT 1  ", "SELECT 1"},
		{"SELECT a\r\nFROM b", "SELECT a\nFROM b"},
		{"\n\t\n", ""},
	}
	for _, c := range cases {
		if got := NormalizeSQL(c.in); got != c.want {
			t.Errorf("NormalizeSQL(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestHashSQL_Stable(t *testing.T) {
	a := HashSQL("SELECT 1")
	b := HashSQL("SELECT 1")
	c := HashSQL("SELECT 2")

	if a != b {
		t.Error("hash not deterministic")
	}
	if a == c {
		t.Error("distinct snippets collided")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}
