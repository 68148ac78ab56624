package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/user/gules/internal/types"
)

func TestJournal_AppendAndTail(t *testing.T) {
	ctx := context.Background()
	j := NewJournal(t.TempDir())

	for i := 0; i < 5; i++ {
		rec := &SyncRecord{SessionID: "s1", RunID: types.NewRunID(), Added: i}
		if err := j.Append(ctx, rec); err != nil {
			t.Fatal(err)
		}
		if rec.Seq != int64(i+1) {
			t.Errorf("expected seq %d, got %d", i+1, rec.Seq)
		}
	}

	n, err := j.Count(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Errorf("expected 5 records, got %d", n)
	}

	recs, err := j.Tail(ctx, "s1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 || recs[0].Seq != 4 || recs[1].Seq != 5 {
		t.Errorf("expected seqs [4 5], got %+v", recs)
	}

	all, _ := j.Tail(ctx, "s1", 0)
	if len(all) != 5 {
		t.Errorf("limit 0 should return all records, got %d", len(all))
	}
}

func TestJournal_TailMissing(t *testing.T) {
	j := NewJournal(t.TempDir())

	recs, err := j.Tail(context.Background(), "nope", 10)
	if err != nil {
		t.Fatal(err)
	}
	if recs != nil {
		t.Errorf("expected no records, got %+v", recs)
	}
}

func TestJournal_SkipsTruncatedLine(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	j := NewJournal(root)
	j.Append(ctx, &SyncRecord{SessionID: "s1", Added: 1})

	f, err := os.OpenFile(filepath.Join(root, "s1.jsonl"), os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString(`{"seq":2,"run_`)
	f.Close()

	recs, err := j.Tail(ctx, "s1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Added != 1 {
		t.Errorf("expected the one intact record, got %+v", recs)
	}
}

func TestJournal_RejectsInvalidID(t *testing.T) {
	j := NewJournal(t.TempDir())
	err := j.Append(context.Background(), &SyncRecord{SessionID: "../x"})
	if !errors.Is(err, types.ErrInvalidSessionID) {
		t.Errorf("expected ErrInvalidSessionID, got %v", err)
	}
}

func TestJournal_DroppedWithSession(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, Options{MaxSessions: 1})

	store.Save(ctx, cacheWith("X", base, "a1"))
	store.Journal().Append(ctx, &SyncRecord{SessionID: "X"})
	store.Save(ctx, cacheWith("Y", base.Add(1), "a1"))
	store.Journal().Append(ctx, &SyncRecord{SessionID: "Y"})

	if n, _ := store.Journal().Count(ctx, "X"); n != 0 {
		t.Errorf("evicted session should have no journal, got %d records", n)
	}

	store.Delete(ctx, "Y")
	if n, _ := store.Journal().Count(ctx, "Y"); n != 0 {
		t.Errorf("deleted session should have no journal, got %d records", n)
	}

	store.Journal().Append(ctx, &SyncRecord{SessionID: "Z"})
	if _, err := store.ClearAll(ctx); err != nil {
		t.Fatal(err)
	}
	if n, _ := store.Journal().Count(ctx, "Z"); n != 0 {
		t.Errorf("clear should drop every journal, got %d records", n)
	}
}
