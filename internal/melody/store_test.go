package melody

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "sub", "melody.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var twoNotes = []ReferenceNote{
	{Onset: 0, Duration: 1, Name: "C4", Midi: 60, Frequency: 261.63},
	{Onset: 1, Duration: 1, Name: "D4", Midi: 62, Frequency: 293.66},
}

func TestStoreMissingSong(t *testing.T) {
	s := openTestStore(t)
	ref, err := s.Melody(context.Background(), "nope")
	if err != nil {
		t.Fatal(err)
	}
	if ref.Status != StatusUnavailable || ref.SongID != "nope" {
		t.Fatalf("expected unavailable, got %+v", ref)
	}
	if err := s.SaveSyncOffset(context.Background(), "nope", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreSaveLoad(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if err := s.Save(ctx, "song-1", "First", 2, twoNotes); err != nil {
		t.Fatal(err)
	}
	ref, err := s.Melody(ctx, "song-1")
	if err != nil {
		t.Fatal(err)
	}
	if !ref.Ready() || ref.Title != "First" || ref.Duration != 2 || len(ref.Notes) != 2 {
		t.Fatalf("unexpected reference: %+v", ref)
	}
	if ref.Notes[1] != twoNotes[1] {
		t.Fatalf("expected %+v, got %+v", twoNotes[1], ref.Notes[1])
	}
}

func TestStoreResaveKeepsOffset(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if err := s.Save(ctx, "song-1", "", 2, twoNotes); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveSyncOffset(ctx, "song-1", -1.5); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, "song-1", "Renamed", 2, twoNotes[:1]); err != nil {
		t.Fatal(err)
	}
	ref, _ := s.Melody(ctx, "song-1")
	if ref.SyncOffset != -1.5 {
		t.Fatalf("expected offset kept, got %.2f", ref.SyncOffset)
	}
	if ref.Title != "Renamed" || len(ref.Notes) != 1 {
		t.Fatalf("expected notes replaced, got %+v", ref)
	}
}

func TestStoreProcessing(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if err := s.MarkProcessing(ctx, "song-2"); err != nil {
		t.Fatal(err)
	}
	ref, err := s.Melody(ctx, "song-2")
	if err != nil {
		t.Fatal(err)
	}
	if ref.Status != StatusProcessing || ref.Ready() {
		t.Fatalf("expected processing, got %+v", ref)
	}
	if err := s.SaveSyncOffset(ctx, "song-2", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a processing song, got %v", err)
	}
	rows, _ := s.List(ctx)
	if len(rows) != 0 {
		t.Fatalf("expected processing songs hidden from List, got %v", rows)
	}
}

func TestStoreListAndDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	clock := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return clock }

	s.Save(ctx, "old", "Old", 2, twoNotes)
	clock = clock.Add(time.Hour)
	s.Save(ctx, "new", "New", 2, twoNotes)

	rows, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].SongID != "new" || rows[1].SongID != "old" {
		t.Fatalf("expected newest first, got %+v", rows)
	}
	if rows[0].TotalNotes != 2 || !rows[0].ProcessedAt.Equal(clock) {
		t.Fatalf("unexpected summary: %+v", rows[0])
	}

	deleted, err := s.Delete(ctx, "old")
	if err != nil || !deleted {
		t.Fatalf("expected delete, got %v %v", deleted, err)
	}
	deleted, err = s.Delete(ctx, "old")
	if err != nil || deleted {
		t.Fatalf("expected second delete to report nothing, got %v %v", deleted, err)
	}
}

func TestStoreCorruptRow(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO melody_maps (song_code, duration, notes, total_notes, processed_at, status)
		VALUES ('bad', 1, 'not json', 0, 0, 'ready')`); err != nil {
		t.Fatal(err)
	}
	ref, err := s.Melody(ctx, "bad")
	if err != nil {
		t.Fatal(err)
	}
	if ref.Status != StatusUnavailable {
		t.Fatalf("expected corrupt notes to read as unavailable, got %+v", ref)
	}
}
