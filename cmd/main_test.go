package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/allpedroza/karaoke/internal/melody"
	"github.com/allpedroza/karaoke/internal/session"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestMelodyCommands(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "karaoke.db")
	notes := filepath.Join(dir, "notes.json")
	data := `[
		{"time": 0, "duration": 0.5, "note": "C4"},
		{"time": 0.5, "duration": 0.5, "note": "E4"},
		{"start": 1.0, "end": 2.0, "note": "G4", "frequency": 392.0, "confidence": 0.9}
	]`
	if err := os.WriteFile(notes, []byte(data), 0o644); err != nil {
		t.Fatalf("write notes: %v", err)
	}

	out, err := execute(t, "--db", db, "melody", "import", "song-1", notes, "--title", "Scale")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, "Imported 3 notes") {
		t.Fatalf("unexpected import output %q", out)
	}

	out, err = execute(t, "--db", db, "melody", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "song-1") || !strings.Contains(out, "Scale") {
		t.Fatalf("unexpected list output %q", out)
	}

	if _, err := execute(t, "--db", db, "melody", "offset", "song-1", "1.5"); err != nil {
		t.Fatalf("offset: %v", err)
	}

	mid := filepath.Join(dir, "out", "song.mid")
	if _, err := execute(t, "--db", db, "melody", "export", "song-1", mid); err != nil {
		t.Fatalf("export: %v", err)
	}
	head, err := os.ReadFile(mid)
	if err != nil || !bytes.HasPrefix(head, []byte("MThd")) {
		t.Fatalf("expected a MIDI file, got err=%v", err)
	}

	if _, err := execute(t, "--db", db, "melody", "delete", "song-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := execute(t, "--db", db, "melody", "delete", "song-1"); !errors.Is(err, melody.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	out, err = execute(t, "--db", db, "melody", "list")
	if err != nil || !strings.Contains(out, "No melodies") {
		t.Fatalf("expected empty list, got %q (%v)", out, err)
	}
}

func TestExportMissingMelody(t *testing.T) {
	db := filepath.Join(t.TempDir(), "karaoke.db")
	_, err := execute(t, "--db", db, "melody", "export", "nope", filepath.Join(t.TempDir(), "x.mid"))
	if err == nil {
		t.Fatalf("expected an error for a missing melody")
	}
}

func TestInvalidConfigRejected(t *testing.T) {
	db := filepath.Join(t.TempDir(), "karaoke.db")
	if _, err := execute(t, "--db", db, "--buffer-size", "1000", "melody", "list"); err == nil {
		t.Fatalf("expected a non power-of-two buffer to be rejected")
	}
}

func TestPrintStats(t *testing.T) {
	var b bytes.Buffer
	printStats(&b, "song-1", session.Stats{
		AverageFrequency: 440,
		Stability:        98.5,
		Accuracy:         96,
		DistinctNotes:    []string{"A4"},
		TotalSamples:     1200,
		ValidSamples:     1100,
	})
	out := b.String()
	for _, want := range []string{"song-1", "A4", "440", "1,200"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}
