package melody

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS melody_maps (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	song_code TEXT NOT NULL UNIQUE,
	song_title TEXT,
	duration REAL NOT NULL,
	notes TEXT NOT NULL,
	total_notes INTEGER NOT NULL,
	sync_offset REAL NOT NULL DEFAULT 0,
	processed_at INTEGER NOT NULL,
	status TEXT NOT NULL DEFAULT 'ready'
);
CREATE INDEX IF NOT EXISTS idx_melody_maps_song_code ON melody_maps(song_code);
`

// Summary is a row of Store.List.
type Summary struct {
	SongID      string
	Title       string
	TotalNotes  int
	SyncOffset  float64
	ProcessedAt time.Time
}

// Store keeps melody maps in SQLite. It implements Provider.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// OpenStore opens (and creates if needed) the database at path.
func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared across calls
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores a ready melody map, keeping any previously saved sync offset.
func (s *Store) Save(ctx context.Context, songID, title string, duration float64, notes []ReferenceNote) error {
	data, err := EncodeNotes(notes)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO melody_maps (song_code, song_title, duration, notes, total_notes, processed_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(song_code) DO UPDATE SET
			song_title = excluded.song_title,
			duration = excluded.duration,
			notes = excluded.notes,
			total_notes = excluded.total_notes,
			processed_at = excluded.processed_at,
			status = excluded.status`,
		songID, nullString(title), duration, string(data), len(notes), s.now().Unix(), string(StatusReady))
	if err != nil {
		return fmt.Errorf("save melody %s: %w", songID, err)
	}
	return nil
}

// MarkProcessing records that extraction is under way for songID.
func (s *Store) MarkProcessing(ctx context.Context, songID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO melody_maps (song_code, duration, notes, total_notes, processed_at, status)
		VALUES (?, 0, '[]', 0, ?, ?)
		ON CONFLICT(song_code) DO UPDATE SET status = excluded.status`,
		songID, s.now().Unix(), string(StatusProcessing))
	return err
}

// Delete removes a melody map. It reports whether a row existed.
func (s *Store) Delete(ctx context.Context, songID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM melody_maps WHERE song_code = ?`, songID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// List returns ready melody maps, newest first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT song_code, COALESCE(song_title, ''), total_notes, sync_offset, processed_at
		FROM melody_maps
		WHERE status = ?
		ORDER BY processed_at DESC, song_code`, string(StatusReady))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var processed int64
		if err := rows.Scan(&sum.SongID, &sum.Title, &sum.TotalNotes, &sum.SyncOffset, &processed); err != nil {
			return nil, err
		}
		sum.ProcessedAt = time.Unix(processed, 0)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Melody implements Provider.
func (s *Store) Melody(ctx context.Context, songID string) (Reference, error) {
	var (
		title    string
		duration float64
		notes    string
		offset   float64
		status   string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(song_title, ''), duration, notes, sync_offset, status
		FROM melody_maps WHERE song_code = ?`, songID).
		Scan(&title, &duration, &notes, &offset, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return Unavailable(songID), nil
	}
	if err != nil {
		return Reference{}, fmt.Errorf("load melody %s: %w", songID, err)
	}

	ref := Reference{
		SongID:     songID,
		Title:      title,
		Duration:   duration,
		Status:     Status(status),
		SyncOffset: offset,
	}
	if ref.Status != StatusReady {
		return ref, nil
	}

	ref.Notes, err = DecodeNotes([]byte(notes))
	if err != nil {
		// a corrupt row is treated like a missing melody
		return Unavailable(songID), nil
	}
	return ref, nil
}

// SaveSyncOffset implements Provider.
func (s *Store) SaveSyncOffset(ctx context.Context, songID string, offset float64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE melody_maps SET sync_offset = ? WHERE song_code = ? AND status = ?`,
		offset, songID, string(StatusReady))
	if err != nil {
		return fmt.Errorf("save sync offset %s: %w", songID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
