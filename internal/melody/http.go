package melody

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPProvider reads melody maps from the karaoke backend:
//
//	GET /api/melody/{song}              -> melody map, 404 when missing
//	PUT /api/melody/{song}/sync-offset  <- {"syncOffset": seconds}
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProvider creates a provider for baseURL. A nil client gets a 10s
// timeout.
func NewHTTPProvider(baseURL string, client *http.Client) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPProvider{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type melodyMapPayload struct {
	SongCode   string          `json:"song_code"`
	SongTitle  *string         `json:"song_title"`
	Duration   float64         `json:"duration"`
	Notes      json.RawMessage `json:"notes"`
	Status     string          `json:"status"`
	SyncOffset float64         `json:"sync_offset"`
}

func (p *HTTPProvider) melodyURL(songID string, suffix ...string) string {
	parts := append([]string{p.baseURL, "api", "melody", url.PathEscape(songID)}, suffix...)
	return strings.Join(parts, "/")
}

// Melody implements Provider.
func (p *HTTPProvider) Melody(ctx context.Context, songID string) (Reference, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.melodyURL(songID), nil)
	if err != nil {
		return Reference{}, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return Reference{}, fmt.Errorf("fetch melody %s: %w", songID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Unavailable(songID), nil
	}
	if resp.StatusCode != http.StatusOK {
		return Reference{}, fmt.Errorf("fetch melody %s: %s", songID, resp.Status)
	}

	var payload melodyMapPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Reference{}, fmt.Errorf("decode melody %s: %w", songID, err)
	}

	ref := Reference{
		SongID:     songID,
		Duration:   payload.Duration,
		SyncOffset: payload.SyncOffset,
		Status:     parseStatus(payload.Status),
	}
	if payload.SongTitle != nil {
		ref.Title = *payload.SongTitle
	}
	if ref.Status != StatusReady {
		return ref, nil
	}
	if len(payload.Notes) > 0 {
		notes, err := DecodeNotes(payload.Notes)
		if err != nil {
			return Unavailable(songID), nil
		}
		ref.Notes = notes
	}
	return ref, nil
}

func parseStatus(s string) Status {
	switch s {
	case "", "completed", string(StatusReady):
		return StatusReady
	case string(StatusProcessing):
		return StatusProcessing
	default:
		return StatusUnavailable
	}
}

// SaveSyncOffset implements Provider.
func (p *HTTPProvider) SaveSyncOffset(ctx context.Context, songID string, offset float64) error {
	body, err := json.Marshal(map[string]float64{"syncOffset": offset})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, p.melodyURL(songID, "sync-offset"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("save sync offset %s: %w", songID, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("save sync offset %s: %s", songID, resp.Status)
	}
	return nil
}
