package melody

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newBackend(t *testing.T) (*httptest.Server, *float64) {
	t.Helper()
	saved := new(float64)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/melody/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("id") {
		case "ready":
			io.WriteString(w, `{
				"song_code": "ready",
				"song_title": "Ready Song",
				"duration": 3,
				"status": "completed",
				"sync_offset": 0.5,
				"notes": [{"start": 0, "end": 1, "note": "A4", "frequency": 440, "confidence": 0.9}]
			}`)
		case "busy":
			io.WriteString(w, `{"song_code": "busy", "status": "processing", "notes": null}`)
		case "broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("PUT /api/melody/{id}/sync-offset", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "ready" {
			http.NotFound(w, r)
			return
		}
		var body struct {
			SyncOffset float64 `json:"syncOffset"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		*saved = body.SyncOffset
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, saved
}

func TestHTTPProviderReady(t *testing.T) {
	srv, _ := newBackend(t)
	p := NewHTTPProvider(srv.URL+"/", srv.Client())

	ref, err := p.Melody(context.Background(), "ready")
	if err != nil {
		t.Fatal(err)
	}
	if !ref.Ready() || ref.Title != "Ready Song" || ref.SyncOffset != 0.5 {
		t.Fatalf("unexpected reference: %+v", ref)
	}
	if len(ref.Notes) != 1 || ref.Notes[0].Midi != 69 || ref.Notes[0].Duration != 1 {
		t.Fatalf("unexpected notes: %+v", ref.Notes)
	}
}

func TestHTTPProviderStatuses(t *testing.T) {
	srv, _ := newBackend(t)
	p := NewHTTPProvider(srv.URL, nil)
	ctx := context.Background()

	ref, err := p.Melody(ctx, "busy")
	if err != nil || ref.Status != StatusProcessing {
		t.Fatalf("expected processing, got %+v %v", ref, err)
	}
	ref, err = p.Melody(ctx, "missing")
	if err != nil || ref.Status != StatusUnavailable {
		t.Fatalf("expected unavailable on 404, got %+v %v", ref, err)
	}
	if _, err := p.Melody(ctx, "broken"); err == nil {
		t.Fatalf("expected an error on 500")
	}
}

func TestHTTPProviderSaveOffset(t *testing.T) {
	srv, saved := newBackend(t)
	p := NewHTTPProvider(srv.URL, srv.Client())
	ctx := context.Background()

	if err := p.SaveSyncOffset(ctx, "ready", -2.5); err != nil {
		t.Fatal(err)
	}
	if *saved != -2.5 {
		t.Fatalf("expected -2.5 sent, got %.2f", *saved)
	}
	if err := p.SaveSyncOffset(ctx, "missing", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestParseStatus(t *testing.T) {
	cases := map[string]Status{
		"":           StatusReady,
		"completed":  StatusReady,
		"ready":      StatusReady,
		"processing": StatusProcessing,
		"failed":     StatusUnavailable,
	}
	for in, want := range cases {
		if got := parseStatus(in); got != want {
			t.Fatalf("%q: expected %s, got %s", in, want, got)
		}
	}
}
