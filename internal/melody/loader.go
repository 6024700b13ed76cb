package melody

import (
	"context"
	"log/slog"
	"sync"
)

// Loader fetches one song's melody in the background so the render loop never
// waits on the provider. Until the fetch resolves Reference reports false.
type Loader struct {
	provider Provider
	logger   *slog.Logger

	once sync.Once
	done chan struct{}

	mu     sync.RWMutex
	ref    Reference
	loaded bool
}

// NewLoader creates a loader bound to provider.
func NewLoader(provider Provider, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{provider: provider, logger: logger, done: make(chan struct{})}
}

// Start begins the fetch. Only the first call has an effect; a melody is
// fetched once per session. Provider errors degrade to StatusUnavailable.
func (l *Loader) Start(ctx context.Context, songID string) {
	l.once.Do(func() {
		go func() {
			defer close(l.done)

			ref, err := l.provider.Melody(ctx, songID)
			if err != nil {
				l.logger.Warn("melody fetch failed", "song", songID, "err", err)
				ref = Unavailable(songID)
			}
			l.logger.Info("melody loaded", "song", songID, "status", ref.Status, "notes", len(ref.Notes), "offset", ref.SyncOffset)

			l.mu.Lock()
			l.ref = ref
			l.loaded = true
			l.mu.Unlock()
		}()
	})
}

// Reference returns the fetched melody without blocking.
func (l *Loader) Reference() (Reference, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.ref, l.loaded
}

// Done is closed once the fetch has resolved.
func (l *Loader) Done() <-chan struct{} {
	return l.done
}

// SaveOffset persists offset without blocking the caller. The returned
// channel receives the outcome exactly once.
func (l *Loader) SaveOffset(ctx context.Context, songID string, offset float64) <-chan error {
	result := make(chan error, 1)
	go func() {
		err := l.provider.SaveSyncOffset(ctx, songID, offset)
		if err != nil {
			l.logger.Warn("sync offset not saved", "song", songID, "offset", offset, "err", err)
		} else {
			l.logger.Info("sync offset saved", "song", songID, "offset", offset)
			l.mu.Lock()
			if l.loaded && l.ref.SongID == songID {
				l.ref.SyncOffset = offset
			}
			l.mu.Unlock()
		}
		result <- err
	}()
	return result
}
