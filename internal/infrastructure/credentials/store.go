// Package credentials keeps an immutable snapshot of provider secrets that
// is loaded once at startup and replaced only by an explicit refresh.
package credentials

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ProviderCredentials are the secrets for one provider.
type ProviderCredentials struct {
	Provider      string
	WebhookSecret string
	ClientID      string
	ClientSecret  string
	TokenURL      string
	APIBaseURL    string
}

// HasClient reports whether client-credentials lookups are possible.
func (c ProviderCredentials) HasClient() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Snapshot is one loaded credential set. It is never mutated.
type Snapshot struct {
	Version   uint64
	LoadedAt  time.Time
	Source    string
	providers map[string]ProviderCredentials
}

func (s *Snapshot) Get(provider string) (ProviderCredentials, bool) {
	c, ok := s.providers[provider]
	return c, ok
}

// Providers returns how many providers the snapshot holds.
func (s *Snapshot) Providers() int {
	return len(s.providers)
}

// Store serves the current snapshot. Reads are lock free.
type Store struct {
	source   Source
	base     Source
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger

	current   atomic.Pointer[Snapshot]
	refreshMu sync.Mutex
}

type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithRefreshInterval sets how long a snapshot stays fresh. Zero disables
// periodic refresh; Refresh still works on demand.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Store) { s.interval = d }
}

// WithBase layers source over base: a field the source leaves empty keeps
// the base value.
func WithBase(base Source) Option {
	return func(s *Store) { s.base = base }
}

func NewStore(source Source, logger *zap.Logger, opts ...Option) *Store {
	s := &Store{
		source: source,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load performs the initial load. Unlike Refresh it has no previous
// snapshot to fall back on, so any failure is returned.
func (s *Store) Load(ctx context.Context) error {
	_, err := s.Refresh(ctx)
	return err
}

// Current returns the active snapshot, or an empty one before Load.
func (s *Store) Current() *Snapshot {
	if snap := s.current.Load(); snap != nil {
		return snap
	}
	return &Snapshot{providers: map[string]ProviderCredentials{}}
}

func (s *Store) Get(provider string) (ProviderCredentials, bool) {
	return s.Current().Get(provider)
}

// Stale reports whether the refresh interval has elapsed since the current
// snapshot was loaded.
func (s *Store) Stale() bool {
	if s.interval <= 0 {
		return false
	}
	snap := s.current.Load()
	if snap == nil {
		return true
	}
	return !s.now().Before(snap.LoadedAt.Add(s.interval))
}

// Refresh reloads from the source and swaps the snapshot in. On failure the
// previous snapshot stays active.
func (s *Store) Refresh(ctx context.Context) (*Snapshot, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	loaded, err := s.source.Load(ctx)
	if err != nil {
		s.logger.Error("Failed to load provider credentials",
			zap.String("source", s.source.Name()),
			zap.Error(err))
		return s.current.Load(), fmt.Errorf("failed to load credentials from %s: %w", s.source.Name(), err)
	}

	if s.base != nil {
		base, err := s.base.Load(ctx)
		if err != nil {
			return s.current.Load(), fmt.Errorf("failed to load base credentials: %w", err)
		}
		loaded = merge(base, loaded)
	}

	var version uint64 = 1
	if prev := s.current.Load(); prev != nil {
		version = prev.Version + 1
	}
	snap := &Snapshot{
		Version:   version,
		LoadedAt:  s.now(),
		Source:    s.source.Name(),
		providers: loaded,
	}
	s.current.Store(snap)

	s.logger.Info("Provider credentials loaded",
		zap.String("source", snap.Source),
		zap.Uint64("version", snap.Version),
		zap.Int("providers", len(loaded)))
	return snap, nil
}

// RefreshIfStale refreshes only when Stale reports true.
func (s *Store) RefreshIfStale(ctx context.Context) (bool, error) {
	if !s.Stale() {
		return false, nil
	}
	_, err := s.Refresh(ctx)
	return err == nil, err
}

// Run checks staleness on every tick until ctx is done. tick defaults to a
// tenth of the refresh interval.
func (s *Store) Run(ctx context.Context, tick time.Duration) {
	if s.interval <= 0 {
		return
	}
	if tick <= 0 {
		tick = s.interval / 10
		if tick < time.Second {
			tick = time.Second
		}
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// errors are logged by Refresh; the old snapshot stays active
			_, _ = s.RefreshIfStale(ctx)
		}
	}
}

func merge(base, over map[string]ProviderCredentials) map[string]ProviderCredentials {
	out := make(map[string]ProviderCredentials, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		b := out[k]
		b.Provider = k
		b.WebhookSecret = pick(v.WebhookSecret, b.WebhookSecret)
		b.ClientID = pick(v.ClientID, b.ClientID)
		b.ClientSecret = pick(v.ClientSecret, b.ClientSecret)
		b.TokenURL = pick(v.TokenURL, b.TokenURL)
		b.APIBaseURL = pick(v.APIBaseURL, b.APIBaseURL)
		out[k] = b
	}
	return out
}

func pick(preferred, fallback string) string {
	if preferred != "" {
		return preferred
	}
	return fallback
}
