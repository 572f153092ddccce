package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/logging"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/provider"
)

// Destroyer tears down provider environments.
type Destroyer interface {
	Destroy(ctx context.Context, id string) error
}

// Store holds at most one Session and the manifest of files written into it.
// It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	destroy  Destroyer
	gen      uint64
	current  *Session
	manifest map[string]struct{}
}

// NewStore creates an empty Store that destroys replaced environments with d.
func NewStore(d Destroyer) *Store {
	return &Store{
		destroy:  d,
		manifest: make(map[string]struct{}),
	}
}

// Replace tears down the current environment, clears the manifest and
// installs an empty session shell in StatusProvisioning. The teardown is
// best-effort: a failure is logged and does not block the new session.
// Handles returned by earlier calls become stale.
func (s *Store) Replace(ctx context.Context) *Handle {
	s.mu.Lock()
	prior := s.current
	s.gen++
	s.current = &Session{Status: StatusProvisioning}
	s.manifest = make(map[string]struct{})
	h := &Handle{store: s, gen: s.gen}
	s.mu.Unlock()

	s.teardown(ctx, prior)
	return h
}

// Current returns a copy of the active session, or nil.
func (s *Store) Current() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	cp := *s.current
	return &cp
}

// DestroyCurrent removes the active session and tears its environment down.
// It returns the removed session, or nil when there was none. Teardown
// errors are logged, never returned.
func (s *Store) DestroyCurrent(ctx context.Context) *Session {
	s.mu.Lock()
	prior := s.current
	s.gen++
	s.current = nil
	s.manifest = make(map[string]struct{})
	s.mu.Unlock()

	s.teardown(ctx, prior)
	return prior
}

// DestroyIf removes the active session only if its ID is id, so a check
// made against a snapshot never tears down a newer session. It returns the
// removed session, or nil.
func (s *Store) DestroyIf(ctx context.Context, id string) *Session {
	s.mu.Lock()
	if s.current == nil || s.current.ID != id {
		s.mu.Unlock()
		return nil
	}
	prior := s.current
	s.gen++
	s.current = nil
	s.manifest = make(map[string]struct{})
	s.mu.Unlock()

	s.teardown(ctx, prior)
	return prior
}

// Shutdown clears the store on process exit.
func (s *Store) Shutdown(ctx context.Context) {
	if prior := s.DestroyCurrent(ctx); prior != nil {
		logging.Info("cleared sandbox session on shutdown", "session", prior.ID)
	}
}

func (s *Store) teardown(ctx context.Context, prior *Session) {
	if prior == nil || prior.EnvironmentID == "" || s.destroy == nil {
		return
	}
	logging.Info("destroying previous sandbox", "session", prior.ID, "env", prior.EnvironmentID)
	if err := s.destroy.Destroy(ctx, prior.EnvironmentID); err != nil {
		logging.Warn("failed to destroy previous sandbox", "env", prior.EnvironmentID, "error", err)
	}
}

// Manifest returns the sorted paths written into the active session.
func (s *Store) Manifest() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, 0, len(s.manifest))
	for p := range s.manifest {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// HasFile reports whether path is in the manifest.
func (s *Store) HasFile(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.manifest[path]
	return ok
}

// TrackFile adds path to the manifest of the active session. It returns
// false when there is no session to track it against.
func (s *Store) TrackFile(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return false
	}
	s.manifest[path] = struct{}{}
	return true
}

// Handle is a bootstrap's write access to the session it created. Once a
// later Replace or DestroyCurrent supersedes it, every method is a no-op
// returning false.
type Handle struct {
	store *Store
	gen   uint64
}

// update applies fn to the session if h is still current.
func (h *Handle) update(fn func(s *Session)) bool {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	if h.store.gen != h.gen || h.store.current == nil {
		return false
	}
	fn(h.store.current)
	return true
}

// Valid reports whether the handle still owns the active session.
func (h *Handle) Valid() bool {
	return h.update(func(*Session) {})
}

// SetEnvironment records the provisioned environment. A provider that does
// not report an id gets a locally generated session id.
func (h *Handle) SetEnvironment(providerName string, env *provider.Environment, expiresAt time.Time) bool {
	return h.update(func(s *Session) {
		s.ID = env.ID
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		s.EnvironmentID = env.ID
		s.Provider = providerName
		s.Host = env.Host
		s.URL = env.URL
		s.CreatedAt = env.CreatedAt
		s.ExpiresAt = expiresAt
	})
}

// SetStatus moves the session to a new lifecycle stage.
func (h *Handle) SetStatus(status Status) bool {
	return h.update(func(s *Session) { s.Status = status })
}

// SeedManifest replaces the manifest with paths.
func (h *Handle) SeedManifest(paths []string) bool {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	if h.store.gen != h.gen || h.store.current == nil {
		return false
	}
	h.store.manifest = make(map[string]struct{}, len(paths))
	for _, p := range paths {
		h.store.manifest[p] = struct{}{}
	}
	return true
}

// SetInstallOutcome records how dependency installation ended.
func (h *Handle) SetInstallOutcome(o InstallOutcome) bool {
	return h.update(func(s *Session) { s.Install = o })
}

// SetServerOutcome records how the dev server launch ended.
func (h *Handle) SetServerOutcome(o ServerOutcome, pid int) bool {
	return h.update(func(s *Session) {
		s.Server = o
		s.DevServerPID = pid
	})
}

// MarkReady completes the bootstrap and returns a copy of the session.
// It returns nil if the handle is stale.
func (h *Handle) MarkReady() *Session {
	var ready *Session
	h.update(func(s *Session) {
		s.Status = StatusReady
		cp := *s
		ready = &cp
	})
	return ready
}

// Abandon removes the session after a fatal bootstrap error so no partial
// session stays installed. The environment itself is the caller's to
// destroy.
func (h *Handle) Abandon() bool {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	if h.store.gen != h.gen || h.store.current == nil {
		return false
	}
	h.store.current = nil
	h.store.manifest = make(map[string]struct{})
	return true
}

// Snapshot returns a copy of the session if the handle is still current.
func (h *Handle) Snapshot() *Session {
	var snap *Session
	h.update(func(s *Session) {
		cp := *s
		snap = &cp
	})
	return snap
}
