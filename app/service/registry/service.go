package registry

import (
	"context"
	"errors"
	"fitagent/app/config"
	"fitagent/app/service/conversation"
	"log/slog"
	"sync"
	"time"

	"github.com/elliotchance/pie/v2"
	"github.com/google/uuid"
	"github.com/samber/do"
)

var ErrNotFound = errors.New("session not found")

var _ do.Shutdownable = (*Service)(nil)

// Service owns the state of every live session, keyed by session ID.
type Service struct {
	start func(id string) *conversation.State
	ttl   time.Duration

	mu       sync.RWMutex
	sessions map[string]*conversation.State
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)
	conversationSvc := do.MustInvoke[*conversation.Service](di)

	return NewRegistry(conversationSvc.Start, cfg.Server.SessionTTL), nil
}

func NewRegistry(start func(id string) *conversation.State, ttl time.Duration) *Service {
	return &Service{
		start:    start,
		ttl:      ttl,
		sessions: make(map[string]*conversation.State),
	}
}

func (s *Service) Get(id string) (*conversation.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}

	return st, nil
}

// GetOrCreate returns the session with the given ID. Unknown or expired IDs
// get a fresh empty session under a newly generated ID.
func (s *Service) GetOrCreate(id string) *conversation.State {
	if id != "" {
		if st, err := s.Get(id); err == nil {
			return st
		}
	}

	return s.create()
}

// Reset drops the session and starts a new empty one under a new ID.
func (s *Service) Reset(id string) *conversation.State {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()

	return s.create()
}

func (s *Service) create() *conversation.State {
	st := s.start(uuid.NewString())

	s.mu.Lock()
	s.sessions[st.ID()] = st
	s.mu.Unlock()

	slog.Debug("Session started", "session", st.ID())

	return st
}

func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

// Cleanup evicts sessions idle for longer than the TTL and returns how many were evicted.
func (s *Service) Cleanup(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	expired := pie.Filter(pie.Keys(s.sessions), func(id string) bool {
		return s.sessions[id].IdleSince(now) > s.ttl
	})

	for _, id := range expired {
		delete(s.sessions, id)
	}

	return len(expired)
}

func (s *Service) RunCleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.Cleanup(now); n > 0 {
				slog.Info("Evicted idle sessions", "count", n, "remaining", s.Len())
			}
		}
	}
}

func (s *Service) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.sessions)

	return nil
}
