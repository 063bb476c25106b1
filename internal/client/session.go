package client

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"finance-tracker/internal/models"
)

type authAPI interface {
	Me(ctx context.Context) (*models.Identity, error)
	Logout(ctx context.Context) error
}

// SessionContext holds who is logged in for the lifetime of an app run.
//
// The identity is looked up once. Until that lookup finishes Loading reports
// true and consumers should not show anything that needs a login. A failed
// lookup of any kind means nobody is logged in.
type SessionContext struct {
	api  authAPI
	once sync.Once
	done chan struct{}

	mu          sync.Mutex
	identity    *models.Identity
	loading     bool
	subscribers map[int]func(*models.Identity)
	nextID      int
}

// NewSessionContext creates a SessionContext that has not loaded yet.
func NewSessionContext(api authAPI) *SessionContext {
	return &SessionContext{
		api:         api,
		done:        make(chan struct{}),
		loading:     true,
		subscribers: make(map[int]func(*models.Identity)),
	}
}

// Load asks the server who is logged in. Only the first call does any work;
// concurrent callers wait for it to finish.
func (s *SessionContext) Load(ctx context.Context) {
	s.once.Do(func() {
		identity, err := s.api.Me(ctx)
		if err != nil {
			if !errors.Is(err, ErrUnauthenticated) {
				logrus.WithError(err).Debug("session lookup failed")
			}
			identity = nil
		}

		s.mu.Lock()
		s.identity = identity
		s.loading = false
		s.mu.Unlock()
		close(s.done)

		s.notify(identity)
	})
}

// Loading reports whether the first lookup is still pending.
func (s *SessionContext) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Identity returns the logged in identity, or nil.
func (s *SessionContext) Identity() *models.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Wait blocks until the first lookup has finished or ctx is done.
func (s *SessionContext) Wait(ctx context.Context) (*models.Identity, error) {
	select {
	case <-s.done:
		return s.Identity(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Logout ends the session on the server and then forgets the identity,
// whether or not the server call worked. The server error is returned for
// reporting only.
func (s *SessionContext) Logout(ctx context.Context) error {
	err := s.api.Logout(ctx)

	s.mu.Lock()
	s.identity = nil
	s.mu.Unlock()

	s.notify(nil)
	return err
}

// Subscribe registers fn to be called with the identity whenever it changes.
// The returned function removes the subscription.
func (s *SessionContext) Subscribe(fn func(*models.Identity)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *SessionContext) notify(identity *models.Identity) {
	s.mu.Lock()
	fns := make([]func(*models.Identity), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(identity)
	}
}
