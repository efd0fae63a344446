// Package identity holds the process-wide session: the signed-in user, the
// bearer token issued by the identity provider, and change notifications
// for components that keep user-scoped state.
package identity

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"stonklytics/internal/domain"
)

// Listener receives the user after every session transition: sign-in,
// token refresh (same user), and sign-out (nil). Listeners must not change
// the session from inside the callback.
type Listener func(user *domain.User)

// Session is the single session observable. It is safe for concurrent use.
type Session struct {
	mu    sync.RWMutex
	user  *domain.User
	token string
	log   *slog.Logger

	// notifyMu serializes transitions so listeners observe them in order.
	notifyMu sync.Mutex

	subsMu    sync.Mutex
	nextSubID int
	subs      map[int]Listener
}

// NewSession creates a signed-out session.
func NewSession(log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		log:  log,
		subs: make(map[int]Listener),
	}
}

// Current returns a copy of the signed-in user, or nil.
func (s *Session) Current() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// SignedIn reports whether a user is present.
func (s *Session) SignedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// Token returns the current bearer token. It fails with
// domain.ErrUnauthenticated when nobody is signed in.
func (s *Session) Token(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil || s.token == "" {
		return "", domain.ErrUnauthenticated
	}
	return s.token, nil
}

// SignIn installs user and token and notifies listeners.
func (s *Session) SignIn(user domain.User, token string) {
	s.transition(func() *domain.User {
		u := user
		s.user = &u
		s.token = token
		return &u
	})
	s.log.Info("session signed in", "user", user.ID)
}

// RefreshToken swaps the token of the current user and notifies listeners.
// It is a no-op when signed out.
func (s *Session) RefreshToken(token string) {
	s.transition(func() *domain.User {
		if s.user == nil {
			return nil
		}
		s.token = token
		u := *s.user
		return &u
	})
}

// SignOut clears the session and notifies listeners with nil.
func (s *Session) SignOut() {
	s.transition(func() *domain.User {
		s.user = nil
		s.token = ""
		return nil
	})
	s.log.Info("session signed out")
}

func (s *Session) transition(apply func() *domain.User) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	wasSignedIn := s.user != nil
	user := apply()
	s.mu.Unlock()

	if user == nil && !wasSignedIn {
		return
	}
	for _, fn := range s.listeners() {
		var u *domain.User
		if user != nil {
			cp := *user
			u = &cp
		}
		fn(u)
	}
}

// listeners returns subscribers in subscription order.
func (s *Session) listeners() []Listener {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Listener, len(ids))
	for i, id := range ids {
		out[i] = s.subs[id]
	}
	return out
}

// Subscribe registers fn for session transitions. Close the returned
// subscription to stop receiving them.
func (s *Session) Subscribe(fn Listener) *Subscription {
	s.subsMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = fn
	s.subsMu.Unlock()
	return &Subscription{session: s, id: id}
}

func (s *Session) unsubscribe(id int) {
	s.subsMu.Lock()
	delete(s.subs, id)
	s.subsMu.Unlock()
}

// Subscription is a registered listener. Close is idempotent.
type Subscription struct {
	session *Session
	id      int
	once    sync.Once
}

// Close removes the listener.
func (sub *Subscription) Close() error {
	sub.once.Do(func() { sub.session.unsubscribe(sub.id) })
	return nil
}
