package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stonklytics/internal/domain"
)

func TestSessionTransitions(t *testing.T) {
	s := NewSession(nil)
	var seen []string
	sub := s.Subscribe(func(u *domain.User) {
		if u == nil {
			seen = append(seen, "nil")
			return
		}
		seen = append(seen, u.ID)
	})
	defer sub.Close()

	s.SignIn(domain.User{ID: "u1", Email: "a@example.com"}, "tok-1")
	s.RefreshToken("tok-2")
	s.SignOut()

	assert.Equal(t, []string{"u1", "u1", "nil"}, seen)
	assert.Nil(t, s.Current())
	assert.False(t, s.SignedIn())
}

func TestSessionToken(t *testing.T) {
	s := NewSession(nil)
	_, err := s.Token(context.Background())
	assert.True(t, errors.Is(err, domain.ErrUnauthenticated))

	s.SignIn(domain.User{ID: "u1"}, "tok-1")
	tok, err := s.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	s.RefreshToken("tok-2")
	tok, _ = s.Token(context.Background())
	assert.Equal(t, "tok-2", tok)
}

func TestSessionSignOutWhenSignedOutIsSilent(t *testing.T) {
	s := NewSession(nil)
	calls := 0
	sub := s.Subscribe(func(*domain.User) { calls++ })
	defer sub.Close()

	s.SignOut()
	s.RefreshToken("x")
	assert.Zero(t, calls)
}

func TestSubscriptionClose(t *testing.T) {
	s := NewSession(nil)
	calls := 0
	sub := s.Subscribe(func(*domain.User) { calls++ })

	s.SignIn(domain.User{ID: "u1"}, "t")
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	s.SignOut()

	assert.Equal(t, 1, calls)
}

func TestCurrentReturnsCopy(t *testing.T) {
	s := NewSession(nil)
	s.SignIn(domain.User{ID: "u1", Email: "a@example.com"}, "t")

	u := s.Current()
	u.Email = "changed"
	assert.Equal(t, "a@example.com", s.Current().Email)
}

func TestListenersRunInSubscriptionOrder(t *testing.T) {
	s := NewSession(nil)
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		sub := s.Subscribe(func(*domain.User) { order = append(order, i) })
		defer sub.Close()
	}
	s.SignIn(domain.User{ID: "u1"}, "t")
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}
