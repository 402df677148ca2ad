package guard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/molecheck/internal/client/models"
	"github.com/dmitrijs2005/molecheck/internal/client/session"
	"github.com/dmitrijs2005/molecheck/internal/client/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		state session.State
		group Group
		want  Decision
	}{
		{session.StateUninitialized, GroupProtected, Wait},
		{session.StateLoading, GroupAuth, Wait},
		{session.StateLoading, GroupProtected, Wait},
		{session.StateAuthenticated, GroupProtected, Stay},
		{session.StateAuthenticated, GroupAuth, RedirectMain},
		{session.StateUnauthenticated, GroupAuth, Stay},
		{session.StateUnauthenticated, GroupProtected, RedirectSignIn},
	}
	for _, tt := range tests {
		t.Run(tt.state.String()+"/"+tt.group.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.state, tt.group))
		})
	}
}

type fakeAuth struct{}

func (fakeAuth) Login(context.Context, string, string) (models.Session, error) {
	return models.Session{User: models.User{ID: 1, Email: "a@b.com"}, Token: "T"}, nil
}

func (fakeAuth) Register(context.Context, string, string, string) (models.Session, error) {
	return models.Session{User: models.User{ID: 1, Email: "a@b.com"}, Token: "T"}, nil
}

func newManager(t *testing.T) *session.Manager {
	t.Helper()
	st, err := store.Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return session.NewManager(fakeAuth{}, st, nil)
}

func TestSignOut_ThenProtectedRedirectsFromAnyState(t *testing.T) {
	setups := map[string]func(t *testing.T, m *session.Manager){
		"uninitialized": func(*testing.T, *session.Manager) {},
		"unauthenticated": func(t *testing.T, m *session.Manager) {
			require.NoError(t, m.Start(context.Background()))
		},
		"authenticated": func(t *testing.T, m *session.Manager) {
			require.NoError(t, m.Start(context.Background()))
			require.NoError(t, m.SignIn(context.Background(), "a@b.com", "secret"))
		},
	}
	for name, setup := range setups {
		t.Run(name, func(t *testing.T) {
			m := newManager(t)
			setup(t, m)

			m.SignOut(context.Background())

			g := New(m, GroupProtected, nil)
			assert.Equal(t, RedirectSignIn, g.Enter(GroupProtected))
			assert.Equal(t, GroupAuth, g.Group())
		})
	}
}

func TestEnter_AuthenticatedLeavesSignIn(t *testing.T) {
	m := newManager(t)
	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.SignIn(context.Background(), "a@b.com", "secret"))

	notified := false
	g := New(m, GroupAuth, func(Decision, Group) { notified = true })

	assert.Equal(t, RedirectMain, g.Enter(GroupAuth))
	assert.Equal(t, GroupProtected, g.Group())
	assert.Equal(t, Stay, g.Enter(GroupProtected))
	assert.False(t, notified)
}

func TestEnter_WaitsWhileLoading(t *testing.T) {
	m := newManager(t)
	g := New(m, GroupAuth, nil)

	assert.Equal(t, Wait, g.Enter(GroupProtected))
	assert.Equal(t, GroupProtected, g.Group())
}

func TestRun_RedirectsOnSessionChange(t *testing.T) {
	m := newManager(t)
	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.SignIn(context.Background(), "a@b.com", "secret"))

	redirects := make(chan Decision, 4)
	g := New(m, GroupProtected, func(d Decision, _ Group) { redirects <- d })

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = g.Run(ctx)
	}()

	m.SignOut(context.Background())

	select {
	case d := <-redirects:
		assert.Equal(t, RedirectSignIn, d)
	case <-time.After(2 * time.Second):
		t.Fatal("guard did not react to sign-out")
	}
	assert.Equal(t, GroupAuth, g.Group())

	cancel()
	wg.Wait()
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "redirect to sign-in", RedirectSignIn.String())
	assert.Equal(t, "Decision(9)", Decision(9).String())
	assert.Equal(t, "Group(7)", Group(7).String())
}
