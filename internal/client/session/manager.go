package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/molecheck/internal/client/client"
	"github.com/dmitrijs2005/molecheck/internal/client/models"
	"github.com/dmitrijs2005/molecheck/internal/client/store"
	"github.com/dmitrijs2005/molecheck/internal/logging"
)

var (
	ErrNotStarted = errors.New("session manager not started")
	ErrNoToken    = client.ErrNoToken
)

// Authenticator performs the remote login and registration calls.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (models.Session, error)
	Register(ctx context.Context, email, password, name string) (models.Session, error)
}

// Store persists the session pair.
type Store interface {
	Load(ctx context.Context) (store.Saved, error)
	Save(ctx context.Context, user []byte, token string) error
	Clear(ctx context.Context) error
	Token(ctx context.Context) (string, error)
}

// Manager is the single source of truth for the current session. Its
// methods are safe for concurrent use; state transitions are serialized.
type Manager struct {
	auth   Authenticator
	store  Store
	logger logging.Logger
	now    func() time.Time

	// op serializes Start, SignIn, SignUp and SignOut.
	op sync.Mutex

	mu      sync.Mutex
	snap    Snapshot
	session models.Session
	subs    map[int]chan Snapshot
	nextSub int
}

func NewManager(auth Authenticator, st Store, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Manager{
		auth:   auth,
		store:  st,
		logger: logger.With("component", "session"),
		now:    time.Now,
		subs:   make(map[int]chan Snapshot),
	}
}

// Start loads the persisted session. A missing, partial, corrupt or expired
// entry is cleared and the manager settles as unauthenticated; this is not
// reported as an error. Calling Start again is a no-op.
func (m *Manager) Start(ctx context.Context) error {
	m.op.Lock()
	defer m.op.Unlock()

	if m.Current().State != StateUninitialized {
		return nil
	}
	m.set(Snapshot{State: StateLoading}, models.Session{})

	sess, reason := m.restore(ctx)
	if reason != "" {
		m.logger.Info(ctx, "no usable stored session", "reason", reason)
		m.clearStore(ctx)
		m.set(Snapshot{State: StateUnauthenticated}, models.Session{})
		return nil
	}

	m.logger.Info(ctx, "session restored", "user_id", sess.UserID())
	m.set(Snapshot{State: StateAuthenticated, User: sess.User}, sess)
	return nil
}

// restore returns the stored session or a reason why there is none.
func (m *Manager) restore(ctx context.Context) (models.Session, string) {
	saved, err := m.store.Load(ctx)
	switch {
	case errors.Is(err, store.ErrNoSession):
		return models.Session{}, "missing"
	case err != nil:
		m.logger.Error(ctx, "reading stored session failed", "error", err)
		return models.Session{}, "unreadable"
	}

	var user models.User
	if err := json.Unmarshal(saved.User, &user); err != nil || user.ID == 0 {
		return models.Session{}, "corrupt profile"
	}
	if tokenExpired(saved.Token, m.now()) {
		return models.Session{}, "token expired"
	}
	return models.Session{User: user.Normalize(), Token: saved.Token}, ""
}

// SignIn logs in and persists the session. On failure the stored session
// is cleared, the manager becomes unauthenticated and the error is
// returned unchanged.
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	return m.authenticate(ctx, "sign in", func() (models.Session, error) {
		return m.auth.Login(ctx, email, password)
	})
}

// SignUp registers and persists the session; same contract as SignIn.
func (m *Manager) SignUp(ctx context.Context, email, password, name string) error {
	return m.authenticate(ctx, "sign up", func() (models.Session, error) {
		return m.auth.Register(ctx, email, password, name)
	})
}

func (m *Manager) authenticate(ctx context.Context, op string, call func() (models.Session, error)) error {
	m.op.Lock()
	defer m.op.Unlock()

	if m.Current().State == StateUninitialized {
		return ErrNotStarted
	}
	m.set(Snapshot{State: StateLoading}, models.Session{})

	sess, err := call()
	if err == nil && sess.Token == "" {
		err = ErrNoToken
	}
	if err == nil {
		err = m.persist(ctx, sess)
	}
	if err != nil {
		m.logger.Info(ctx, op+" failed", "error", err)
		m.clearStore(ctx)
		m.set(Snapshot{State: StateUnauthenticated}, models.Session{})
		return err
	}

	m.logger.Info(ctx, op+" succeeded", "user_id", sess.UserID())
	m.set(Snapshot{State: StateAuthenticated, User: sess.User}, sess)
	return nil
}

func (m *Manager) persist(ctx context.Context, sess models.Session) error {
	user, err := json.Marshal(sess.User)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := m.store.Save(ctx, user, sess.Token); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// SignOut clears the store and becomes unauthenticated. Store failures are
// logged only.
func (m *Manager) SignOut(ctx context.Context) {
	m.op.Lock()
	defer m.op.Unlock()

	m.clearStore(ctx)
	m.set(Snapshot{State: StateUnauthenticated}, models.Session{})
	m.logger.Info(ctx, "signed out")
}

// HandleAuthFailure signs out when err is an auth-kind API error and
// reports whether it did.
func (m *Manager) HandleAuthFailure(ctx context.Context, err error) bool {
	if !client.IsAuth(err) {
		return false
	}
	m.logger.Warn(ctx, "forced sign-out", "error", err)
	m.SignOut(ctx)
	return true
}

// Token reads the bearer token from the store on every call.
func (m *Manager) Token(ctx context.Context) (string, error) {
	token, err := m.store.Token(ctx)
	if errors.Is(err, store.ErrNoSession) {
		return "", ErrNoToken
	}
	return token, err
}

func (m *Manager) Current() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// Session returns the in-memory session when authenticated.
func (m *Manager) Session() (models.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session, m.snap.State == StateAuthenticated
}

// Subscribe returns a channel that receives the current snapshot and every
// later change. A slow reader only ever sees the latest snapshot. cancel
// closes the channel.
func (m *Manager) Subscribe() (<-chan Snapshot, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	ch := make(chan Snapshot, 1)
	ch <- m.snap
	m.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

func (m *Manager) set(snap Snapshot, sess models.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snap = snap
	m.session = sess
	for _, ch := range m.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (m *Manager) clearStore(ctx context.Context) {
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Warn(ctx, "clearing stored session failed", "error", err)
	}
}
