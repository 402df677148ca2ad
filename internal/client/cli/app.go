package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dmitrijs2005/molecheck/internal/client/client"
	"github.com/dmitrijs2005/molecheck/internal/client/config"
	"github.com/dmitrijs2005/molecheck/internal/client/guard"
	"github.com/dmitrijs2005/molecheck/internal/client/models"
	"github.com/dmitrijs2005/molecheck/internal/client/services"
	"github.com/dmitrijs2005/molecheck/internal/client/session"
	"github.com/dmitrijs2005/molecheck/internal/client/store"
	"github.com/dmitrijs2005/molecheck/internal/client/upload"
	"github.com/dmitrijs2005/molecheck/internal/client/validation"
	"github.com/dmitrijs2005/molecheck/internal/logging"
)

var (
	errSignInRequired  = errors.New("sign in required: use 'login' or 'register'")
	errAlreadySignedIn = errors.New("already signed in: use 'logout' first")
	errSessionLoading  = errors.New("session is still loading, try again")
	errNothingToSave   = errors.New("nothing to save: run 'diagnose <image>' first")
)

// App is the molecheck client: one session manager, the services built on
// it and the terminal it talks to.
type App struct {
	config   *config.Config
	logger   logging.Logger
	store    *store.SessionStore
	sessions *session.Manager
	auth     services.AuthService
	diag     services.DiagnosticService
	guard    *guard.Guard
	confirm  services.Confirmer
	reader   *bufio.Reader
	out      io.Writer

	pending *upload.Pending
	result  *models.ClassificationResult

	// oneShot is set when a single command runs and the process exits
	// afterwards, so nothing stays pending between commands.
	oneShot bool
}

type Option func(*App)

// WithIO replaces stdin/stdout.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(a *App) {
		a.reader = bufio.NewReader(in)
		a.out = out
	}
}

// WithOneShot marks the App as running a single command.
func WithOneShot() Option {
	return func(a *App) { a.oneShot = true }
}

// WithConfirmer replaces the interactive y/N prompt used by Delete.
func WithConfirmer(c services.Confirmer) Option {
	return func(a *App) { a.confirm = c }
}

// NewApp opens the session store, builds the API clients and loads the
// persisted session. The caller must Close the App.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	st, err := store.Open(ctx, c.StorePath, logger)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	topts := []client.Option{client.WithLogger(logger)}
	if c.Breaker.Enabled {
		topts = append(topts, client.WithBreaker(c.Breaker.MaxFailures, c.Breaker.OpenTimeout))
	}
	transport := client.NewTransport(c.APIBaseURL, c.RequestTimeout, topts...)

	sessions := session.NewManager(client.NewAuthClient(transport), st, logger)
	diagAPI := client.NewDiagnosticClient(transport, sessions)

	a := &App{
		config:   c,
		logger:   logger,
		store:    st,
		sessions: sessions,
		auth:     services.NewAuthService(sessions),
		diag:     services.NewDiagnosticService(diagAPI, sessions),
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
	}
	for _, o := range opts {
		o(a)
	}
	a.out = &lockedWriter{w: a.out}
	if a.confirm == nil {
		a.confirm = &promptConfirmer{reader: a.reader, out: a.out}
	}
	a.guard = guard.New(sessions, guard.GroupAuth, a.announce)

	if err := sessions.Start(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if sessions.Current().Authenticated() {
		a.guard.Enter(guard.GroupProtected)
	}
	return a, nil
}

func (a *App) Close() error {
	return a.store.Close()
}

func (a *App) isLoggedIn() bool {
	return a.sessions.Current().Authenticated()
}

func (a *App) getStatus() string {
	snap := a.sessions.Current()
	if snap.Authenticated() {
		return fmt.Sprintf("(%s)", snap.User.Email)
	}
	return fmt.Sprintf("(%s)", snap.State)
}

// WatchSession follows session changes until ctx is done; forced sign-outs
// are announced through the guard's navigator.
func (a *App) WatchSession(ctx context.Context) {
	if err := a.guard.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Warn(ctx, "session watcher stopped", "error", err)
	}
}

func (a *App) announce(d guard.Decision, _ guard.Group) {
	if d == guard.RedirectSignIn {
		fmt.Fprintln(a.out, "\nYou have been signed out. Use 'login' to continue.")
	}
}

// enter runs the guard for the command group about to execute.
func (a *App) enter(group guard.Group) error {
	switch a.guard.Enter(group) {
	case guard.Stay:
		return nil
	case guard.Wait:
		return errSessionLoading
	case guard.RedirectSignIn:
		a.discardPending()
		return errSignInRequired
	default:
		return errAlreadySignedIn
	}
}

func (a *App) discardPending() {
	if a.pending != nil {
		a.pending.Reset()
		a.pending = nil
	}
	a.result = nil
}

// lockedWriter lets the session watcher print while a command runs.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// report prints err as a user-facing message and returns it unchanged.
func (a *App) report(err error) error {
	if err != nil {
		fmt.Fprintln(a.out, describe(err))
	}
	return err
}

func describe(err error) string {
	var verr *validation.Error
	var cerr *client.Error
	switch {
	case errors.As(err, &verr):
		return "Invalid input: " + verr.Error()
	case errors.As(err, &cerr):
		switch cerr.Kind {
		case client.KindAuth:
			return cerr.Message
		case client.KindNetwork:
			return "Connection problem: " + cerr.Message
		case client.KindLocal:
			return "Local session problem: " + cerr.Message
		default:
			return "Something went wrong: " + cerr.Message
		}
	case errors.Is(err, errSignInRequired), errors.Is(err, errAlreadySignedIn),
		errors.Is(err, errSessionLoading), errors.Is(err, errNothingToSave),
		errors.Is(err, services.ErrNothingToSubmit):
		return err.Error()
	default:
		return "Error: " + err.Error()
	}
}
