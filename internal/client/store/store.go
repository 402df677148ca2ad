package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/molecheck/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/molecheck/internal/dbx"
	"github.com/dmitrijs2005/molecheck/internal/filex"
	"github.com/dmitrijs2005/molecheck/internal/logging"
	"golang.org/x/sync/errgroup"
)

// Keys of the persisted session entries. KeyLegacyToken was used by older
// client builds; it is read as a fallback and removed on every clear.
const (
	KeyUser        = "user"
	KeyToken       = "token"
	KeyLegacyToken = "userToken"
)

// ErrNoSession is returned when the user profile or the token is missing.
var ErrNoSession = errors.New("no stored session")

// Saved is the raw persisted pair. User is the serialized profile; decoding
// it is the caller's business.
type Saved struct {
	User  []byte
	Token string
}

// SessionStore persists the session pair in the metadata table.
type SessionStore struct {
	db     *sql.DB
	repo   metadata.Repository
	logger logging.Logger
}

// New wraps an already migrated database.
func New(db *sql.DB, logger logging.Logger) *SessionStore {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &SessionStore{
		db:     db,
		repo:   metadata.NewSQLiteRepository(db),
		logger: logger.With("component", "store"),
	}
}

// Open creates the parent directory of path if needed, opens the SQLite
// database there and migrates it. path may be ":memory:".
func Open(ctx context.Context, path string, logger logging.Logger) (*SessionStore, error) {
	if err := filex.EnsureParentDir(path); err != nil {
		return nil, err
	}
	db, err := dbx.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db, logger), nil
}

func (s *SessionStore) Close() error {
	return s.db.Close()
}

// Load reads the profile and the token concurrently. It returns
// ErrNoSession when either is absent or empty.
func (s *SessionStore) Load(ctx context.Context) (Saved, error) {
	var saved Saved

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.repo.Get(gctx, KeyUser)
		if err != nil {
			return err
		}
		saved.User = v
		return nil
	})
	g.Go(func() error {
		v, err := readToken(gctx, s.repo)
		if err != nil {
			return err
		}
		saved.Token = v
		return nil
	})
	if err := g.Wait(); err != nil {
		return Saved{}, fmt.Errorf("load session: %w", err)
	}

	if len(saved.User) == 0 || saved.Token == "" {
		if keys, err := s.Keys(ctx); err == nil && len(keys) > 0 {
			s.logger.Debug(ctx, "incomplete session in store", "keys", keys)
		}
		return Saved{}, ErrNoSession
	}
	return saved, nil
}

// Keys lists the stored entry names, sorted. Values are not returned so
// the result is safe to log.
func (s *SessionStore) Keys(ctx context.Context) ([]string, error) {
	entries, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list session keys: %w", err)
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Save replaces the stored pair in one transaction and drops any legacy
// token entry.
func (s *SessionStore) Save(ctx context.Context, user []byte, token string) error {
	if len(user) == 0 || token == "" {
		return errors.New("save session: empty user or token")
	}
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		if err := repo.Set(ctx, KeyUser, user); err != nil {
			return err
		}
		if err := repo.Set(ctx, KeyToken, []byte(token)); err != nil {
			return err
		}
		return repo.Delete(ctx, KeyLegacyToken)
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	s.logger.Debug(ctx, "session saved")
	return nil
}

// Clear removes both entries and the legacy token key.
func (s *SessionStore) Clear(ctx context.Context) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return metadata.NewSQLiteRepository(tx).Delete(ctx, KeyUser, KeyToken, KeyLegacyToken)
	})
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.logger.Debug(ctx, "session cleared")
	return nil
}

// Token returns the stored bearer token. It reads the database on every
// call so a token saved by a later sign-in is picked up immediately.
func (s *SessionStore) Token(ctx context.Context) (string, error) {
	token, err := readToken(ctx, s.repo)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	if token == "" {
		return "", ErrNoSession
	}
	return token, nil
}

func readToken(ctx context.Context, repo metadata.Repository) (string, error) {
	v, err := repo.Get(ctx, KeyToken)
	if err != nil {
		return "", err
	}
	if len(v) > 0 {
		return string(v), nil
	}
	v, err = repo.Get(ctx, KeyLegacyToken)
	if err != nil {
		return "", err
	}
	return string(v), nil
}
