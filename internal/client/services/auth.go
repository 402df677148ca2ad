// Package services contains the application services used by the CLI.
// This file defines the authentication service: input validation in front
// of the session manager's sign-in, sign-up and sign-out.
package services

import (
	"context"

	"github.com/dmitrijs2005/molecheck/internal/client/models"
	"github.com/dmitrijs2005/molecheck/internal/client/session"
	"github.com/dmitrijs2005/molecheck/internal/client/validation"
)

// SessionManager is the part of session.Manager the services depend on.
type SessionManager interface {
	SignIn(ctx context.Context, email, password string) error
	SignUp(ctx context.Context, email, password, name string) error
	SignOut(ctx context.Context)
	Current() session.Snapshot
	Session() (models.Session, bool)
	HandleAuthFailure(ctx context.Context, err error) bool
}

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - SignIn / SignUp: validate input locally (a *validation.Error never
//     reaches the network), then authenticate through the session manager.
//     Auth and network failures are returned as *client.Error.
//   - SignOut: always succeeds.
//   - Whoami: the signed-in user, if any.
type AuthService interface {
	SignIn(ctx context.Context, email, password string) error
	SignUp(ctx context.Context, email, password, name string) error
	SignOut(ctx context.Context)
	Whoami() (models.User, bool)
}

type authService struct {
	sessions SessionManager
}

func NewAuthService(sessions SessionManager) AuthService {
	return &authService{sessions: sessions}
}

func (a *authService) SignIn(ctx context.Context, email, password string) error {
	c := validation.Credentials{Email: email, Password: password}
	if err := validation.ValidateCredentials(&c); err != nil {
		return err
	}
	return a.sessions.SignIn(ctx, c.Email, c.Password)
}

func (a *authService) SignUp(ctx context.Context, email, password, name string) error {
	r := validation.Registration{Name: name, Email: email, Password: password}
	if err := validation.ValidateRegistration(&r); err != nil {
		return err
	}
	return a.sessions.SignUp(ctx, r.Email, r.Password, r.Name)
}

func (a *authService) SignOut(ctx context.Context) {
	a.sessions.SignOut(ctx)
}

func (a *authService) Whoami() (models.User, bool) {
	s, ok := a.sessions.Session()
	return s.User, ok
}
