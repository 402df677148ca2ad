package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/molecheck/internal/client/guard"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

func inputError(err error) error {
	return fmt.Errorf("reading input: %w", err)
}

// Register prompts for name, email and password and creates an account.
func (a *App) Register(ctx context.Context) error {
	if err := a.enter(guard.GroupAuth); err != nil {
		return a.report(err)
	}

	name, err := getSimpleText(a.reader, "Enter name", a.out)
	if err != nil {
		return a.report(inputError(err))
	}
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return a.report(inputError(err))
	}
	password, err := getPassword(a.out)
	if err != nil {
		return a.report(inputError(err))
	}

	if err := a.auth.SignUp(ctx, email, password, name); err != nil {
		return a.report(err)
	}
	a.guard.Enter(guard.GroupProtected)

	user, _ := a.auth.Whoami()
	fmt.Fprintf(a.out, "Welcome, %s!\n", user.Name)
	return nil
}

// Login prompts for credentials unless email and password are both given.
func (a *App) Login(ctx context.Context, email, password string) error {
	if err := a.enter(guard.GroupAuth); err != nil {
		return a.report(err)
	}

	var err error
	if email == "" {
		if email, err = getSimpleText(a.reader, "Enter email", a.out); err != nil {
			return a.report(inputError(err))
		}
	}
	if password == "" {
		if password, err = getPassword(a.out); err != nil {
			return a.report(inputError(err))
		}
	}

	if err := a.auth.SignIn(ctx, email, password); err != nil {
		return a.report(err)
	}
	a.guard.Enter(guard.GroupProtected)

	user, _ := a.auth.Whoami()
	fmt.Fprintf(a.out, "Signed in as %s.\n", user.Email)
	return nil
}

// Logout always succeeds.
func (a *App) Logout(ctx context.Context) error {
	a.auth.SignOut(ctx)
	a.discardPending()
	a.guard.Enter(guard.GroupAuth)
	fmt.Fprintln(a.out, "Signed out.")
	return nil
}

func (a *App) Whoami(ctx context.Context) error {
	user, ok := a.auth.Whoami()
	if !ok {
		fmt.Fprintln(a.out, "Not signed in.")
		return nil
	}
	fmt.Fprintf(a.out, "%s <%s>, %s, id %s\n", user.Name, user.Email, user.Role, user.ID)
	return nil
}
