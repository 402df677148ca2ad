// Package models defines the client-side data shapes shared by the session
// manager, the API clients and the CLI.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DefaultRole is assumed when the server omits the role.
const DefaultRole = "patient"

// UserID is the backend's numeric user identifier. The backend sends it
// either as a JSON number or as a numeric string; both decode here.
type UserID int64

func (id UserID) String() string { return strconv.FormatInt(int64(id), 10) }

func (id *UserID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(s)
	}
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user id %s: %w", string(b), err)
	}
	*id = UserID(v)
	return nil
}

// User is the authenticated user's profile as returned by the auth service.
type User struct {
	ID    UserID `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// Normalize fills in the fields older backend revisions leave out: the
// role defaults to DefaultRole and the name to the email's local part.
func (u User) Normalize() User {
	if u.Role == "" {
		u.Role = DefaultRole
	}
	if u.Name == "" {
		u.Name, _, _ = strings.Cut(u.Email, "@")
	}
	return u
}

// Session is the authenticated identity plus its bearer token. It is
// always replaced as a whole, never patched.
type Session struct {
	User  User
	Token string
}

func (s Session) UserID() UserID { return s.User.ID }
