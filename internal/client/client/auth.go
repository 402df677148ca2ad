package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/dmitrijs2005/molecheck/internal/client/models"
)

const (
	loginPath    = "/auth/login"
	registerPath = "/auth/register"

	msgLoginFailed    = "login failed"
	msgRegisterFailed = "registration failed"
	msgNoToken        = "no token received from server"
	msgNoUser         = "no user profile received from server"
)

// AuthClient performs the login and registration calls. It does not
// validate input and does not persist anything.
type AuthClient struct {
	t *Transport
}

func NewAuthClient(t *Transport) *AuthClient {
	return &AuthClient{t: t}
}

// Login posts form-encoded credentials (username=email) and returns the
// resulting session.
func (c *AuthClient) Login(ctx context.Context, email, password string) (models.Session, error) {
	res, err := c.t.do(ctx, request{
		method: http.MethodPost,
		path:   loginPath,
		form:   url.Values{"username": {email}, "password": {password}},
	})
	if err != nil {
		return models.Session{}, err
	}
	return decodeAuth(res, email, msgLoginFailed)
}

// Register creates the account and returns the resulting session.
func (c *AuthClient) Register(ctx context.Context, email, password, name string) (models.Session, error) {
	res, err := c.t.do(ctx, request{
		method: http.MethodPost,
		path:   registerPath,
		jsonBody: map[string]string{
			"email":    email,
			"password": password,
			"name":     name,
		},
	})
	if err != nil {
		return models.Session{}, err
	}
	return decodeAuth(res, email, msgRegisterFailed)
}

// authResponse accepts both the nested {access_token, user:{...}} shape and
// the flat {access_token, id, email, ...} shape.
type authResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	User        *models.User   `json:"user"`
	ID          *models.UserID `json:"id"`
	Email       string         `json:"email"`
	Name        string         `json:"name"`
	Role        string         `json:"role"`
}

func decodeAuth(res response, email, fallback string) (models.Session, error) {
	if !res.ok() {
		msg := errorMessage(res.body)
		if msg == "" {
			msg = fallback
		}
		return models.Session{}, &Error{Kind: KindAuth, Status: res.status, Message: msg}
	}

	var body authResponse
	if err := json.Unmarshal(res.body, &body); err != nil {
		return models.Session{}, &Error{Kind: KindAuth, Status: res.status, Message: fallback, Err: err}
	}
	if body.AccessToken == "" {
		return models.Session{}, &Error{Kind: KindAuth, Status: res.status, Message: msgNoToken}
	}

	var user models.User
	switch {
	case body.User != nil:
		user = *body.User
	case body.ID != nil:
		user = models.User{ID: *body.ID, Email: body.Email, Name: body.Name, Role: body.Role}
	}
	if user.ID == 0 {
		return models.Session{}, &Error{Kind: KindAuth, Status: res.status, Message: msgNoUser}
	}
	if user.Email == "" {
		user.Email = email
	}

	return models.Session{User: user.Normalize(), Token: body.AccessToken}, nil
}
