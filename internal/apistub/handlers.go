package apistub

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

// createdAtLayout mirrors the backend, which sends naive UTC timestamps.
const createdAtLayout = "2006-01-02T15:04:05.000000"

type userResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type authResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        userResponse `json:"user"`
}

type loginRequest struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name"`
}

type diagnosisRequest struct {
	ImageURL string `json:"image_url" validate:"required"`
	UserID   int64  `json:"user_id" validate:"required"`
}

type saveRequest struct {
	ImageURL string `json:"image_url" validate:"required"`
	Result   string `json:"result" validate:"required"`
	UserID   int64  `json:"user_id" validate:"required"`
}

type recordResponse struct {
	ID        int64  `json:"id"`
	ImageURL  string `json:"image_url"`
	Result    string `json:"result"`
	CreatedAt string `json:"created_at"`
	UserID    int64  `json:"user_id"`
}

func toRecordResponse(r *record) recordResponse {
	return recordResponse{
		ID:        r.ID,
		ImageURL:  r.ImageURL,
		Result:    r.Result,
		CreatedAt: r.CreatedAt.UTC().Format(createdAtLayout),
		UserID:    r.UserID,
	}
}

func (s *Server) authenticated(c echo.Context, u *user) error {
	token, err := s.issueToken(u)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, authResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        userResponse{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role},
	})
}

func (s *Server) login(c echo.Context) error {
	req := loginRequest{
		Username: c.FormValue("username"),
		Password: c.FormValue("password"),
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	s.mu.Lock()
	u, ok := s.users[strings.ToLower(strings.TrimSpace(req.Username))]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(req.Password)) != nil {
		return detailError(http.StatusUnauthorized, "Incorrect email or password")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated(c, u)
}

func (s *Server) register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[email]; exists {
		return detailError(http.StatusBadRequest, "Email already registered")
	}
	s.nextUser++
	u := &user{
		ID:           s.nextUser,
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		Role:         "patient",
		PasswordHash: hash,
	}
	s.users[email] = u
	return s.authenticated(c, u)
}

func (s *Server) getDiagnosis(c echo.Context) error {
	var req diagnosisRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if req.UserID != currentUser(c).ID {
		return detailError(http.StatusForbidden, "Not enough permissions")
	}

	image, err := base64.StdEncoding.DecodeString(req.ImageURL)
	if err != nil || len(image) == 0 {
		return detailError(http.StatusBadRequest, "Invalid image data")
	}

	result, err := s.classify(image)
	if err != nil {
		s.logger.Error(c.Request().Context(), "classification failed", "error", err)
		return detailError(http.StatusInternalServerError, "Classification failed")
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) saveDiagnostic(c echo.Context) error {
	var req saveRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if req.UserID != currentUser(c).ID {
		return detailError(http.StatusForbidden, "Not enough permissions")
	}
	if !json.Valid([]byte(req.Result)) {
		return detailError(http.StatusUnprocessableEntity, "result must be a JSON document")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextRec++
	r := &record{
		ID:        s.nextRec,
		ImageURL:  req.ImageURL,
		Result:    req.Result,
		CreatedAt: s.now(),
		UserID:    req.UserID,
	}
	s.records[r.ID] = r
	return c.JSON(http.StatusOK, toRecordResponse(r))
}

func (s *Server) listDiagnostics(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return detailError(http.StatusUnprocessableEntity, "user id must be an integer")
	}
	if id != currentUser(c).ID {
		return detailError(http.StatusForbidden, "Not enough permissions")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.userRecords(id)
	out := make([]recordResponse, len(recs))
	for i, r := range recs {
		out[i] = toRecordResponse(r)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) deleteDiagnostic(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return detailError(http.StatusUnprocessableEntity, "diagnostic id must be an integer")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok || r.UserID != currentUser(c).ID {
		return detailError(http.StatusNotFound, "Diagnostic not found")
	}
	delete(s.records, id)
	return c.JSON(http.StatusOK, map[string]any{"ok": true, "id": id})
}
