package apistub

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/molecheck/internal/logging"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/crypto/bcrypt"
)

// Classification is the stub model's output.
type Classification struct {
	PredictedClass string             `json:"predicted_class"`
	Probabilities  map[string]float64 `json:"probabilities"`
}

// Classifier turns image bytes into a classification. An error becomes a
// 500 response.
type Classifier func(image []byte) (Classification, error)

var classes = []string{"nv", "mel", "bkl", "bcc", "akiec", "df", "vasc"}

// HashClassifier picks a class from the image's SHA-256 so the same image
// always gets the same answer.
func HashClassifier(image []byte) (Classification, error) {
	sum := sha256.Sum256(image)
	top := int(binary.BigEndian.Uint32(sum[:4]) % uint32(len(classes)))

	probs := make(map[string]float64, len(classes))
	rest := 0.3 / float64(len(classes)-1)
	for i, c := range classes {
		if i == top {
			probs[c] = 0.7
		} else {
			probs[c] = rest
		}
	}
	return Classification{PredictedClass: classes[top], Probabilities: probs}, nil
}

type user struct {
	ID           int64
	Email        string
	Name         string
	Role         string
	PasswordHash []byte
}

type record struct {
	ID        int64     `json:"id"`
	ImageURL  string    `json:"image_url"`
	Result    string    `json:"result"`
	CreatedAt time.Time `json:"-"`
	UserID    int64     `json:"user_id"`
}

// Server holds the stub's state. Safe for concurrent use.
type Server struct {
	secret     []byte
	tokenTTL   time.Duration
	bcryptCost int
	classify   Classifier
	logger     logging.Logger
	now        func() time.Time

	mu       sync.Mutex
	users    map[string]*user
	sessions map[string]string // token id -> email
	records  map[int64]*record
	nextUser int64
	nextRec  int64
}

type Option func(*Server)

func WithClassifier(c Classifier) Option { return func(s *Server) { s.classify = c } }

// WithBcryptCost sets the password hashing cost; tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option { return func(s *Server) { s.bcryptCost = cost } }

func WithTokenTTL(ttl time.Duration) Option { return func(s *Server) { s.tokenTTL = ttl } }

func WithLogger(l logging.Logger) Option { return func(s *Server) { s.logger = l } }

func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

func New(opts ...Option) *Server {
	s := &Server{
		secret:     []byte(uuid.NewString()),
		tokenTTL:   time.Hour,
		bcryptCost: bcrypt.DefaultCost,
		classify:   HashClassifier,
		logger:     logging.NewNopLogger(),
		now:        time.Now,
		users:      make(map[string]*user),
		sessions:   make(map[string]string),
		records:    make(map[int64]*record),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Echo builds an echo instance with every route registered.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/"
		},
		LogMethod:    true,
		LogURI:       true,
		LogRoutePath: true,
		LogStatus:    true,
		LogLatency:   true,
		LogError:     true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			args := []any{
				"method", v.Method, "uri", v.URI, "route", v.RoutePath,
				"status", v.Status, "latency", v.Latency, "request_id", v.RequestID,
			}
			if v.Error != nil {
				s.logger.Warn(c.Request().Context(), "request failed", append(args, "error", v.Error)...)
				return nil
			}
			s.logger.Info(c.Request().Context(), "request", args...)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Pre(middleware.RemoveTrailingSlash())
	e.Validator = newEchoValidator()
	e.HTTPErrorHandler = errorHandler

	s.SetRoutes(e)
	return e
}

func (s *Server) SetRoutes(e *echo.Echo) {
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "molecheck API stub is running")
	})

	e.POST("/auth/login", s.login)
	e.POST("/auth/register", s.register)

	e.POST("/diagnostic/get_diagnosis", s.getDiagnosis, s.requireBearer)
	e.POST("/diagnostic/post", s.saveDiagnostic, s.requireBearer)
	e.GET("/diagnostics/user/:id", s.listDiagnostics, s.requireBearer)
	e.DELETE("/diagnostic/:id", s.deleteDiagnostic, s.requireBearer)
}

// RevokeAll invalidates every token issued so far; requests carrying one
// get a 401. Tokens issued afterwards work normally.
func (s *Server) RevokeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.sessions)
}

// RecordCount returns the number of stored diagnoses.
func (s *Server) RecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// errorHandler renders every error as {"detail": ...}.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	var detail any = "Internal Server Error"

	var vf *validationFailure
	var he *echo.HTTPError
	switch {
	case errors.As(err, &vf):
		status, detail = http.StatusUnprocessableEntity, vf.items
	case errors.As(err, &he):
		status = he.Code
		detail = fmt.Sprint(he.Message)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, map[string]any{"detail": detail})
}

func detailError(status int, msg string) error {
	return echo.NewHTTPError(status, msg)
}

// issueToken must be called with s.mu held.
func (s *Server) issueToken(u *user) (string, error) {
	sid := uuid.NewString()
	token, err := GenerateToken(u.Email, sid, s.secret, s.now(), s.tokenTTL)
	if err != nil {
		return "", err
	}
	s.sessions[sid] = u.Email
	return token, nil
}

type userKey struct{}

// requireBearer authenticates the request and stores the user in the
// request context.
func (s *Server) requireBearer(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		const prefix = "Bearer "
		h := c.Request().Header.Get(echo.HeaderAuthorization)
		if len(h) <= len(prefix) || h[:len(prefix)] != prefix {
			return detailError(http.StatusUnauthorized, "Not authenticated")
		}

		cl, err := ParseToken(h[len(prefix):], s.secret, s.now)
		if err != nil {
			return detailError(http.StatusUnauthorized, "Could not validate credentials")
		}

		s.mu.Lock()
		email, live := s.sessions[cl.ID]
		u, ok := s.users[email]
		s.mu.Unlock()
		if !live || !ok {
			return detailError(http.StatusUnauthorized, "Could not validate credentials")
		}

		ctx := context.WithValue(c.Request().Context(), userKey{}, u)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

func currentUser(c echo.Context) *user {
	u, _ := c.Request().Context().Value(userKey{}).(*user)
	return u
}

func (s *Server) userRecords(userID int64) []*record {
	out := make([]*record, 0)
	for _, r := range s.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
