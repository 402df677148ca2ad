package cli

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/molecheck/internal/apistub"
	"github.com/dmitrijs2005/molecheck/internal/client/client"
	"github.com/dmitrijs2005/molecheck/internal/client/config"
	"github.com/dmitrijs2005/molecheck/internal/client/models"
	"github.com/dmitrijs2005/molecheck/internal/client/services"
	"github.com/dmitrijs2005/molecheck/internal/client/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	stub      *apistub.Server
	url       string
	storePath string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	stub := apistub.New(apistub.WithBcryptCost(bcrypt.MinCost))
	srv := httptest.NewServer(stub.Echo())
	t.Cleanup(srv.Close)

	origPassword := getPassword
	getPassword = func(io.Writer) (string, error) { return "secret1", nil }
	t.Cleanup(func() { getPassword = origPassword })

	return &testEnv{
		stub:      stub,
		url:       srv.URL,
		storePath: filepath.Join(t.TempDir(), "session.db"),
	}
}

func (e *testEnv) config() *config.Config {
	return &config.Config{
		APIBaseURL:     e.url,
		RequestTimeout: 5 * time.Second,
		StorePath:      e.storePath,
		LogLevel:       "info",
	}
}

func (e *testEnv) newApp(t *testing.T, input string, opts ...Option) (*App, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	opts = append([]Option{WithIO(strings.NewReader(input), out), WithConfirmer(AlwaysConfirm{})}, opts...)
	a, err := NewApp(context.Background(), e.config(), nil, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, out
}

func writePNG(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 120, G: 60, B: 30, A: 255})

	path := filepath.Join(t.TempDir(), "mole.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func TestApp_RegisterDiagnoseSaveHistoryDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, out := env.newApp(t, "Ana\nana@example.com\n")

	require.False(t, a.isLoggedIn())
	require.NoError(t, a.Register(ctx))
	assert.Contains(t, out.String(), "Welcome, Ana!")
	assert.True(t, a.isLoggedIn())
	assert.Equal(t, "(ana@example.com)", a.getStatus())

	out.Reset()
	require.NoError(t, a.Diagnose(ctx, writePNG(t), false))
	assert.Contains(t, out.String(), "Analyzing")
	assert.Contains(t, out.String(), "png, 4x3")
	assert.Contains(t, out.String(), "Diagnosis:")
	assert.Contains(t, out.String(), "70.0% confidence")
	assert.Contains(t, out.String(), "Use 'save'")
	assert.Equal(t, 0, env.stub.RecordCount())

	out.Reset()
	require.NoError(t, a.Save(ctx))
	assert.Contains(t, out.String(), "Saved as diagnosis #1.")
	assert.Equal(t, 1, env.stub.RecordCount())

	out.Reset()
	err := a.Save(ctx)
	assert.ErrorIs(t, err, errNothingToSave)

	out.Reset()
	require.NoError(t, a.History(ctx))
	assert.Contains(t, out.String(), "CONFIDENCE")
	assert.Contains(t, out.String(), "70.0%")

	out.Reset()
	require.NoError(t, a.Delete(ctx, 1, nil))
	assert.Contains(t, out.String(), "Diagnosis #1 deleted.")

	out.Reset()
	require.NoError(t, a.Delete(ctx, 1, nil))
	assert.Contains(t, out.String(), "Diagnosis #1 was already deleted.")

	out.Reset()
	require.NoError(t, a.History(ctx))
	assert.Contains(t, out.String(), "No saved diagnoses.")
}

func TestApp_DiagnoseOneShotPointsToSaveFlag(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, out := env.newApp(t, "Ana\nana@example.com\n", WithOneShot())
	require.NoError(t, a.Register(ctx))

	out.Reset()
	require.NoError(t, a.Diagnose(ctx, writePNG(t), false))
	assert.Contains(t, out.String(), "Run again with --save")
	assert.NotContains(t, out.String(), "Use 'save'")
	assert.ErrorIs(t, a.Save(ctx), errNothingToSave)
	assert.Equal(t, 0, env.stub.RecordCount())
}

func TestApp_PromptFailuresAreReported(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a, out := env.newApp(t, "")
	err := a.Register(ctx)
	require.ErrorIs(t, err, io.EOF)
	assert.Contains(t, out.String(), "Error: reading input: EOF")

	getPassword = func(io.Writer) (string, error) { return "", errors.New("not a terminal") }
	out.Reset()
	err = a.Login(ctx, "ana@example.com", "")
	require.Error(t, err)
	assert.Contains(t, out.String(), "Error: reading input: not a terminal")
	assert.False(t, a.isLoggedIn())
}

func TestApp_DiagnoseWithSave(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, out := env.newApp(t, "Ana\nana@example.com\n")
	require.NoError(t, a.Register(ctx))

	out.Reset()
	require.NoError(t, a.Diagnose(ctx, writePNG(t), true))
	assert.Contains(t, out.String(), "Saved as diagnosis #1.")
	assert.NotContains(t, out.String(), "Use 'save'")
	assert.Equal(t, 1, env.stub.RecordCount())
}

func TestApp_SessionSurvivesRestart(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, _ := env.newApp(t, "Ana\nana@example.com\n")
	require.NoError(t, first.Register(ctx))
	require.NoError(t, first.Close())

	second, out := env.newApp(t, "")
	assert.True(t, second.isLoggedIn())
	require.NoError(t, second.Whoami(ctx))
	assert.Equal(t, "Ana <ana@example.com>, patient, id 1\n", out.String())

	out.Reset()
	require.NoError(t, second.History(ctx))
	assert.Contains(t, out.String(), "No saved diagnoses.")
}

func TestApp_LogoutClearsPersistedSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, out := env.newApp(t, "Ana\nana@example.com\n")
	require.NoError(t, first.Register(ctx))
	require.NoError(t, first.Logout(ctx))
	assert.Contains(t, out.String(), "Signed out.")
	require.NoError(t, first.Close())

	second, out := env.newApp(t, "")
	assert.False(t, second.isLoggedIn())
	require.NoError(t, second.Whoami(ctx))
	assert.Equal(t, "Not signed in.\n", out.String())
}

func TestApp_RevokedTokenForcesSignOut(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a, out := env.newApp(t, "Ana\nana@example.com\n")
	require.NoError(t, a.Register(ctx))

	env.stub.RevokeAll()
	out.Reset()
	err := a.History(ctx)
	require.Error(t, err)
	assert.True(t, client.IsAuth(err))
	assert.Contains(t, out.String(), "Could not validate credentials")
	assert.False(t, a.isLoggedIn())

	out.Reset()
	assert.ErrorIs(t, a.History(ctx), errSignInRequired)
	assert.Contains(t, out.String(), "sign in required")

	require.NoError(t, a.Close())
	b, _ := env.newApp(t, "")
	assert.False(t, b.isLoggedIn())
}

func TestApp_ProtectedCommandsNeedSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, out := env.newApp(t, "")

	assert.ErrorIs(t, a.History(ctx), errSignInRequired)
	assert.ErrorIs(t, a.Diagnose(ctx, writePNG(t), false), errSignInRequired)
	assert.ErrorIs(t, a.Delete(ctx, 1, nil), errSignInRequired)
	assert.ErrorIs(t, a.Save(ctx), errSignInRequired)
	assert.Contains(t, out.String(), "sign in required: use 'login' or 'register'")

	out.Reset()
	require.NoError(t, a.Labels(ctx))
	assert.Contains(t, out.String(), "LABEL")
}

func TestApp_LoginWhenSignedIn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, _ := env.newApp(t, "Ana\nana@example.com\n")
	require.NoError(t, a.Register(ctx))

	assert.ErrorIs(t, a.Login(ctx, "ana@example.com", "secret1"), errAlreadySignedIn)
	assert.ErrorIs(t, a.Register(ctx), errAlreadySignedIn)
}

func TestApp_LoginFlows(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	reg, _ := env.newApp(t, "Ana\nana@example.com\n")
	require.NoError(t, reg.Register(ctx))
	require.NoError(t, reg.Logout(ctx))

	a, out := env.newApp(t, "ana@example.com\n")

	err := a.Login(ctx, "ana@example.com", "wrong-password")
	require.Error(t, err)
	assert.Contains(t, out.String(), "Incorrect email or password")
	assert.False(t, a.isLoggedIn())

	out.Reset()
	err = a.Login(ctx, "not-an-email", "secret1")
	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, out.String(), "Invalid input: ")

	out.Reset()
	require.NoError(t, a.Login(ctx, "", ""))
	assert.Contains(t, out.String(), "Enter email")
	assert.Contains(t, out.String(), "Signed in as ana@example.com.")
	assert.True(t, a.isLoggedIn())
}

func TestApp_ServerDown(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(apistub.New(apistub.WithBcryptCost(bcrypt.MinCost)).Echo())
	env.url = srv.URL
	srv.Close()

	a, out := env.newApp(t, "")
	err := a.Login(context.Background(), "ana@example.com", "secret1")
	require.Error(t, err)
	assert.True(t, client.IsNetwork(err))
	assert.Contains(t, out.String(), "Connection problem: cannot reach the server")
	assert.False(t, a.isLoggedIn())
}

func TestApp_DeleteDeclined(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, out := env.newApp(t, "Ana\nana@example.com\nn\n", WithConfirmer(nil))

	require.NoError(t, a.Register(ctx))
	require.NoError(t, a.Diagnose(ctx, writePNG(t), true))

	out.Reset()
	require.NoError(t, a.Delete(ctx, 1, nil))
	assert.Contains(t, out.String(), "Delete diagnosis #1? [y/N]")
	assert.Contains(t, out.String(), "Cancelled.")
	assert.Equal(t, 1, env.stub.RecordCount())
}

func TestApp_DiagnoseBadFile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, out := env.newApp(t, "Ana\nana@example.com\n")
	require.NoError(t, a.Register(ctx))

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o600))

	out.Reset()
	err := a.Diagnose(ctx, path, false)
	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, out.String(), "Invalid input: ")
	assert.Equal(t, 0, env.stub.RecordCount())
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"validation", &validation.Error{Field: "email", Message: "is required"}, "Invalid input: "},
		{"auth", &client.Error{Kind: client.KindAuth, Message: "bad creds"}, "bad creds"},
		{"network", &client.Error{Kind: client.KindNetwork, Message: "down"}, "Connection problem: down"},
		{"server", &client.Error{Kind: client.KindServer, Message: "boom"}, "Something went wrong: boom"},
		{"local", &client.Error{Kind: client.KindLocal, Message: "cannot read the saved session"}, "Local session problem: cannot read"},
		{"sentinel", errNothingToSave, errNothingToSave.Error()},
		{"no image", services.ErrNothingToSubmit, services.ErrNothingToSubmit.Error()},
		{"other", errors.New("x"), "Error: x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, strings.HasPrefix(describe(tt.err), tt.want), describe(tt.err))
		})
	}
}

func TestRenderHistory(t *testing.T) {
	conf := 0.42
	records := []models.DiagnosticRecord{
		{ID: 2, Result: `{"predicted_class":"mel","probabilities":{"mel":0.9,"nv":0.1}}`},
		{ID: 1, Result: "{broken", Confidence: &conf},
	}

	var buf bytes.Buffer
	renderHistory(&buf, records)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "DIAGNOSIS")
	assert.Contains(t, lines[1], "unknown date")
	assert.Contains(t, lines[1], "(mel)")
	assert.Contains(t, lines[1], "90.0%")
	assert.Contains(t, lines[2], " ? ")
	assert.Contains(t, lines[2], "42.0%")
}

func TestRenderResult(t *testing.T) {
	var buf bytes.Buffer
	renderResult(&buf, models.ClassificationResult{
		PredictedClass: "nv",
		Probabilities:  map[string]float64{"nv": 0.5, "mel": 0.3, "bkl": 0.2},
	})
	s := buf.String()
	assert.Contains(t, s, "(nv), 50.0% confidence")
	assert.Less(t, strings.Index(s, "  nv"), strings.Index(s, "  mel"))
	assert.Less(t, strings.Index(s, "  mel"), strings.Index(s, "  bkl"))
}

func TestBar(t *testing.T) {
	assert.Equal(t, "", bar(0))
	assert.Equal(t, strings.Repeat("#", barWidth), bar(1))
	assert.Equal(t, strings.Repeat("#", barWidth), bar(1.5))
	assert.Equal(t, "", bar(-1))
	assert.Equal(t, strings.Repeat("#", 10), bar(0.5))
}
