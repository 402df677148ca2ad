package services

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"testing"

	"github.com/dmitrijs2005/molecheck/internal/client/client"
	"github.com/dmitrijs2005/molecheck/internal/client/models"
	"github.com/dmitrijs2005/molecheck/internal/client/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isAuth(err error) bool { return client.IsAuth(err) }

// ---- fake API ----

type fakeAPI struct {
	ClassifyRet models.ClassificationResult
	ClassifyErr error
	SaveErr     error
	ListRet     []models.DiagnosticRecord
	ListErr     error
	DeleteErr   error

	records map[int64]bool

	LastUserID   models.UserID
	LastImage    []byte
	LastImageURL string
	SaveCalls    int
	DeleteCalls  int
}

func (f *fakeAPI) Classify(_ context.Context, image []byte, userID models.UserID) (models.ClassificationResult, error) {
	f.LastImage, f.LastUserID = image, userID
	return f.ClassifyRet, f.ClassifyErr
}

func (f *fakeAPI) SaveReport(_ context.Context, imageURL string, result models.ClassificationResult, userID models.UserID) (models.DiagnosticRecord, error) {
	f.SaveCalls++
	f.LastImageURL, f.LastUserID = imageURL, userID
	if f.SaveErr != nil {
		return models.DiagnosticRecord{}, f.SaveErr
	}
	return models.DiagnosticRecord{ID: 1, ImageURL: imageURL, Result: result.PredictedClass, UserID: userID}, nil
}

func (f *fakeAPI) ListDiagnostics(_ context.Context, userID models.UserID) ([]models.DiagnosticRecord, error) {
	f.LastUserID = userID
	return f.ListRet, f.ListErr
}

func (f *fakeAPI) DeleteDiagnostic(_ context.Context, id int64) (bool, error) {
	f.DeleteCalls++
	if f.DeleteErr != nil {
		return false, f.DeleteErr
	}
	if !f.records[id] {
		return false, nil
	}
	delete(f.records, id)
	return true, nil
}

type confirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f confirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) { return f(ctx, prompt) }

func always(answer bool) Confirmer {
	return confirmFunc(func(context.Context, string) (bool, error) { return answer, nil })
}

func signedIn() *fakeSessions {
	return &fakeSessions{SignedIn: true, Sess: models.Session{User: models.User{ID: 7, Email: "a@b.com"}, Token: "T"}}
}

func pending(t *testing.T) *upload.Pending {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))))
	p, err := upload.FromBytes("mole.png", buf.Bytes())
	require.NoError(t, err)
	return p
}

// ---- tests ----

func TestSubmit(t *testing.T) {
	api := &fakeAPI{ClassifyRet: models.ClassificationResult{PredictedClass: "nv"}}
	svc := NewDiagnosticService(api, signedIn())
	img := pending(t)

	res, err := svc.Submit(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, "nv", res.PredictedClass)
	assert.Equal(t, models.UserID(7), api.LastUserID)
	assert.Equal(t, img.Bytes(), api.LastImage)
	assert.False(t, img.Empty())
}

func TestSubmit_ServerErrorAddsNothing(t *testing.T) {
	api := &fakeAPI{ClassifyErr: &client.Error{Kind: client.KindServer, Status: 500}}
	fs := signedIn()
	svc := NewDiagnosticService(api, fs)

	_, err := svc.Submit(context.Background(), pending(t))
	var e *client.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, 500, e.Status)
	assert.Equal(t, client.KindServer, e.Kind)

	assert.Zero(t, api.SaveCalls)
	assert.Zero(t, fs.ForcedOuts)
	assert.True(t, fs.SignedIn)
}

func TestSubmit_RequiresImageAndSession(t *testing.T) {
	svc := NewDiagnosticService(&fakeAPI{}, signedIn())
	_, err := svc.Submit(context.Background(), nil)
	require.ErrorIs(t, err, ErrNothingToSubmit)

	svc = NewDiagnosticService(&fakeAPI{}, &fakeSessions{})
	_, err = svc.Submit(context.Background(), pending(t))
	require.ErrorIs(t, err, ErrNotSignedIn)
}

func TestSave_ResetsPendingUpload(t *testing.T) {
	api := &fakeAPI{}
	svc := NewDiagnosticService(api, signedIn())
	img := pending(t)
	b64 := img.Base64()

	rec, err := svc.Save(context.Background(), img, models.ClassificationResult{PredictedClass: "mel"})
	require.NoError(t, err)
	assert.Equal(t, b64, api.LastImageURL)
	assert.Equal(t, models.UserID(7), rec.UserID)
	assert.True(t, img.Empty())
}

func TestSave_FailureKeepsPendingUpload(t *testing.T) {
	api := &fakeAPI{SaveErr: &client.Error{Kind: client.KindNetwork}}
	svc := NewDiagnosticService(api, signedIn())
	img := pending(t)

	_, err := svc.Save(context.Background(), img, models.ClassificationResult{PredictedClass: "mel"})
	require.Error(t, err)
	assert.False(t, img.Empty())
}

func TestAuthErrorForcesSignOut(t *testing.T) {
	authErr := &client.Error{Kind: client.KindAuth, Status: 401}
	calls := map[string]func(DiagnosticService) error{
		"submit": func(s DiagnosticService) error {
			_, err := s.Submit(context.Background(), pending(t))
			return err
		},
		"history": func(s DiagnosticService) error {
			_, err := s.History(context.Background())
			return err
		},
		"delete": func(s DiagnosticService) error {
			_, err := s.Delete(context.Background(), 1, always(true))
			return err
		},
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			api := &fakeAPI{ClassifyErr: authErr, ListErr: authErr, DeleteErr: authErr}
			fs := signedIn()

			err := call(NewDiagnosticService(api, fs))
			require.ErrorIs(t, err, client.ErrUnauthorized)
			assert.Equal(t, 1, fs.ForcedOuts)
			assert.False(t, fs.SignedIn)
		})
	}
}

func TestHistory(t *testing.T) {
	api := &fakeAPI{ListRet: []models.DiagnosticRecord{{ID: 9}, {ID: 5}}}
	svc := NewDiagnosticService(api, signedIn())

	records, err := svc.History(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, models.UserID(7), api.LastUserID)
}

func TestDelete_TwiceIsHarmless(t *testing.T) {
	api := &fakeAPI{records: map[int64]bool{3: true, 4: true}}
	svc := NewDiagnosticService(api, signedIn())

	out, err := svc.Delete(context.Background(), 3, always(true))
	require.NoError(t, err)
	assert.Equal(t, Deleted, out)

	out, err = svc.Delete(context.Background(), 3, always(true))
	require.NoError(t, err)
	assert.Equal(t, AlreadyGone, out)

	assert.Len(t, api.records, 1)
}

func TestDelete_DeclinedSendsNothing(t *testing.T) {
	api := &fakeAPI{records: map[int64]bool{3: true}}
	svc := NewDiagnosticService(api, signedIn())

	var prompt string
	out, err := svc.Delete(context.Background(), 3, confirmFunc(func(_ context.Context, p string) (bool, error) {
		prompt = p
		return false, nil
	}))
	require.NoError(t, err)
	assert.Equal(t, Cancelled, out)
	assert.Equal(t, "Delete diagnosis #3?", prompt)
	assert.Zero(t, api.DeleteCalls)
}

func TestDelete_ConfirmError(t *testing.T) {
	svc := NewDiagnosticService(&fakeAPI{}, signedIn())
	_, err := svc.Delete(context.Background(), 3, confirmFunc(func(context.Context, string) (bool, error) {
		return false, errors.New("eof")
	}))
	require.ErrorContains(t, err, "confirm: eof")
}

func TestDeleteOutcome_String(t *testing.T) {
	assert.Equal(t, "already deleted", AlreadyGone.String())
	assert.Equal(t, "DeleteOutcome(5)", DeleteOutcome(5).String())
}
