package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/molecheck/internal/client/models"
	"github.com/dmitrijs2005/molecheck/internal/client/upload"
)

// ErrNotSignedIn is returned by DiagnosticService calls made without a
// session.
var ErrNotSignedIn = errors.New("sign in required")

// ErrNothingToSubmit is returned when no image has been selected.
var ErrNothingToSubmit = errors.New("no image selected")

// DiagnosticAPI is implemented by client.DiagnosticClient.
type DiagnosticAPI interface {
	Classify(ctx context.Context, image []byte, userID models.UserID) (models.ClassificationResult, error)
	SaveReport(ctx context.Context, imageURL string, result models.ClassificationResult, userID models.UserID) (models.DiagnosticRecord, error)
	ListDiagnostics(ctx context.Context, userID models.UserID) ([]models.DiagnosticRecord, error)
	DeleteDiagnostic(ctx context.Context, id int64) (bool, error)
}

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// DeleteOutcome is the result of DiagnosticService.Delete.
type DeleteOutcome int

const (
	Deleted DeleteOutcome = iota
	// AlreadyGone: the server no longer had the record.
	AlreadyGone
	// Cancelled: the user declined; nothing was sent.
	Cancelled
)

func (o DeleteOutcome) String() string {
	switch o {
	case Deleted:
		return "deleted"
	case AlreadyGone:
		return "already deleted"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("DeleteOutcome(%d)", int(o))
	}
}

// DiagnosticService runs the diagnosis workflow for the signed-in user.
// Any auth-kind API error signs the user out before it is returned.
type DiagnosticService interface {
	Submit(ctx context.Context, img *upload.Pending) (models.ClassificationResult, error)
	Save(ctx context.Context, img *upload.Pending, result models.ClassificationResult) (models.DiagnosticRecord, error)
	History(ctx context.Context) ([]models.DiagnosticRecord, error)
	Delete(ctx context.Context, id int64, confirm Confirmer) (DeleteOutcome, error)
}

type diagnosticService struct {
	api      DiagnosticAPI
	sessions SessionManager
}

func NewDiagnosticService(api DiagnosticAPI, sessions SessionManager) DiagnosticService {
	return &diagnosticService{api: api, sessions: sessions}
}

func (s *diagnosticService) userID() (models.UserID, error) {
	sess, ok := s.sessions.Session()
	if !ok {
		return 0, ErrNotSignedIn
	}
	return sess.UserID(), nil
}

func (s *diagnosticService) checkAuth(ctx context.Context, err error) error {
	if err != nil {
		s.sessions.HandleAuthFailure(ctx, err)
	}
	return err
}

func (s *diagnosticService) Submit(ctx context.Context, img *upload.Pending) (models.ClassificationResult, error) {
	if img.Empty() {
		return models.ClassificationResult{}, ErrNothingToSubmit
	}
	uid, err := s.userID()
	if err != nil {
		return models.ClassificationResult{}, err
	}

	res, err := s.api.Classify(ctx, img.Bytes(), uid)
	return res, s.checkAuth(ctx, err)
}

func (s *diagnosticService) Save(ctx context.Context, img *upload.Pending, result models.ClassificationResult) (models.DiagnosticRecord, error) {
	if img.Empty() {
		return models.DiagnosticRecord{}, ErrNothingToSubmit
	}
	uid, err := s.userID()
	if err != nil {
		return models.DiagnosticRecord{}, err
	}

	rec, err := s.api.SaveReport(ctx, img.Base64(), result, uid)
	if err != nil {
		return models.DiagnosticRecord{}, s.checkAuth(ctx, err)
	}
	img.Reset()
	return rec, nil
}

// History always refetches; the returned slice is a snapshot.
func (s *diagnosticService) History(ctx context.Context) ([]models.DiagnosticRecord, error) {
	uid, err := s.userID()
	if err != nil {
		return nil, err
	}

	records, err := s.api.ListDiagnostics(ctx, uid)
	return records, s.checkAuth(ctx, err)
}

func (s *diagnosticService) Delete(ctx context.Context, id int64, confirm Confirmer) (DeleteOutcome, error) {
	if _, err := s.userID(); err != nil {
		return Cancelled, err
	}

	ok, err := confirm.Confirm(ctx, fmt.Sprintf("Delete diagnosis #%d?", id))
	if err != nil {
		return Cancelled, fmt.Errorf("confirm: %w", err)
	}
	if !ok {
		return Cancelled, nil
	}

	deleted, err := s.api.DeleteDiagnostic(ctx, id)
	if err != nil {
		return Cancelled, s.checkAuth(ctx, err)
	}
	if !deleted {
		return AlreadyGone, nil
	}
	return Deleted, nil
}
