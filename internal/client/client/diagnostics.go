package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/molecheck/internal/client/models"
)

const (
	classifyPath    = "/diagnostic/get_diagnosis"
	savePath        = "/diagnostic/post"
	listPathFmt     = "/diagnostics/user/%d"
	deletePathFmt   = "/diagnostic/%d"
	msgSessionEnded = "your session has expired, please sign in again"
)

// TokenSource yields the current bearer token, or ErrNoToken when nobody
// is signed in.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// DiagnosticClient calls the diagnostics API. The token is fetched from the
// TokenSource before every call and never cached.
type DiagnosticClient struct {
	t      *Transport
	tokens TokenSource
}

func NewDiagnosticClient(t *Transport, tokens TokenSource) *DiagnosticClient {
	return &DiagnosticClient{t: t, tokens: tokens}
}

// Classify base64-encodes image and asks the server for a diagnosis.
func (c *DiagnosticClient) Classify(ctx context.Context, image []byte, userID models.UserID) (models.ClassificationResult, error) {
	res, err := c.call(ctx, request{
		method: http.MethodPost,
		path:   classifyPath,
		jsonBody: map[string]any{
			"image_url": base64.StdEncoding.EncodeToString(image),
			"user_id":   userID,
		},
	})
	if err != nil {
		return models.ClassificationResult{}, err
	}
	return decodeClassification(res)
}

// SaveReport stores a classification in the user's history.
func (c *DiagnosticClient) SaveReport(ctx context.Context, imageURL string, result models.ClassificationResult, userID models.UserID) (models.DiagnosticRecord, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return models.DiagnosticRecord{}, fmt.Errorf("marshal result: %w", err)
	}

	res, err := c.call(ctx, request{
		method: http.MethodPost,
		path:   savePath,
		jsonBody: map[string]any{
			"image_url": imageURL,
			"result":    string(payload),
			"user_id":   userID,
		},
	})
	if err != nil {
		return models.DiagnosticRecord{}, err
	}

	var rec models.DiagnosticRecord
	if len(res.body) > 0 {
		if err := json.Unmarshal(res.body, &rec); err != nil {
			return models.DiagnosticRecord{}, unexpectedBody(res, err)
		}
	}
	if rec.ImageURL == "" {
		rec.ImageURL = imageURL
	}
	if rec.Result == "" {
		rec.Result = string(payload)
	}
	if rec.UserID == 0 {
		rec.UserID = userID
	}
	return rec, nil
}

// ListDiagnostics returns the user's records, newest first.
func (c *DiagnosticClient) ListDiagnostics(ctx context.Context, userID models.UserID) ([]models.DiagnosticRecord, error) {
	res, err := c.call(ctx, request{
		method: http.MethodGet,
		path:   fmt.Sprintf(listPathFmt, userID),
	})
	if err != nil {
		return nil, err
	}

	var records []models.DiagnosticRecord
	if err := json.Unmarshal(res.body, &records); err != nil {
		return nil, unexpectedBody(res, err)
	}
	if records == nil {
		records = []models.DiagnosticRecord{}
	}
	models.SortNewestFirst(records)
	return records, nil
}

// DeleteDiagnostic deletes a record. A 404 is reported as (false, nil) so a
// repeated delete of the same id is harmless.
func (c *DiagnosticClient) DeleteDiagnostic(ctx context.Context, id int64) (bool, error) {
	_, err := c.call(ctx, request{
		method: http.MethodDelete,
		path:   fmt.Sprintf(deletePathFmt, id),
	})
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// call attaches the token and maps error statuses. The returned response
// is always 2xx.
func (c *DiagnosticClient) call(ctx context.Context, req request) (response, error) {
	token, err := c.tokens.Token(ctx)
	if errors.Is(err, ErrNoToken) {
		return response{}, &Error{Kind: KindAuth, Message: "not signed in", Err: err}
	}
	if err != nil {
		return response{}, &Error{Kind: KindLocal, Message: "cannot read the saved session", Err: err}
	}
	req.token = token

	res, err := c.t.do(ctx, req)
	if err != nil {
		return response{}, err
	}
	if res.ok() {
		return res, nil
	}

	msg := errorMessage(res.body)
	switch res.status {
	case http.StatusUnauthorized, http.StatusForbidden:
		if msg == "" {
			msg = msgSessionEnded
		}
		return response{}, &Error{Kind: KindAuth, Status: res.status, Message: msg}
	default:
		if msg == "" {
			msg = fmt.Sprintf("request failed: %s", http.StatusText(res.status))
		}
		return response{}, &Error{Kind: KindServer, Status: res.status, Message: msg}
	}
}

func unexpectedBody(res response, err error) *Error {
	return &Error{Kind: KindServer, Status: res.status, Message: "unexpected response from server", Err: err}
}

// decodeClassification accepts {predicted_class, probabilities} or the
// saved-record shape {image_url, user_id, result} where result is either an
// object or a serialized payload.
func decodeClassification(res response) (models.ClassificationResult, error) {
	var body struct {
		models.ClassificationResult
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(res.body, &body); err != nil {
		return models.ClassificationResult{}, unexpectedBody(res, err)
	}
	if body.PredictedClass != "" {
		return body.ClassificationResult, nil
	}

	if len(body.Result) > 0 {
		var s string
		if err := json.Unmarshal(body.Result, &s); err == nil && s != "" {
			r, err := models.ParseClassification(s)
			if err != nil {
				return models.ClassificationResult{}, unexpectedBody(res, err)
			}
			return r, nil
		}
		var r models.ClassificationResult
		if err := json.Unmarshal(body.Result, &r); err == nil && r.PredictedClass != "" {
			return r, nil
		}
	}
	return models.ClassificationResult{}, unexpectedBody(res, errors.New("no predicted_class in response"))
}
