package models

import (
	"encoding/json"
	"sort"
	"strings"
)

// Probability is one class score of a classification.
type Probability struct {
	Label string
	Value float64
}

// ClassificationResult is the server's verdict for one image.
type ClassificationResult struct {
	PredictedClass string             `json:"predicted_class"`
	Probabilities  map[string]float64 `json:"probabilities"`
}

// Ranked returns the probabilities sorted by value, highest first; equal
// values are ordered by label.
func (r ClassificationResult) Ranked() []Probability {
	out := make([]Probability, 0, len(r.Probabilities))
	for label, v := range r.Probabilities {
		out = append(out, Probability{Label: label, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// Confidence is the probability of the predicted class, or 0 when the
// server sent no scores.
func (r ClassificationResult) Confidence() float64 {
	return r.Probabilities[r.PredictedClass]
}

// ParseClassification decodes a serialized result payload. The payload is
// either a JSON object with predicted_class/probabilities or a bare label.
func ParseClassification(payload string) (ClassificationResult, error) {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "{") {
		var r ClassificationResult
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return ClassificationResult{}, err
		}
		return r, nil
	}
	return ClassificationResult{PredictedClass: payload}, nil
}

// DiagnosticRecord is a read-only projection of a saved diagnosis owned by
// the backend.
type DiagnosticRecord struct {
	ID         int64     `json:"id"`
	ImageURL   string    `json:"image_url"`
	Result     string    `json:"result"`
	Confidence *float64  `json:"confidence,omitempty"`
	CreatedAt  Timestamp `json:"created_at"`
	UserID     UserID    `json:"user_id"`
}

// Classification decodes Result.
func (d DiagnosticRecord) Classification() (ClassificationResult, error) {
	return ParseClassification(d.Result)
}

// SortNewestFirst orders records by CreatedAt descending. Records with the
// same or a missing CreatedAt are ordered by ID descending, and records
// without a timestamp go after the ones that have one.
func SortNewestFirst(records []DiagnosticRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].CreatedAt, records[j].CreatedAt
		switch {
		case !a.IsZero() && !b.IsZero() && !a.Equal(b.Time):
			return a.After(b.Time)
		case !a.IsZero() && b.IsZero():
			return true
		case a.IsZero() && !b.IsZero():
			return false
		}
		return records[i].ID > records[j].ID
	})
}
