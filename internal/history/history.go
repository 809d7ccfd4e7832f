package history

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when no analysis has the requested id.
var ErrNotFound = errors.New("history: analysis not found")

const snippetLen = 100

// Record is one persisted analysis. Result holds the full response JSON so
// the analysis can be replayed without re-running the engine.
type Record struct {
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Client      string          `json:"client,omitempty"`
	URL         string          `json:"url,omitempty"`
	Domain      string          `json:"domain,omitempty"`
	FinalLabel  string          `json:"final_label"`
	RiskScore   float64         `json:"risk_score"`
	Snippet     string          `json:"text_snippet,omitempty"`
	Fingerprint string          `json:"fingerprint,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// Feedback is a user's judgement on an analysis. A later submission for the
// same analysis replaces the earlier one.
type Feedback struct {
	AnalysisID string    `json:"analysis_id" binding:"required"`
	UserLabel  string    `json:"user_label"`
	IsCorrect  bool      `json:"is_correct"`
	Notes      string    `json:"notes,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Stats aggregates the store.
type Stats struct {
	Total     int            `json:"total_analyses"`
	ByLabel   map[string]int `json:"label_counts"`
	Feedback  int            `json:"feedback_count"`
	Correct   int            `json:"correct"`
	Incorrect int            `json:"incorrect"`
	Accuracy  *float64       `json:"accuracy,omitempty"`
}

// Store persists analyses and feedback.
type Store interface {
	Save(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, error)
	// List returns the newest records first.
	List(ctx context.Context, limit int) ([]Record, error)
	SaveFeedback(ctx context.Context, fb Feedback) error
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Snippet trims text to the stored prefix length without splitting a rune.
func Snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= snippetLen {
		return text
	}
	cut := snippetLen
	for cut > 0 && !isRuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

func accuracy(correct, total int) *float64 {
	if total == 0 {
		return nil
	}
	a := float64(correct) / float64(total)
	return &a
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 50
	case limit > 500:
		return 500
	default:
		return limit
	}
}
