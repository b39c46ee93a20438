package publishers

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/samvad-hq/samvad-integration-client/internal/domain"
)

// Event represents the payload published downstream.
type Event struct {
	ID          string          `json:"id"`
	CallID      string          `json:"call_id"`
	Method      string          `json:"method"`
	Path        string          `json:"path"`
	Outcome     string          `json:"outcome"`
	StatusCode  int             `json:"status_code,omitempty"`
	Error       string          `json:"error,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	DurationMs  int64           `json:"duration_ms"`
	CompletedAt time.Time       `json:"completed_at"`
}

// NewEvent constructs an Event for the given call result.
func NewEvent(res domain.CallResult) Event {
	evt := Event{
		ID:          uuid.NewString(),
		CallID:      res.CallID,
		Method:      res.Method,
		Path:        res.Path,
		Outcome:     string(res.Outcome),
		StatusCode:  res.StatusCode,
		DurationMs:  res.Duration.Milliseconds(),
		CompletedAt: res.CompletedAt.UTC(),
	}
	if res.CompletedAt.IsZero() {
		evt.CompletedAt = time.Now().UTC()
	}
	if res.Err != nil {
		evt.Error = res.Err.Error()
	}
	if len(res.Payload) > 0 && json.Valid(res.Payload) {
		evt.Payload = res.Payload
	}
	return evt
}

// attributes returns the routing attributes attached to broker messages.
func (e Event) attributes() map[string]string {
	return map[string]string{
		"event_id": e.ID,
		"call_id":  e.CallID,
		"outcome":  e.Outcome,
	}
}
