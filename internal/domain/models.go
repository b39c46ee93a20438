package domain

import (
	"encoding/json"
	"time"
)

// Domain contains core models shared by the runner and publishers.

// Outcome classifies how a configured call finished.
type Outcome string

const (
	OutcomeOK               Outcome = "ok"
	OutcomeNotFound         Outcome = "not_found"
	OutcomeServerError      Outcome = "server_error"
	OutcomeUnexpectedStatus Outcome = "unexpected_status"
	OutcomeDecodeError      Outcome = "decode_error"
	OutcomeCanceled         Outcome = "canceled"
	OutcomeTransportError   Outcome = "transport_error"
	OutcomeInvalidArgument  Outcome = "invalid_argument"
)

// CallResult is the record of one executed call.
type CallResult struct {
	CallID      string
	Method      string
	Path        string
	Outcome     Outcome
	StatusCode  int
	Err         error
	Payload     json.RawMessage
	Duration    time.Duration
	CompletedAt time.Time
}

// Succeeded reports an ok outcome.
func (r CallResult) Succeeded() bool { return r.Outcome == OutcomeOK }
