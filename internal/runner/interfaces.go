package runner

import (
	"context"
	"time"

	"github.com/samvad-hq/samvad-integration-client/pkg/publishers"
)

// EventPublisher publishes call outcome events downstream.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}

// Recorder receives per-call measurements.
type Recorder interface {
	RecordCall(callID, method, outcome string, elapsed time.Duration)
	RecordPublishFailure(callID string)
}
