package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/samvad-hq/samvad-integration-client/internal/domain"
	"github.com/samvad-hq/samvad-integration-client/internal/logger"
	"github.com/samvad-hq/samvad-integration-client/pkg/calls"
	"github.com/samvad-hq/samvad-integration-client/pkg/integration"
	"github.com/samvad-hq/samvad-integration-client/pkg/publishers"
)

// Service executes configured calls through the integration client and reports each outcome.
type Service struct {
	client    *integration.Service
	publisher EventPublisher
	metrics   Recorder
	log       logger.Logger
	now       func() time.Time
}

// NewService wires a runner. publisher and metrics may be nil.
func NewService(client *integration.Service, publisher EventPublisher, metrics Recorder, log logger.Logger) *Service {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Service{
		client:    client,
		publisher: publisher,
		metrics:   metrics,
		log:       log,
		now:       time.Now,
	}
}

// Run executes every call in order. Failed calls are joined into the returned
// error; cancellation stops the pass before the next call.
func (s *Service) Run(ctx context.Context, cs []calls.Call) ([]domain.CallResult, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("runner service is not initialized")
	}
	if len(cs) == 0 {
		return nil, fmt.Errorf("no calls configured")
	}

	results := make([]domain.CallResult, 0, len(cs))
	var errs []error
	for _, c := range cs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("run interrupted before call %s: %w", c.ID, err))
			break
		}

		res := s.runCall(ctx, c)
		results = append(results, res)
		s.report(ctx, res)
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("call %s: %w", c.ID, res.Err))
		}
	}
	return results, errors.Join(errs...)
}

func (s *Service) runCall(ctx context.Context, c calls.Call) domain.CallResult {
	res := domain.CallResult{CallID: c.ID, Method: c.Method, Path: c.Path}

	if d := c.Delay(); d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			res.Err = ctx.Err()
			res.Outcome = domain.OutcomeCanceled
			res.CompletedAt = s.now()
			return res
		case <-timer.C:
		}
	}

	start := s.now()
	payload, err := s.dispatch(ctx, c)
	res.CompletedAt = s.now()
	res.Duration = res.CompletedAt.Sub(start)
	res.Err = err
	res.Outcome = OutcomeFor(err)

	var ie *integration.Error
	if errors.As(err, &ie) {
		res.StatusCode = ie.StatusCode
	}
	if err == nil && !c.Discard {
		res.Payload = payload
	}
	return res
}

// dispatch picks the verb shape matching the call: typed JSON result, body or
// not, and the no-content variants for discarded responses.
func (s *Service) dispatch(ctx context.Context, c calls.Call) (json.RawMessage, error) {
	switch c.Method {
	case http.MethodGet:
		return integration.Get[json.RawMessage](ctx, s.client, c.Path)
	case http.MethodPost:
		switch {
		case c.HasBody():
			return integration.PostAs[any, json.RawMessage](ctx, s.client, c.Path, c.Body)
		case c.Discard:
			return nil, s.client.PostNoContent(ctx, c.Path)
		default:
			return integration.PostNoBody[json.RawMessage](ctx, s.client, c.Path)
		}
	case http.MethodPut:
		switch {
		case c.HasBody():
			return integration.PutAs[any, json.RawMessage](ctx, s.client, c.Path, c.Body)
		case c.Discard:
			return nil, s.client.PutNoContent(ctx, c.Path)
		default:
			return integration.PutNoBody[json.RawMessage](ctx, s.client, c.Path)
		}
	case http.MethodDelete:
		switch {
		case c.HasBody():
			return integration.DeleteAs[any, json.RawMessage](ctx, s.client, c.Path, c.Body)
		case c.Discard:
			return nil, s.client.DeleteNoContent(ctx, c.Path)
		default:
			return integration.DeleteNoBody[json.RawMessage](ctx, s.client, c.Path)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported method %q", integration.ErrInvalidArgument, c.Method)
	}
}

func (s *Service) report(ctx context.Context, res domain.CallResult) {
	if s.metrics != nil {
		s.metrics.RecordCall(res.CallID, res.Method, string(res.Outcome), res.Duration)
	}

	fields := map[string]any{
		"call_id":     res.CallID,
		"method":      res.Method,
		"path":        res.Path,
		"outcome":     string(res.Outcome),
		"elapsed_ms":  res.Duration.Milliseconds(),
		"status_code": res.StatusCode,
	}
	if res.Err != nil {
		fields["error"] = res.Err.Error()
		s.log.ErrorObj("call failed", "call_result", fields)
	} else {
		fields["payload_bytes"] = len(res.Payload)
		s.log.InfoObj("call completed", "call_result", fields)
	}

	if s.publisher == nil {
		return
	}
	// Outcomes are published even after the run context is cancelled.
	pubCtx := context.WithoutCancel(ctx)
	delivered, err := s.publisher.Publish(pubCtx, publishers.NewEvent(res))
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordPublishFailure(res.CallID)
		}
		s.log.WarnObj("call outcome publish failed", "publish_error", map[string]any{
			"call_id":   res.CallID,
			"delivered": delivered,
			"error":     err.Error(),
		})
	}
}

// OutcomeFor classifies a call error.
func OutcomeFor(err error) domain.Outcome {
	if err == nil {
		return domain.OutcomeOK
	}
	switch integration.KindOf(err) {
	case integration.KindNotFound:
		return domain.OutcomeNotFound
	case integration.KindServer:
		return domain.OutcomeServerError
	case integration.KindUnexpectedStatus:
		return domain.OutcomeUnexpectedStatus
	case integration.KindDecode:
		return domain.OutcomeDecodeError
	case integration.KindCanceled:
		return domain.OutcomeCanceled
	case integration.KindInvalidArgument:
		return domain.OutcomeInvalidArgument
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.OutcomeCanceled
	case errors.Is(err, integration.ErrInvalidArgument):
		return domain.OutcomeInvalidArgument
	}
	return domain.OutcomeTransportError
}
