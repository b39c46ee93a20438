package integration

import (
	"context"
	"fmt"
	"net/http"
)

// call is the single request path behind every typed verb.
func call[TResp any](ctx context.Context, s *Service, method, path string, body any, hasBody bool) (TResp, error) {
	var zero TResp
	if s == nil {
		return zero, fmt.Errorf("%w: integration service is nil", ErrInvalidArgument)
	}
	resp, op, err := s.send(ctx, method, path, body, hasBody)
	if err != nil {
		return zero, err
	}
	out, err := decodeBody[TResp](op, resp)
	if err != nil {
		return zero, s.fail(err)
	}
	return out, nil
}

// exec performs a call for its side effect only.
func (s *Service) exec(ctx context.Context, method, path string) error {
	_, _, err := s.send(ctx, method, path, nil, false)
	return err
}

// Get fetches {version}/{path} and decodes the body into T.
func Get[T any](ctx context.Context, s *Service, path string) (T, error) {
	return call[T](ctx, s, http.MethodGet, path, nil, false)
}

// Post sends body and decodes the response into the same type.
func Post[T any](ctx context.Context, s *Service, path string, body T) (T, error) {
	return call[T](ctx, s, http.MethodPost, path, body, true)
}

// PostAs sends a TReq body and decodes the response into TResp.
func PostAs[TReq, TResp any](ctx context.Context, s *Service, path string, body TReq) (TResp, error) {
	return call[TResp](ctx, s, http.MethodPost, path, body, true)
}

// PostNoBody posts without a body and decodes the response into T.
func PostNoBody[T any](ctx context.Context, s *Service, path string) (T, error) {
	return call[T](ctx, s, http.MethodPost, path, nil, false)
}

// PostNoContent posts without a body and only checks the response for errors.
func (s *Service) PostNoContent(ctx context.Context, path string) error {
	return s.exec(ctx, http.MethodPost, path)
}

// Put sends body and decodes the response into the same type.
func Put[T any](ctx context.Context, s *Service, path string, body T) (T, error) {
	return call[T](ctx, s, http.MethodPut, path, body, true)
}

// PutAs sends a TReq body and decodes the response into TResp.
func PutAs[TReq, TResp any](ctx context.Context, s *Service, path string, body TReq) (TResp, error) {
	return call[TResp](ctx, s, http.MethodPut, path, body, true)
}

// PutNoBody puts without a body and decodes the response into T.
func PutNoBody[T any](ctx context.Context, s *Service, path string) (T, error) {
	return call[T](ctx, s, http.MethodPut, path, nil, false)
}

// PutNoContent puts without a body and only checks the response for errors.
func (s *Service) PutNoContent(ctx context.Context, path string) error {
	return s.exec(ctx, http.MethodPut, path)
}

// Delete sends body with the DELETE and decodes the response into the same type.
func Delete[T any](ctx context.Context, s *Service, path string, body T) (T, error) {
	return call[T](ctx, s, http.MethodDelete, path, body, true)
}

// DeleteAs sends a TReq body with the DELETE and decodes the response into TResp.
func DeleteAs[TReq, TResp any](ctx context.Context, s *Service, path string, body TReq) (TResp, error) {
	return call[TResp](ctx, s, http.MethodDelete, path, body, true)
}

// DeleteNoBody deletes without a body and decodes the response into T.
func DeleteNoBody[T any](ctx context.Context, s *Service, path string) (T, error) {
	return call[T](ctx, s, http.MethodDelete, path, nil, false)
}

// DeleteNoContent deletes without a body and only checks the response for errors.
func (s *Service) DeleteNoContent(ctx context.Context, path string) error {
	return s.exec(ctx, http.MethodDelete, path)
}
