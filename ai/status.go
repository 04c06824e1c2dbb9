package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
)

// StatusError is a provider call the remote service answered with an HTTP
// error status.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned status %d: %v", e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// IsPermanent reports whether retrying err cannot change the outcome:
// rejected credentials, malformed requests or an unknown model.
// Request timeouts and rate limiting are not permanent.
func IsPermanent(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	switch se.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return se.StatusCode >= 400 && se.StatusCode < 500
}

type statusKey struct{}

type statusRecorder struct {
	code atomic.Int32
}

// RecordStatus returns a context whose requests through a StatusTransport
// remember their response status, and a func that wraps an error from the
// same call in a *StatusError when that status was 4xx or 5xx.
func RecordStatus(ctx context.Context) (context.Context, func(error) error) {
	rec := &statusRecorder{}
	wrap := func(err error) error {
		if err == nil {
			return nil
		}
		if code := int(rec.code.Load()); code >= 400 {
			return &StatusError{StatusCode: code, Err: err}
		}
		return err
	}
	return context.WithValue(ctx, statusKey{}, rec), wrap
}

// StatusTransport reports response statuses to the recorder installed by
// RecordStatus on the request context.
type StatusTransport struct {
	Base http.RoundTripper
}

var _ http.RoundTripper = (*StatusTransport)(nil)

func (t *StatusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err == nil {
		if rec, ok := req.Context().Value(statusKey{}).(*statusRecorder); ok {
			rec.code.Store(int32(resp.StatusCode))
		}
	}
	return resp, err
}

// WithStatusTransport returns a copy of client whose transport is wrapped in a
// StatusTransport. A nil client starts from http.DefaultClient.
func WithStatusTransport(client *http.Client) *http.Client {
	if client == nil {
		client = http.DefaultClient
	}
	c := *client
	c.Transport = &StatusTransport{Base: client.Transport}
	return &c
}
