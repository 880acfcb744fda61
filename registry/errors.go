package registry

import (
	"fmt"
	"io"
)

const maxErrorBody = 4 << 10

// AuthError is returned when the token endpoint cannot be reached or
// rejects the request.
type AuthError struct {
	URL        string
	StatusCode int
	Body       []byte
	Err        error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("requesting token from %s: %s", e.URL, e.Err)
	}

	return fmt.Sprintf("requesting token from %s: status %d: %s", e.URL, e.StatusCode, e.Body)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// HTTPError is returned when a manifest or blob request does not succeed.
// StatusCode is 0 if no response was received, Err is set in that case.
type HTTPError struct {
	URL        string
	StatusCode int
	Body       []byte
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("GET %s: %s", e.URL, e.Err)
	}

	if len(e.Body) == 0 {
		return fmt.Sprintf("GET %s: status %d", e.URL, e.StatusCode)
	}

	return fmt.Sprintf("GET %s: status %d: %s", e.URL, e.StatusCode, e.Body)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// DecodeError is returned when a response body cannot be decoded into the
// expected document or does not match its digest.
type DecodeError struct {
	What string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s: %s", e.What, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func readErrorBody(r io.Reader) []byte {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return b
}
