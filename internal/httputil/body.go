// Package httputil provides helpers for reading HTTP payloads with a size cap.
package httputil

import (
	"errors"
	"io"
)

const (
	// DefaultMaxResponseBodyBytes caps upstream completion bodies to 4MB.
	DefaultMaxResponseBodyBytes int64 = 4 << 20
)

// ErrBodyTooLarge is returned when a payload exceeds its cap.
var ErrBodyTooLarge = errors.New("body too large")

// ReadLimitedBody reads up to maxBytes from reader. When the payload is
// larger it returns the first maxBytes together with ErrBodyTooLarge.
// A non-positive maxBytes reads everything.
func ReadLimitedBody(reader io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(reader)
	}

	body, err := io.ReadAll(io.LimitReader(reader, maxBytes+1))
	if err != nil {
		return body, err
	}
	if int64(len(body)) > maxBytes {
		return body[:int(maxBytes)], ErrBodyTooLarge
	}
	return body, nil
}
