package mofsl

import (
	"encoding/json"
	"fmt"
)

// StatusSuccess is the broker's success discriminator.
const StatusSuccess = "SUCCESS"

// Envelope is the broker's structured JSON response: a status discriminator
// plus either a success payload (Data, AuthToken, UniqueOrderID) or a
// failure payload (Message, ErrorCode). Raw preserves the full body for
// endpoints whose responses are passed through verbatim.
type Envelope struct {
	Status        string          `json:"status"`
	Message       string          `json:"message"`
	ErrorCode     string          `json:"errorcode"`
	AuthToken     string          `json:"AuthToken"`
	UniqueOrderID string          `json:"uniqueorderid"`
	Data          json.RawMessage `json:"data"`

	Raw json.RawMessage `json:"-"`
}

// OK reports whether the broker accepted the request.
func (e *Envelope) OK() bool { return e.Status == StatusSuccess }

// RemoteError is a transport-level failure: a network error, a non-2xx
// response, or a body that is not valid JSON. The raw status and body are
// preserved for the caller; nothing is retried.
type RemoteError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode == 0:
		return fmt.Sprintf("mofsl: request failed: %v", e.Err)
	case e.Err != nil:
		return fmt.Sprintf("mofsl: bad response (status %d): %v", e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("mofsl: remote returned status %d: %s", e.StatusCode, e.Body)
	}
}

func (e *RemoteError) Unwrap() error { return e.Err }
