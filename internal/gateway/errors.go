package gateway

import (
	"errors"
	"fmt"
)

// TransportError is the uniform failure type for every gateway call.
// Status is zero when the request never reached the server (dial failure,
// timeout, cancelled context).
type TransportError struct {
	Status  int
	Message string
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("transport: %s", e.Message)
	}
	return fmt.Sprintf("transport: status %d: %s", e.Status, e.Message)
}

// AsTransport unwraps err into a *TransportError if it is one.
func AsTransport(err error) (*TransportError, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
