package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound matches any *StatusError carrying a 404.
var ErrNotFound = errors.New("upstream resource not found")

// ErrBodyTooLarge is returned when a response exceeds the client's body limit.
var ErrBodyTooLarge = errors.New("upstream response too large")

// StatusError is returned for every non-2xx upstream response.
type StatusError struct {
	Provider string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s status %d", e.Provider, e.Status)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}
