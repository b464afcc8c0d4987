package canny

import (
	"errors"
	"fmt"
)

// APIError is a non-200 response from the board service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("board API %d: %s", e.StatusCode, e.Body)
}

func asAPIError(err error, target **APIError) bool {
	return errors.As(err, target)
}
