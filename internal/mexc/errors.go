package mexc

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// HTTPError is returned for any non-2xx venue response. Status 429 carries
// the parsed Retry-After hint when the venue sent one.
type HTTPError struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	if len(e.Body) > 200 {
		return fmt.Sprintf("mexc: HTTP %d: %s…", e.Status, e.Body[:200])
	}
	return fmt.Sprintf("mexc: HTTP %d: %s", e.Status, e.Body)
}

// IsRateLimited reports whether err is a venue 429.
func IsRateLimited(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.Status == http.StatusTooManyRequests
}

// ErrCircuitOpen is returned when the REST circuit breaker rejects a call
// before it reaches the wire.
var ErrCircuitOpen = errors.New("mexc: circuit breaker open")
