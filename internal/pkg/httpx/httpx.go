package httpx

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

// HTTPStatusCoder is implemented by transport errors that carry an HTTP
// status code.
type HTTPStatusCoder interface {
	HTTPStatusCode() int
}

// RetryAfterHinter is implemented by transport errors that carry a
// server-suggested wait.
type RetryAfterHinter interface {
	RetryAfterHint() time.Duration
}

// StatusCodeOf extracts the HTTP status code from err, or 0 when the error
// chain carries none.
func StatusCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var sc HTTPStatusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatusCode()
	}
	return 0
}

// RetryAfterOf extracts the server-suggested wait from err, or 0 when the
// error chain carries none.
func RetryAfterOf(err error) time.Duration {
	if err == nil {
		return 0
	}
	var ra RetryAfterHinter
	if errors.As(err, &ra) {
		return ra.RetryAfterHint()
	}
	return 0
}

// ParseRetryAfter interprets a Retry-After header value in its seconds form.
// HTTP-date values and garbage parse to 0.
func ParseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// Jitter spreads base by +/-20% so simultaneous retriers do not thunder in
// lockstep.
func Jitter(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	const j = 0.2
	delta := base.Seconds() * j
	low := base.Seconds() - delta
	high := base.Seconds() + delta
	if low < 0 {
		low = 0
	}
	v := low + rand.Float64()*(high-low)
	return time.Duration(v * float64(time.Second))
}

// SleepContext blocks for d or until ctx is done, whichever comes first.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
