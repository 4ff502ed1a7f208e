package orchestrator

import (
	"fmt"
	"strings"

	"github.com/lumikid/kidcoach-core/internal/pkg/httpx"
)

// failureKind buckets a per-attempt failure for the retry/advance decision.
type failureKind int

const (
	// kindNotFound: the backend does not know the model. Retrying the same
	// model cannot succeed; advance immediately.
	kindNotFound failureKind = iota
	// kindRateLimited: quota pressure. Retry after a steeper-than-normal
	// delay, since quota windows reset on their own cadence.
	kindRateLimited
	// kindTransient: server-side hiccup worth a plain backoff retry.
	kindTransient
	// kindTerminal: no retry value for this model; advance the chain.
	kindTerminal
)

func (k failureKind) String() string {
	switch k {
	case kindNotFound:
		return "not_found"
	case kindRateLimited:
		return "rate_limited"
	case kindTransient:
		return "server_error"
	default:
		return "error"
	}
}

// classifyFailure maps a transport error onto a failureKind using the HTTP
// status when one is attached and lowercase body markers otherwise.
func classifyFailure(err error) failureKind {
	code := httpx.StatusCodeOf(err)
	msg := strings.ToLower(err.Error())

	switch {
	case code == 404,
		strings.Contains(msg, "not_found"),
		strings.Contains(msg, "is not found"):
		return kindNotFound
	case code == 429,
		strings.Contains(msg, "quota"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "rate_limit"),
		strings.Contains(msg, "resource_exhausted"):
		return kindRateLimited
	case code >= 500,
		strings.Contains(msg, "internal error"):
		return kindTransient
	default:
		return kindTerminal
	}
}

// ExhaustedError is the only failure the orchestrator surfaces: every model
// in the chain ran out of attempts. LastErr keeps the final underlying error
// for diagnosis; Hint is the user-addressable remediation.
type ExhaustedError struct {
	Models  []string
	LastErr error
	Hint    string
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all models exhausted (%s): %s", strings.Join(e.Models, ", "), e.Hint)
}

func (e *ExhaustedError) Unwrap() error { return e.LastErr }
