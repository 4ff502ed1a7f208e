package credentials

import (
	"fmt"
	"os"
	"strings"

	"github.com/lumikid/kidcoach-core/internal/pkg/logger"
)

// DefaultEnvVar is the ambient fallback read when the store holds no key.
const DefaultEnvVar = "KIDCOACH_API_KEY"

// MissingCredentialError reports that no usable API key could be resolved.
// Hint is a user-addressable remediation, not a raw provider message.
type MissingCredentialError struct {
	Hint string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("no API credential configured: %s", e.Hint)
}

// Resolver yields the active API credential. Priority: user-saved store
// value, then the ambient environment variable. Both sources are re-read on
// every call so a mid-session key change takes effect on the next attempt.
type Resolver struct {
	log    *logger.Logger
	store  Store
	envVar string
}

func NewResolver(log *logger.Logger, store Store, envVar string) *Resolver {
	if envVar == "" {
		envVar = DefaultEnvVar
	}
	return &Resolver{
		log:    log.With("service", "credentials.Resolver"),
		store:  store,
		envVar: envVar,
	}
}

func (r *Resolver) Resolve() (string, error) {
	stored, err := r.store.Load()
	if err != nil {
		// A broken store should not lock the user out when the env
		// fallback still works.
		r.log.Warn("credential store read failed", "error", err)
	}
	if key := strings.TrimSpace(stored); key != "" {
		return key, nil
	}
	if key := strings.TrimSpace(os.Getenv(r.envVar)); key != "" {
		return key, nil
	}
	return "", &MissingCredentialError{
		Hint: fmt.Sprintf("save an API key in settings or set %s", r.envVar),
	}
}
