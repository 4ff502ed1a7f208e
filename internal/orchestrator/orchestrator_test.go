package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lumikid/kidcoach-core/internal/pkg/logger"
)

type httpErr struct {
	code  int
	body  string
	after time.Duration
}

func (e *httpErr) Error() string                 { return fmt.Sprintf("http %d: %s", e.code, e.body) }
func (e *httpErr) HTTPStatusCode() int           { return e.code }
func (e *httpErr) RetryAfterHint() time.Duration { return e.after }

type fakeGovernor struct {
	admitted int
}

func (g *fakeGovernor) Admit(context.Context) error {
	g.admitted++
	return nil
}

type fakeCreds struct {
	key   string
	err   error
	calls int
}

func (c *fakeCreds) Resolve() (string, error) {
	c.calls++
	return c.key, c.err
}

type attempt struct {
	model string
	key   string
}

// script runs a canned error sequence per model, then succeeds.
type script struct {
	attempts []attempt
	fail     map[string][]error
	result   string
}

func (s *script) work(_ context.Context, model, key string) (string, error) {
	s.attempts = append(s.attempts, attempt{model: model, key: key})
	if errs := s.fail[model]; len(errs) > 0 {
		err := errs[0]
		s.fail[model] = errs[1:]
		return "", err
	}
	return s.result, nil
}

func newTestRunner(gov *fakeGovernor, creds *fakeCreds, sleeps *[]time.Duration) *Runner {
	sleep := func(_ context.Context, d time.Duration) error {
		if sleeps != nil {
			*sleeps = append(*sleeps, d)
		}
		return nil
	}
	return NewRunner(logger.NewNop(), gov, creds, WithSleep(sleep))
}

func TestRunFirstModelSucceeds(t *testing.T) {
	gov := &fakeGovernor{}
	creds := &fakeCreds{key: "sk-test"}
	s := &script{result: "ok"}
	r := newTestRunner(gov, creds, nil)

	got, err := Run(context.Background(), r, []string{"m1", "m2"}, Policy{}, s.work)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got != "ok" {
		t.Fatalf("result: want=%q got=%q", "ok", got)
	}
	if len(s.attempts) != 1 {
		t.Fatalf("attempts: want=1 got=%d", len(s.attempts))
	}
	if gov.admitted != 1 {
		t.Fatalf("admissions: want=1 got=%d", gov.admitted)
	}
	if s.attempts[0].key != "sk-test" {
		t.Fatalf("key: want=%q got=%q", "sk-test", s.attempts[0].key)
	}
}

func TestRunNotFoundShortCircuitsToNextModel(t *testing.T) {
	gov := &fakeGovernor{}
	s := &script{
		result: "from-b",
		fail: map[string][]error{
			"model-a": {
				&httpErr{code: 404, body: "models/model-a is not found"},
				&httpErr{code: 404, body: "models/model-a is not found"},
				&httpErr{code: 404, body: "models/model-a is not found"},
			},
		},
	}
	r := newTestRunner(gov, &fakeCreds{key: "k"}, nil)

	got, err := Run(context.Background(), r, []string{"model-a", "model-b"}, Policy{MaxRetries: 3}, s.work)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got != "from-b" {
		t.Fatalf("result: want=%q got=%q", "from-b", got)
	}
	// Exactly one probe of the unknown model, no retry budget burned on it.
	if len(s.attempts) != 2 {
		t.Fatalf("attempts: want=2 got=%d (%v)", len(s.attempts), s.attempts)
	}
	if s.attempts[0].model != "model-a" || s.attempts[1].model != "model-b" {
		t.Fatalf("attempt order wrong: %v", s.attempts)
	}
}

func TestRunRateLimitedExhaustsSingleModel(t *testing.T) {
	gov := &fakeGovernor{}
	var sleeps []time.Duration
	rl := &httpErr{code: 429, body: "RESOURCE_EXHAUSTED: quota exceeded"}
	s := &script{
		fail: map[string][]error{"m": {rl, rl, rl, rl}},
	}
	r := newTestRunner(gov, &fakeCreds{key: "k"}, &sleeps)

	_, err := Run(context.Background(), r, []string{"m"}, Policy{MaxRetries: 3, BaseDelay: time.Second, Multiplier: 2}, s.work)
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got=%T (%v)", err, err)
	}
	if len(s.attempts) != 3 {
		t.Fatalf("attempts: want=3 got=%d", len(s.attempts))
	}
	if !errors.Is(err, rl) {
		t.Fatalf("exhausted should carry the last underlying error, got=%v", exhausted.LastErr)
	}
	// Rate-limit penalty is double the running backoff: 2s then 4s.
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(sleeps) != len(want) {
		t.Fatalf("sleeps: want=%v got=%v", want, sleeps)
	}
	for i := range want {
		if sleeps[i] != want[i] {
			t.Fatalf("sleep %d: want=%v got=%v", i, want[i], sleeps[i])
		}
	}
}

func TestRunRateLimitedHonorsServerWait(t *testing.T) {
	var sleeps []time.Duration
	long := &httpErr{code: 429, body: "quota exceeded", after: 10 * time.Second}
	short := &httpErr{code: 429, body: "quota exceeded", after: time.Second}
	s := &script{
		result: "ok",
		fail:   map[string][]error{"m": {long, short}},
	}
	r := newTestRunner(&fakeGovernor{}, &fakeCreds{key: "k"}, &sleeps)

	got, err := Run(context.Background(), r, []string{"m"}, Policy{MaxRetries: 3, BaseDelay: time.Second, Multiplier: 2}, s.work)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got != "ok" {
		t.Fatalf("result: want=%q got=%q", "ok", got)
	}
	// First wait stretches to the server's 10s hint; second hint (1s) is
	// shorter than the doubled backoff (4s), so the penalty wins.
	want := []time.Duration{10 * time.Second, 4 * time.Second}
	if len(sleeps) != len(want) {
		t.Fatalf("sleeps: want=%v got=%v", want, sleeps)
	}
	for i := range want {
		if sleeps[i] != want[i] {
			t.Fatalf("sleep %d: want=%v got=%v", i, want[i], sleeps[i])
		}
	}
}

func TestRunTransientServerUsesPlainBackoff(t *testing.T) {
	var sleeps []time.Duration
	srv := &httpErr{code: 500, body: "internal error"}
	s := &script{
		result: "ok",
		fail:   map[string][]error{"m": {srv, srv}},
	}
	r := newTestRunner(&fakeGovernor{}, &fakeCreds{key: "k"}, &sleeps)

	got, err := Run(context.Background(), r, []string{"m"}, Policy{MaxRetries: 3, BaseDelay: time.Second, Multiplier: 2}, s.work)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got != "ok" {
		t.Fatalf("result: want=%q got=%q", "ok", got)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(sleeps) != len(want) {
		t.Fatalf("sleeps: want=%v got=%v", want, sleeps)
	}
	for i := range want {
		if sleeps[i] != want[i] {
			t.Fatalf("sleep %d: want=%v got=%v", i, want[i], sleeps[i])
		}
	}
}

func TestRunRateLimitedTwiceThenNextModelSucceeds(t *testing.T) {
	gov := &fakeGovernor{}
	rl := &httpErr{code: 429, body: "too many requests"}
	s := &script{
		result: "second-model",
		fail:   map[string][]error{"model1": {rl, rl}},
	}
	r := newTestRunner(gov, &fakeCreds{key: "k"}, nil)

	got, err := Run(context.Background(), r, []string{"model1", "model2"}, Policy{MaxRetries: 2, BaseDelay: time.Second}, s.work)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got != "second-model" {
		t.Fatalf("result: want=%q got=%q", "second-model", got)
	}
	// 2 attempts on model1, 1 on model2.
	if len(s.attempts) != 3 {
		t.Fatalf("attempts: want=3 got=%d (%v)", len(s.attempts), s.attempts)
	}
	if gov.admitted != 3 {
		t.Fatalf("every attempt must pass the governor: want=3 got=%d", gov.admitted)
	}
}

func TestRunTerminalErrorAdvancesWithoutRetry(t *testing.T) {
	s := &script{
		result: "ok",
		fail: map[string][]error{
			"m1": {&httpErr{code: 400, body: "invalid argument"}},
		},
	}
	r := newTestRunner(&fakeGovernor{}, &fakeCreds{key: "k"}, nil)

	got, err := Run(context.Background(), r, []string{"m1", "m2"}, Policy{MaxRetries: 3}, s.work)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got != "ok" {
		t.Fatalf("result: want=%q got=%q", "ok", got)
	}
	if len(s.attempts) != 2 {
		t.Fatalf("attempts: want=2 got=%d", len(s.attempts))
	}
}

func TestRunResolvesCredentialPerAttempt(t *testing.T) {
	creds := &fakeCreds{key: "k"}
	srv := &httpErr{code: 503, body: "unavailable"}
	s := &script{
		result: "ok",
		fail:   map[string][]error{"m": {srv, srv}},
	}
	r := newTestRunner(&fakeGovernor{}, creds, nil)

	if _, err := Run(context.Background(), r, []string{"m"}, Policy{MaxRetries: 3, BaseDelay: time.Second}, s.work); err != nil {
		t.Fatalf("run: %v", err)
	}
	if creds.calls != 3 {
		t.Fatalf("credential resolutions: want=3 got=%d", creds.calls)
	}
}

func TestRunMissingCredentialIsTerminal(t *testing.T) {
	wantErr := errors.New("no API credential configured")
	creds := &fakeCreds{err: wantErr}
	s := &script{result: "ok"}
	r := newTestRunner(&fakeGovernor{}, creds, nil)

	_, err := Run(context.Background(), r, []string{"m1", "m2"}, Policy{}, s.work)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected credential error to propagate, got=%v", err)
	}
	if len(s.attempts) != 0 {
		t.Fatalf("no attempt should run without a credential, got=%d", len(s.attempts))
	}
}

func TestClassifyFailure(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want failureKind
	}{
		{"http 404", &httpErr{code: 404, body: "nope"}, kindNotFound},
		{"not_found marker", errors.New(`{"error":{"status":"NOT_FOUND","message":"model not_found"}}`), kindNotFound},
		{"http 429", &httpErr{code: 429, body: "slow down"}, kindRateLimited},
		{"quota marker", errors.New("generation quota exceeded for project"), kindRateLimited},
		{"resource exhausted", errors.New("resource_exhausted"), kindRateLimited},
		{"http 500", &httpErr{code: 500, body: "boom"}, kindTransient},
		{"http 503", &httpErr{code: 503, body: "overloaded"}, kindTransient},
		{"internal marker", errors.New("an internal error occurred"), kindTransient},
		{"plain failure", errors.New("malformed payload"), kindTerminal},
		{"http 400", &httpErr{code: 400, body: "bad request"}, kindTerminal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifyFailure(tc.err); got != tc.want {
				t.Fatalf("kind: want=%v got=%v", tc.want, got)
			}
		})
	}
}
