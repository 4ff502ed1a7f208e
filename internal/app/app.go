package app

import (
	"github.com/lumikid/kidcoach-core/internal/clients/gemini"
	"github.com/lumikid/kidcoach-core/internal/coach"
	"github.com/lumikid/kidcoach-core/internal/credentials"
	"github.com/lumikid/kidcoach-core/internal/orchestrator"
	"github.com/lumikid/kidcoach-core/internal/pkg/logger"
	"github.com/lumikid/kidcoach-core/internal/ratelimit"
)

// App owns the constructed component graph. A single rate window and a
// single credential resolver are shared by every operation: the outbound
// budget and the key are global to the session.
type App struct {
	Log   *logger.Logger
	Store credentials.Store
	Coach *coach.Service
}

func New() (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, err
	}

	store, err := credentials.NewFileStore(cfg.CredentialFile)
	if err != nil {
		return nil, err
	}
	resolver := credentials.NewResolver(log, store, credentials.DefaultEnvVar)

	window := ratelimit.New(log, cfg.RateCap)
	runner := orchestrator.NewRunner(log, window, resolver)
	client := gemini.NewClient(log, cfg.BaseURL, cfg.RequestTimeout)

	return &App{
		Log:   log,
		Store: store,
		Coach: coach.NewService(log, runner, client, cfg.Chains()),
	}, nil
}
