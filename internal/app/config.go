package app

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/lumikid/kidcoach-core/internal/coach"
	"github.com/lumikid/kidcoach-core/internal/orchestrator"
)

// Config is the whole runtime configuration, loaded from the environment.
// The model lists and retry shapes are deliberately configuration rather
// than constants: providers rename models and shift quotas faster than we
// cut releases.
type Config struct {
	LogMode string `envconfig:"LOG_MODE" default:"development"`

	BaseURL        string        `envconfig:"KIDCOACH_API_BASE_URL"`
	RequestTimeout time.Duration `envconfig:"KIDCOACH_REQUEST_TIMEOUT" default:"120s"`

	// Empty means the default path under the user config dir.
	CredentialFile string `envconfig:"KIDCOACH_CREDENTIAL_FILE"`

	// RateCap must stay below the provider's hard per-minute limit.
	RateCap int `envconfig:"KIDCOACH_RATE_CAP" default:"12"`

	TextModels  []string `envconfig:"KIDCOACH_TEXT_MODELS" default:"gemini-2.5-flash,gemini-2.5-flash-lite,gemini-2.0-flash"`
	ImageModels []string `envconfig:"KIDCOACH_IMAGE_MODELS" default:"gemini-2.5-flash-image-preview,gemini-2.0-flash-preview-image-generation"`
	VoiceModels []string `envconfig:"KIDCOACH_VOICE_MODELS" default:"gemini-2.5-flash-preview-tts"`
	EvalModels  []string `envconfig:"KIDCOACH_EVAL_MODELS" default:"gemini-2.5-pro,gemini-2.5-flash"`

	VoiceName string `envconfig:"KIDCOACH_VOICE_NAME" default:"Leda"`

	TextRetries  int           `envconfig:"KIDCOACH_TEXT_RETRIES" default:"3"`
	TextBackoff  time.Duration `envconfig:"KIDCOACH_TEXT_BACKOFF" default:"2s"`
	ImageRetries int           `envconfig:"KIDCOACH_IMAGE_RETRIES" default:"3"`
	ImageBackoff time.Duration `envconfig:"KIDCOACH_IMAGE_BACKOFF" default:"2.5s"`
	VoiceRetries int           `envconfig:"KIDCOACH_VOICE_RETRIES" default:"2"`
	VoiceBackoff time.Duration `envconfig:"KIDCOACH_VOICE_BACKOFF" default:"1.5s"`
	EvalRetries  int           `envconfig:"KIDCOACH_EVAL_RETRIES" default:"4"`
	EvalBackoff  time.Duration `envconfig:"KIDCOACH_EVAL_BACKOFF" default:"3s"`
	EvalBackoffX float64       `envconfig:"KIDCOACH_EVAL_BACKOFF_MULTIPLIER" default:"2.5"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	for name, chain := range map[string][]string{
		"text": c.TextModels, "image": c.ImageModels, "voice": c.VoiceModels, "eval": c.EvalModels,
	} {
		if len(chain) == 0 {
			return fmt.Errorf("%s model chain must not be empty", name)
		}
	}
	if c.RateCap <= 0 {
		return fmt.Errorf("rate cap must be positive, got %d", c.RateCap)
	}
	return nil
}

// Chains assembles the per-work-type orchestration configuration.
func (c Config) Chains() coach.Chains {
	return coach.Chains{
		Text:  c.TextModels,
		Image: c.ImageModels,
		Voice: c.VoiceModels,
		Eval:  c.EvalModels,

		TextPolicy:  orchestrator.Policy{MaxRetries: c.TextRetries, BaseDelay: c.TextBackoff, Multiplier: 2},
		ImagePolicy: orchestrator.Policy{MaxRetries: c.ImageRetries, BaseDelay: c.ImageBackoff, Multiplier: 2},
		VoicePolicy: orchestrator.Policy{MaxRetries: c.VoiceRetries, BaseDelay: c.VoiceBackoff, Multiplier: 2},
		EvalPolicy:  orchestrator.Policy{MaxRetries: c.EvalRetries, BaseDelay: c.EvalBackoff, Multiplier: c.EvalBackoffX},

		VoiceName: c.VoiceName,
	}
}
