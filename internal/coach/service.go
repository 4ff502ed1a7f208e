package coach

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lumikid/kidcoach-core/internal/audiopcm"
	"github.com/lumikid/kidcoach-core/internal/clients/gemini"
	"github.com/lumikid/kidcoach-core/internal/orchestrator"
	"github.com/lumikid/kidcoach-core/internal/pkg/logger"
	"github.com/lumikid/kidcoach-core/internal/rubric"
)

// Generator is one attempt against the remote generation service. Satisfied
// by gemini.Client.
type Generator interface {
	GenerateContent(ctx context.Context, model, apiKey string, req *gemini.GenerateContentRequest) (*gemini.GenerateContentResponse, error)
}

// Chains configures the per-work-type model preference lists and retry
// shapes. Order encodes preference, cheapest first.
type Chains struct {
	Text  []string
	Image []string
	Voice []string
	Eval  []string

	TextPolicy  orchestrator.Policy
	ImagePolicy orchestrator.Policy
	VoicePolicy orchestrator.Policy
	EvalPolicy  orchestrator.Policy

	VoiceName string
}

// Service exposes the four consumer-facing operations. All of them route
// through the fallback runner; voice synthesis uses a single-element chain
// rather than its own bespoke retry loop, so every call site shares one
// resilience path.
type Service struct {
	log    *logger.Logger
	runner *orchestrator.Runner
	client Generator
	chains Chains
}

func NewService(log *logger.Logger, runner *orchestrator.Runner, client Generator, chains Chains) *Service {
	if chains.VoiceName == "" {
		chains.VoiceName = "Leda"
	}
	return &Service{
		log:    log.With("service", "coach.Service"),
		runner: runner,
		client: client,
		chains: chains,
	}
}

// GenerateIllustration produces a child-friendly topic illustration and
// returns it as a data URI.
func (s *Service) GenerateIllustration(ctx context.Context, topic string) (string, error) {
	req := &gemini.GenerateContentRequest{
		Contents: []gemini.Content{{Parts: []gemini.Part{{Text: illustrationPrompt(topic)}}}},
		GenerationConfig: &gemini.GenerationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	}

	resp, err := orchestrator.Run(ctx, s.runner, s.chains.Image, s.chains.ImagePolicy, s.attempt(req))
	if err != nil {
		return "", err
	}

	img := resp.InlineData()
	if img == nil || img.Data == "" {
		return "", &MalformedResponseError{Op: "illustration generation", Err: errors.New("no image in response")}
	}
	mime := img.MimeType
	if mime == "" {
		mime = "image/png"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, img.Data), nil
}

// GenerateScript produces the presentation script for topic at level,
// optionally grounded on a previously generated illustration.
func (s *Service) GenerateScript(ctx context.Context, imageDataURI, topic string, level Level) (*PresentationScript, error) {
	parts := make([]gemini.Part, 0, 2)
	if imageDataURI != "" {
		mime, data, err := parseDataURI(imageDataURI)
		if err != nil {
			return nil, fmt.Errorf("illustration attachment: %w", err)
		}
		parts = append(parts, gemini.Part{InlineData: &gemini.InlineData{MimeType: mime, Data: data}})
	}
	parts = append(parts, gemini.Part{Text: scriptPrompt(topic, level)})

	req := &gemini.GenerateContentRequest{
		Contents: []gemini.Content{{Parts: parts}},
		GenerationConfig: &gemini.GenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   scriptSchema(),
			Temperature:      0.7,
		},
	}

	resp, err := orchestrator.Run(ctx, s.runner, s.chains.Text, s.chains.TextPolicy, s.attempt(req))
	if err != nil {
		return nil, err
	}

	var script PresentationScript
	if err := json.Unmarshal([]byte(resp.Text()), &script); err != nil {
		return nil, &MalformedResponseError{Op: "script generation", Err: err}
	}
	if script.Intro == "" && len(script.Points) == 0 {
		return nil, &MalformedResponseError{Op: "script generation", Err: errors.New("empty script")}
	}

	script.Level = level
	script.FullText = composeFullText(&script)
	return &script, nil
}

// SynthesizeVoice reads text aloud and returns the decoded sample buffer.
// The service emits mono PCM16 at a fixed 24 kHz.
func (s *Service) SynthesizeVoice(ctx context.Context, text string) (*audiopcm.Buffer, error) {
	req := &gemini.GenerateContentRequest{
		Contents: []gemini.Content{{Parts: []gemini.Part{{Text: text}}}},
		GenerationConfig: &gemini.GenerationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &gemini.SpeechConfig{
				VoiceConfig: gemini.VoiceConfig{
					PrebuiltVoiceConfig: gemini.PrebuiltVoiceConfig{VoiceName: s.chains.VoiceName},
				},
			},
		},
	}

	resp, err := orchestrator.Run(ctx, s.runner, s.chains.Voice, s.chains.VoicePolicy, s.attempt(req))
	if err != nil {
		return nil, err
	}

	audio := resp.InlineData()
	if audio == nil || audio.Data == "" {
		return nil, &MalformedResponseError{Op: "voice synthesis", Err: errors.New("no audio in response")}
	}
	raw, err := base64.StdEncoding.DecodeString(audio.Data)
	if err != nil {
		return nil, &MalformedResponseError{Op: "voice synthesis", Err: err}
	}
	buf, err := audiopcm.Decode(raw, audiopcm.SynthesisSampleRate, 1)
	if err != nil {
		return nil, &MalformedResponseError{Op: "voice synthesis", Err: err}
	}
	return buf, nil
}

// Evaluate scores a recording of the child reading scriptText. Rubric fields
// the model omits or mangles degrade to zeroed scores instead of failing:
// a partial score sheet is still useful, a hard error is not.
func (s *Service) Evaluate(ctx context.Context, scriptText string, audio []byte, audioMime string, level Level) (*rubric.Result, error) {
	if len(audio) == 0 {
		return nil, errors.New("no recording to evaluate")
	}
	if audioMime == "" {
		audioMime = "audio/webm"
	}

	req := &gemini.GenerateContentRequest{
		Contents: []gemini.Content{{Parts: []gemini.Part{
			{Text: evaluationPrompt(scriptText, level)},
			{InlineData: &gemini.InlineData{
				MimeType: audioMime,
				Data:     base64.StdEncoding.EncodeToString(audio),
			}},
		}}},
		GenerationConfig: &gemini.GenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   rubricSchema(),
		},
	}

	resp, err := orchestrator.Run(ctx, s.runner, s.chains.Eval, s.chains.EvalPolicy, s.attempt(req))
	if err != nil {
		return nil, err
	}

	var fields rubric.Fields
	if err := json.Unmarshal([]byte(resp.Text()), &fields); err != nil {
		s.log.Warn("evaluation response unparsable, zeroing scores", "error", err)
		fields = rubric.Fields{}
	}
	result := rubric.Normalize(fields)
	return &result, nil
}

// attempt adapts a prepared request into the runner's unit of work.
func (s *Service) attempt(req *gemini.GenerateContentRequest) orchestrator.WorkFunc[*gemini.GenerateContentResponse] {
	return func(ctx context.Context, model, apiKey string) (*gemini.GenerateContentResponse, error) {
		return s.client.GenerateContent(ctx, model, apiKey, req)
	}
}

func composeFullText(script *PresentationScript) string {
	parts := make([]string, 0, len(script.Points)+2)
	if script.Intro != "" {
		parts = append(parts, script.Intro)
	}
	parts = append(parts, script.Points...)
	if script.Conclusion != "" {
		parts = append(parts, script.Conclusion)
	}
	return strings.Join(parts, " ")
}

// parseDataURI splits "data:<mime>;base64,<payload>" into its mime type and
// still-encoded payload. The payload is validated but not re-encoded; the
// wire format wants base64 anyway.
func parseDataURI(uri string) (mime, data string, err error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", "", fmt.Errorf("not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", "", fmt.Errorf("data URI missing payload")
	}
	mime, enc, ok := strings.Cut(meta, ";")
	if !ok || enc != "base64" {
		return "", "", fmt.Errorf("data URI must be base64-encoded")
	}
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return "", "", fmt.Errorf("data URI payload: %w", err)
	}
	return mime, payload, nil
}
