package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/lumikid/kidcoach-core/internal/app"
	"github.com/lumikid/kidcoach-core/internal/audiopcm"
	"github.com/lumikid/kidcoach-core/internal/coach"
)

func main() {
	topic := flag.String("topic", "", "presentation topic (required)")
	level := flag.String("level", string(coach.LevelBeginner), "beginner|intermediate|advanced")
	outDir := flag.String("out", "out", "output directory")
	saveKey := flag.String("save-key", "", "save an API key and exit")
	flag.Parse()

	a, err := app.New()
	if err != nil {
		fmt.Printf("failed to initialize app: %v\n", err)
		os.Exit(1)
	}
	defer a.Log.Sync()

	if *saveKey != "" {
		if err := a.Store.Save(strings.TrimSpace(*saveKey)); err != nil {
			fmt.Printf("save key: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("API key saved")
		return
	}

	if *topic == "" {
		fmt.Println("usage: kidcoach -topic <topic> [-level beginner] [-out dir]")
		os.Exit(2)
	}

	if err := run(context.Background(), a, *topic, coach.Level(*level), *outDir); err != nil {
		a.Log.Error("run failed", "error", err)
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App, topic string, level coach.Level, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	// The illustration and the script are independent; generating them
	// concurrently exercises the shared rate window the same way the
	// overlapping call sites do in a session.
	var (
		illustration string
		script       *coach.PresentationScript
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		illustration, err = a.Coach.GenerateIllustration(gctx, topic)
		return err
	})
	g.Go(func() error {
		var err error
		script, err = a.Coach.GenerateScript(gctx, "", topic, level)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if err := writeDataURI(filepath.Join(outDir, "illustration"), illustration); err != nil {
		return err
	}
	scriptJSON, err := json.MarshalIndent(script, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(outDir, "script.json"), scriptJSON, 0o644); err != nil {
		return err
	}

	voice, err := a.Coach.SynthesizeVoice(ctx, script.FullText)
	if err != nil {
		return err
	}
	pcmPath := filepath.Join(outDir, "narration.pcm")
	if err := os.WriteFile(pcmPath, audiopcm.Encode(voice), 0o644); err != nil {
		return err
	}

	a.Log.Info("presentation generated",
		"topic", topic,
		"level", string(level),
		"points", len(script.Points),
		"audio", voice.Duration().String(),
		"out", outDir,
	)
	return nil
}

func writeDataURI(basePath, uri string) error {
	meta, payload, ok := strings.Cut(uri, ",")
	if !ok {
		return fmt.Errorf("malformed data URI")
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return err
	}
	ext := ".png"
	if strings.Contains(meta, "image/jpeg") {
		ext = ".jpg"
	}
	return os.WriteFile(basePath+ext, raw, 0o644)
}
