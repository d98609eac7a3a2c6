// Package runtimeinit turns configuration into the wired set of components
// shared by the resident app and the offline CLI.
package runtimeinit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"pkt.systems/pslog"

	"bubble-overlay/src/clipboard"
	"bubble-overlay/src/config"
	"bubble-overlay/src/detect"
	"bubble-overlay/src/hotkey"
	"bubble-overlay/src/layout"
	"bubble-overlay/src/llm"
	"bubble-overlay/src/logutil"
	"bubble-overlay/src/notification"
	"bubble-overlay/src/ocr"
	"bubble-overlay/src/overlay"
	"bubble-overlay/src/screenshot"
	"bubble-overlay/src/session"
	"bubble-overlay/src/sink"
	"bubble-overlay/src/translate"
)

type Options struct {
	LoadOptions config.LoadOptions
	// Sink receives frames and log lines; nil logs them.
	Sink session.Sink
	// Capture overrides the screen grabber, e.g. with a static image.
	Capture session.CaptureSource
	// Console logs to stderr when file logging is off.
	Console bool
	// Ping checks the OpenRouter key before anything else starts.
	Ping                 bool
	ShowBlockingLLMError bool
}

// Runtime is everything a front end needs to run sessions.
type Runtime struct {
	Config   *config.Config
	Logger   pslog.Logger
	Matcher  *hotkey.Matcher
	Detector detect.Detector
	Engine   *session.Engine
	Snipper  *session.Snipper
	Selector overlay.Selector
	Sink     session.Sink

	closers []io.Closer
}

func Bootstrap(ctx context.Context, opts Options) (*Runtime, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, logCloser := logutil.Setup(logutil.Options{
		EnableFileLogging: cfg.EnableFileLogging,
		Level:             cfg.LogLevel,
		Console:           opts.Console,
	})
	rt := &Runtime{Config: cfg, Logger: logger, closers: []io.Closer{logCloser}}
	ctx = pslog.ContextWithLogger(ctx, logger)

	if err := rt.build(ctx, opts); err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) build(ctx context.Context, opts Options) error {
	cfg, logger := rt.Config, rt.Logger
	timeout := time.Duration(cfg.RequestTimeoutSec) * time.Second

	matcher, err := BuildMatcher(cfg.Chords)
	if err != nil {
		logger.Warn("chord configuration rejected, defaults kept", "err", err)
	}
	rt.Matcher = matcher

	var client *llm.Client
	if cfg.OCRBackend == config.OCRBackendOpenRouter || cfg.Translator == config.TranslatorOpenRouter {
		if cfg.APIKey == "" {
			return fmt.Errorf("OPENROUTER_API_KEY is required. Checked key file %s and OPENROUTER_API_KEY env var", cfg.APIKeyPath)
		}
		if cfg.Model == "" {
			return fmt.Errorf("MODEL is required. Please set it in your .env file")
		}
		client = llm.New(llm.Config{APIKey: cfg.APIKey, Model: cfg.Model, Providers: cfg.Providers, Timeout: timeout})
		logger.Info("openrouter configured", "model", cfg.Model, "key", logutil.RedactKey(cfg.APIKey))
		if opts.Ping {
			if err := client.Ping(ctx); err != nil {
				if opts.ShowBlockingLLMError {
					notification.ShowBlockingError(logger, "LLM unavailable",
						fmt.Sprintf("Startup check failed: %v\n\nPlease verify your API key and network connectivity.", err))
				}
				return fmt.Errorf("startup check failed: %w", err)
			}
			logger.Info("LLM ping succeeded")
		}
	}

	reader, err := ocr.New(cfg.OCRBackend, client, cfg.SourceLanguage)
	if err != nil {
		return err
	}
	var translateClient *llm.Client
	if client != nil {
		translateClient = client.WithModel(cfg.TranslateModel)
	}
	translator, err := translate.New(ctx, translate.Options{
		Backend:      cfg.Translator,
		Source:       cfg.SourceLanguage,
		Target:       cfg.TargetLanguage,
		OpenRouter:   translateClient,
		GeminiAPIKey: cfg.GeminiAPIKey,
		GeminiModel:  cfg.GeminiModel,
	})
	if err != nil {
		return err
	}
	if c, ok := translator.(io.Closer); ok {
		rt.closers = append(rt.closers, c)
	}
	if c, ok := reader.(io.Closer); ok {
		rt.closers = append(rt.closers, c)
	}

	out := opts.Sink
	if out == nil {
		out = sink.Log{Logger: logger}
	}
	if cfg.FrameOutputDir != "" {
		dir, err := sink.NewDir(cfg.FrameOutputDir, logger)
		if err != nil {
			return err
		}
		out = sink.Multi{out, dir}
	}
	rt.Sink = out

	capture := opts.Capture
	if capture == nil {
		capture = screenshot.Capturer{}
	}

	engine := &layout.Engine{
		Loader:  layout.NewOpenTypeLoader(cfg.Layout.FontPath),
		Padding: cfg.Layout.Padding,
		MaxSize: cfg.Layout.MaxFontSize,
		MinSize: cfg.Layout.MinFontSize,
		Step:    cfg.Layout.FontStep,
		Logger:  logger,
	}

	rt.Detector = detect.New(cfg.DetectorURL, timeout, cfg.DetectorMinScore)
	rt.Engine, err = session.New(session.Deps{
		Capture:         capture,
		Detector:        rt.Detector,
		Reader:          reader,
		Translator:      translator,
		Sink:            out,
		Layout:          engine,
		Logger:          logger,
		ReuseSimilar:    cfg.ReuseSimilarFrames,
		SimilarDistance: cfg.SimilarFrameDistance,
	})
	if err != nil {
		return err
	}
	if cfg.DetectorURL == "" {
		logger.Warn("DETECTOR_URL not set, frames are shown without translation")
	}

	rt.Snipper = &session.Snipper{
		Capture:     capture,
		Reader:      reader,
		Translator:  translator,
		Sink:        out,
		Layout:      engine,
		Logger:      logger,
		Display:     session.Display(cfg.Display),
		TargetLabel: session.LanguageLabel(cfg.TargetLanguage),
	}
	if cfg.CopySnipToClipboard {
		if err := clipboard.Init(); err != nil {
			logger.Warn("clipboard copy disabled", "err", err)
		} else {
			rt.Snipper.Copy = clipboard.Write
		}
	}

	region, err := rt.Region()
	if err != nil {
		return err
	}
	rt.Selector = overlay.NewSelector(region, logger)
	return nil
}

// Region returns the configured fixed region, or nil for interactive selection.
func (rt *Runtime) Region() (*screenshot.Rect, error) {
	if rt.Config.Region == "" {
		return nil, nil
	}
	r, err := screenshot.ParseRect(rt.Config.Region)
	if err != nil {
		return nil, fmt.Errorf("REGION: %w", err)
	}
	return &r, nil
}

// Close stops the engine and releases backends and the log file.
func (rt *Runtime) Close() error {
	if rt.Engine != nil {
		rt.Engine.Stop()
	}
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}

// BuildMatcher applies configured chord definitions on top of the defaults.
// Every invalid chord is reported; valid ones are still applied.
func BuildMatcher(c config.Chords) (*hotkey.Matcher, error) {
	m := hotkey.NewMatcher()
	defs := []struct {
		action hotkey.Action
		def    string
	}{
		{hotkey.ActionStart, c.Start},
		{hotkey.ActionStop, c.Stop},
		{hotkey.ActionStopAlt, c.StopAlt},
		{hotkey.ActionSnip, c.Snip},
	}
	var errs []error
	for _, d := range defs {
		if d.def == "" {
			continue
		}
		if err := m.SetChord(d.action, hotkey.SplitChord(d.def)); err != nil {
			errs = append(errs, err)
		}
	}
	return m, errors.Join(errs...)
}
