package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"pkt.systems/pslog"

	"bubble-overlay/src/config"
	"bubble-overlay/src/eventloop"
	"bubble-overlay/src/hotkey"
	"bubble-overlay/src/platform"
	"bubble-overlay/src/runtimeinit"
	"bubble-overlay/src/screenshot"
	"bubble-overlay/src/session"
	"bubble-overlay/src/singleinstance"
	"bubble-overlay/src/tray"
	"bubble-overlay/src/viewer"
)

type mainOptions struct {
	viewer     bool
	tray       bool
	region     string
	delay      time.Duration
	envPath    string
	apiKeyPath string
	verbose    bool
	send       string
}

func main() {
	if err := runWithArgs(normalizeLegacyArgs(os.Args)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"bubble-overlay"}
	}
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "bubble-overlay",
		Short:         "Translate speech bubbles in a screen region, live",
		Long:          "Select a screen region with the start chord (default Shift+E) and the region is captured, its text bubbles are translated and the result is shown. Shift+S or Escape stops, Shift+Q translates a region once.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOptions(*opts); err != nil {
				return err
			}
			if opts.send != "" {
				return sendToResident(cmd.Context(), cmd.OutOrStdout(), opts.send)
			}
			return runApp(*opts)
		},
	}

	cmd.Flags().BoolVar(&opts.viewer, "viewer", false, "Show frames and log lines in a window")
	cmd.Flags().BoolVar(&opts.tray, "tray", false, "Run from the system tray")
	cmd.Flags().StringVar(&opts.region, "region", "", "Fixed capture region x1,y1,x2,y2 (skips interactive selection)")
	cmd.Flags().DurationVar(&opts.delay, "delay", 0, "Wait between frames, e.g. 250ms (default from FRAME_DELAY_MS)")
	cmd.Flags().StringVar(&opts.envPath, "env", "", "Path to a .env file")
	cmd.Flags().StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to API key file (highest precedence)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log to stderr")
	cmd.Flags().StringVar(&opts.send, "send", "", "Forward start, stop or snip to the running instance and exit")
	return cmd
}

func checkOptions(opts mainOptions) error {
	if opts.viewer && opts.tray {
		return errors.New("--viewer and --tray cannot be combined")
	}
	if opts.delay < 0 {
		return config.ErrInvalidDelay
	}
	if opts.region != "" {
		if _, err := screenshot.ParseRect(opts.region); err != nil {
			return err
		}
	}
	if opts.send != "" {
		if _, err := hotkey.ParseAction(opts.send); err != nil {
			return err
		}
	}
	return nil
}

// errNoResident is returned by --send when nothing is listening.
var errNoResident = errors.New("bubble-overlay is not running")

func sendToResident(ctx context.Context, out io.Writer, action string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	delegated, reply, err := singleinstance.NewClient().Send(ctx, action)
	if err != nil {
		return err
	}
	if !delegated {
		return errNoResident
	}
	if reply != "" {
		fmt.Fprintln(out, reply)
	}
	return nil
}

// residentHandler posts forwarded actions to the loop.
func residentHandler(post func(hotkey.Action) bool) singleinstance.Handler {
	return func(r singleinstance.Request) (string, error) {
		a, err := hotkey.ParseAction(r.Action)
		if err != nil {
			return "", err
		}
		if !post(a) {
			return "", errors.New(eventloop.MsgBusy)
		}
		return a.String() + " queued", nil
	}
}

func runApp(opts mainOptions) error {
	dpiErr := platform.EnableDPIAwareness()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	probe, probeCancel := context.WithTimeout(ctx, time.Second)
	port, running := singleinstance.DetectResidentPort(probe)
	probeCancel()
	if running {
		return fmt.Errorf("already running on port %d, use --send to control it", port)
	}

	var loop *eventloop.Loop
	post := func(a hotkey.Action) {
		if loop != nil {
			loop.Post(a)
		}
	}

	var (
		view *viewer.Viewer
		out  session.Sink
	)
	if opts.viewer {
		view = viewer.New(viewer.Options{OnAction: post, OnClosed: cancel})
		out = view
	}

	rt, err := runtimeinit.Bootstrap(ctx, runtimeinit.Options{
		LoadOptions: config.LoadOptions{
			APIKeyPathOverride: opts.apiKeyPath,
			EnvPathOverride:    opts.envPath,
			RegionOverride:     opts.region,
			DelayOverride:      opts.delay,
		},
		Sink:                 out,
		Console:              opts.verbose || (!opts.viewer && !opts.tray),
		Ping:                 true,
		ShowBlockingLLMError: opts.viewer || opts.tray,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	logger := rt.Logger
	ctx = pslog.ContextWithLogger(ctx, logger)
	if dpiErr != nil {
		logger.Warn("DPI awareness not set", "err", dpiErr)
	}
	logMonitorConfiguration(logger)

	var icon *tray.Tray
	if opts.tray {
		icon = tray.New(tray.Config{
			Chords:   chordMap(rt.Matcher),
			OnAction: post,
			OnExit:   cancel,
			Logger:   logger,
		})
	}

	loop = eventloop.New(eventloop.Options{
		Engine:   rt.Engine,
		Snipper:  rt.Snipper,
		Selector: rt.Selector,
		Sink:     rt.Sink,
		Logger:   logger,
		Delay:    rt.Config.FrameDelay,
		Status: func(running bool) {
			if icon != nil {
				icon.SetRunning(running)
			}
		},
	})

	if err := hotkey.Listen(ctx, rt.Matcher, func(a hotkey.Action) { loop.Post(a) }); err != nil {
		return fmt.Errorf("failed to start hotkey listener: %w", err)
	}

	resident := singleinstance.NewServer(logger)
	if err := resident.Start(ctx); err != nil {
		logger.Warn("resident endpoint unavailable, --send will not reach this instance", "err", err)
	} else {
		defer resident.Close()
		go singleinstance.Serve(ctx, resident, residentHandler(loop.Post))
	}

	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(ctx) }()

	logger.Info("bubble overlay ready",
		"start", rt.Matcher.Chord(hotkey.ActionStart).String(),
		"stop", rt.Matcher.Chord(hotkey.ActionStop).String(),
		"snip", rt.Matcher.Chord(hotkey.ActionSnip).String(),
		"delay", rt.Config.FrameDelay)

	switch {
	case view != nil:
		go func() {
			<-ctx.Done()
			view.Close()
		}()
		view.ShowAndRun()
		cancel()
	case icon != nil:
		go func() {
			<-ctx.Done()
			icon.Quit()
		}()
		icon.Run()
		cancel()
	default:
		<-ctx.Done()
	}

	if err := <-loopDone; err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("event loop stopped: %w", err)
	}
	logger.Info("bye")
	return nil
}

func chordMap(m *hotkey.Matcher) map[hotkey.Action]hotkey.Chord {
	out := make(map[hotkey.Action]hotkey.Chord)
	for _, a := range []hotkey.Action{hotkey.ActionStart, hotkey.ActionStop, hotkey.ActionStopAlt, hotkey.ActionSnip} {
		out[a] = m.Chord(a)
	}
	return out
}

var longFlags = []string{"viewer", "tray", "region", "delay", "env", "api-key-path", "verbose", "send"}

// normalizeLegacyArgs maps Go-style -flag[=v] to --flag[=v] for the long flags.
func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}
	normalized := make([]string, len(args))
	copy(normalized, args)
	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range longFlags {
			if arg == "-"+name || strings.HasPrefix(arg, "-"+name+"=") {
				normalized[i] = "-" + arg
				break
			}
		}
	}
	return normalized
}
