package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"bubble-overlay/src/config"
	"bubble-overlay/src/runtimeinit"
	"bubble-overlay/src/screenshot"
	"bubble-overlay/src/session"
)

const (
	maxFileSizeMB = 10
	maxFileSize   = maxFileSizeMB * 1024 * 1024
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

type cliOptions struct {
	filePath   string
	outPath    string
	jsonOutput bool
	verbose    bool
	apiKeyPath string
	envPath    string
}

func main() {
	if err := runWithArgs(normalizeLegacyArgs(os.Args)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"bubble-cli"}
	}
	opts := &cliOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions) *cobra.Command {
	root := &cobra.Command{
		Use:           "bubble-cli",
		Short:         "Run the bubble translation pipeline on PNG files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.filePath, "file", "", "Path to PNG file (use '-' for stdin)")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	root.PersistentFlags().StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to API key file (highest precedence)")
	root.PersistentFlags().StringVar(&opts.envPath, "env", "", "Path to a .env file")
	_ = root.MarkPersistentFlagRequired("file")

	render := &cobra.Command{
		Use:   "render",
		Short: "Detect, translate and redraw the bubbles of one frame",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, img, err := prepare(cmd.Context(), *opts)
			if err != nil {
				return err
			}
			defer rt.Close()
			return runRender(cmd.Context(), rt.Engine, img, *opts, cmd.OutOrStdout())
		},
	}
	render.Flags().StringVar(&opts.outPath, "out", "", "Where to write the composited PNG (default: stdout unless --json)")

	snip := &cobra.Command{
		Use:   "snip",
		Short: "Translate all text of an image at once",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, img, err := prepare(cmd.Context(), *opts)
			if err != nil {
				return err
			}
			defer rt.Close()
			rt.Snipper.Display = session.Display{}
			rt.Snipper.Copy = nil
			rt.Snipper.Capture = screenshot.StaticSource{Img: img}
			return runSnip(cmd.Context(), rt.Snipper, img, *opts, cmd.OutOrStdout())
		},
	}

	root.AddCommand(render, snip)
	return root
}

func prepare(ctx context.Context, opts cliOptions) (*runtimeinit.Runtime, *image.RGBA, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	data, err := readInput(opts.filePath, os.Stdin)
	if err != nil {
		return nil, nil, err
	}
	img, err := decodeFrame(data)
	if err != nil {
		return nil, nil, err
	}
	rt, err := runtimeinit.Bootstrap(ctx, runtimeinit.Options{
		LoadOptions: config.LoadOptions{APIKeyPathOverride: opts.apiKeyPath, EnvPathOverride: opts.envPath},
		Console:     opts.verbose,
	})
	if err != nil {
		return nil, nil, err
	}
	rt.Logger.Debug("input decoded", "source", opts.filePath, "bounds", img.Rect.String())
	return rt, img, nil
}

// readInput reads a PNG from path or stdin and checks size and magic number.
func readInput(path string, stdin io.Reader) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(io.LimitReader(stdin, maxFileSize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", path, err)
		}
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("input file is empty")
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("input file exceeds maximum size of %d MB", maxFileSizeMB)
	}
	if len(data) < len(pngMagic) || !bytes.Equal(data[:len(pngMagic)], pngMagic) {
		return nil, fmt.Errorf("input is not a valid PNG file (invalid magic number)")
	}
	return data, nil
}

func decodeFrame(data []byte) (*image.RGBA, error) {
	img, err := screenshot.DecodePNG(data)
	if err != nil {
		return nil, err
	}
	return screenshot.ToRGBA(img, img.Bounds()), nil
}

type processor interface {
	Process(ctx context.Context, frame *image.RGBA) (*session.Result, error)
}

type RegionResult struct {
	Box      [4]int `json:"box"`
	Source   string `json:"source"`
	Text     string `json:"text"`
	Failed   bool   `json:"failed,omitempty"`
	FontSize int    `json:"font_size,omitempty"`
	Lines    int    `json:"lines,omitempty"`
}

type RenderResult struct {
	Source    string         `json:"source"`
	Output    string         `json:"output,omitempty"`
	Timestamp string         `json:"timestamp"`
	Duration  float64        `json:"duration_seconds"`
	Fill      string         `json:"fill,omitempty"`
	Regions   []RegionResult `json:"regions"`
}

func runRender(ctx context.Context, p processor, img *image.RGBA, opts cliOptions, stdout io.Writer) error {
	start := time.Now()
	res, err := p.Process(ctx, img)
	if err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	elapsed := time.Since(start)

	png, err := screenshot.EncodePNG(res.Image)
	if err != nil {
		return err
	}
	switch {
	case opts.outPath != "":
		if err := os.WriteFile(opts.outPath, png, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", opts.outPath, err)
		}
	case !opts.jsonOutput:
		_, err := stdout.Write(png)
		return err
	}

	if !opts.jsonOutput {
		return nil
	}
	out := RenderResult{
		Source:    opts.filePath,
		Output:    opts.outPath,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Duration:  elapsed.Seconds(),
		Regions:   []RegionResult{},
	}
	if res.Detected {
		out.Fill = fmt.Sprintf("#%02x%02x%02x", res.Fill.R, res.Fill.G, res.Fill.B)
	}
	for _, o := range res.Overlays {
		out.Regions = append(out.Regions, RegionResult{
			Box:      [4]int{o.Box.Min.X, o.Box.Min.Y, o.Box.Max.X, o.Box.Max.Y},
			Source:   o.Source,
			Text:     o.Text,
			Failed:   o.Failed,
			FontSize: o.Block.FontSize,
			Lines:    len(o.Block.Lines),
		})
	}
	return writeJSON(stdout, out)
}

type snipRunner interface {
	Run(ctx context.Context, region screenshot.Rect) (*session.SnipResult, error)
}

type SnipOutput struct {
	Source      string `json:"source"`
	Text        string `json:"text"`
	Translation string `json:"translation"`
}

func runSnip(ctx context.Context, s snipRunner, img *image.RGBA, opts cliOptions, stdout io.Writer) error {
	res, err := s.Run(ctx, screenshot.FromImage(img.Rect))
	if err != nil {
		return fmt.Errorf("snip failed: %w", err)
	}
	if opts.jsonOutput {
		return writeJSON(stdout, SnipOutput{Source: opts.filePath, Text: res.Source, Translation: res.Translation})
	}
	_, err = fmt.Fprint(stdout, res.Translation)
	return err
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}

var legacyFlags = []string{"file", "out", "json", "verbose", "api-key-path", "env"}

// normalizeLegacyArgs maps Go-style -flag[=v] to --flag[=v].
func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}
	normalized := make([]string, len(args))
	copy(normalized, args)
	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range legacyFlags {
			if arg == "-"+name || strings.HasPrefix(arg, "-"+name+"=") {
				normalized[i] = "-" + arg
				break
			}
		}
	}
	return normalized
}
