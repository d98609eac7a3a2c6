package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bubble-overlay/src/logutil"
	"bubble-overlay/src/mask"
	"bubble-overlay/src/screenshot"
	"bubble-overlay/src/session"
	"bubble-overlay/src/sink"
	"bubble-overlay/src/translate"
)

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 80, 40))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	data, err := screenshot.EncodePNG(img)
	require.NoError(t, err)
	return data
}

func TestReadInput(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.png")
	require.NoError(t, os.WriteFile(good, testPNG(t), 0o644))
	bad := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not a png at all"), 0o644))
	empty := filepath.Join(dir, "empty.png")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	_, err := readInput(good, nil)
	assert.NoError(t, err)

	_, err = readInput(bad, nil)
	assert.ErrorContains(t, err, "invalid magic number")

	_, err = readInput(empty, nil)
	assert.ErrorContains(t, err, "empty")

	_, err = readInput(filepath.Join(dir, "missing.png"), nil)
	assert.ErrorContains(t, err, "failed to read file")

	data, err := readInput("-", bytes.NewReader(testPNG(t)))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngMagic))
}

func TestReadInputTooLarge(t *testing.T) {
	big := append(append([]byte{}, pngMagic...), make([]byte, maxFileSize)...)
	_, err := readInput("-", bytes.NewReader(big))
	assert.ErrorContains(t, err, "exceeds maximum size")
}

func TestNormalizeLegacyArgs(t *testing.T) {
	got := normalizeLegacyArgs([]string{"bubble-cli", "render", "-file", "a.png", "-json", "-out=b.png", "--verbose"})
	assert.Equal(t, []string{"bubble-cli", "render", "--file", "a.png", "--json", "--out=b.png", "--verbose"}, got)
}

func TestRootCommandRequiresFile(t *testing.T) {
	opts := &cliOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs([]string{"render"})
	err := cmd.Execute()
	assert.ErrorContains(t, err, "file")
}

type fixedDetector []mask.Region

func (d fixedDetector) Detect(context.Context, *image.RGBA) ([]mask.Region, error) { return d, nil }

type constReader string

func (r constReader) Read(context.Context, image.Image) (string, error) { return string(r), nil }

func newEngine(t *testing.T, regions []mask.Region) *session.Engine {
	t.Helper()
	e, err := session.New(session.Deps{
		Capture:    screenshot.StaticSource{Img: image.NewRGBA(image.Rect(0, 0, 1, 1))},
		Detector:   fixedDetector(regions),
		Reader:     constReader("hello there"),
		Translator: translate.Passthrough{},
		Sink:       &sink.Recorder{},
		Logger:     logutil.Discard(),
	})
	require.NoError(t, err)
	return e
}

func TestRunRenderJSON(t *testing.T) {
	img, err := decodeFrame(testPNG(t))
	require.NoError(t, err)
	outPath := filepath.Join(t.TempDir(), "out.png")

	var stdout bytes.Buffer
	engine := newEngine(t, []mask.Region{{Box: image.Rect(10, 5, 70, 35)}})
	require.NoError(t, runRender(context.Background(), engine, img, cliOptions{filePath: "in.png", outPath: outPath, jsonOutput: true}, &stdout))

	var res RenderResult
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &res))
	assert.Equal(t, "in.png", res.Source)
	assert.Equal(t, "#ffffff", res.Fill)
	require.Len(t, res.Regions, 1)
	assert.Equal(t, [4]int{10, 5, 70, 35}, res.Regions[0].Box)
	assert.Equal(t, "hello there", res.Regions[0].Text)
	assert.Positive(t, res.Regions[0].FontSize)

	written, err := os.ReadFile(outPath)
	require.NoError(t, err)
	out, err := screenshot.DecodePNG(written)
	require.NoError(t, err)
	assert.Equal(t, img.Rect, out.Bounds())
}

func TestRunRenderPNGToStdout(t *testing.T) {
	img, err := decodeFrame(testPNG(t))
	require.NoError(t, err)

	var stdout bytes.Buffer
	require.NoError(t, runRender(context.Background(), newEngine(t, nil), img, cliOptions{}, &stdout))
	out, err := screenshot.DecodePNG(stdout.Bytes())
	require.NoError(t, err)
	assert.Equal(t, color.RGBAModel.Convert(color.White), color.RGBAModel.Convert(out.At(3, 3)))
}

type fakeSnipper struct{ got screenshot.Rect }

func (f *fakeSnipper) Run(_ context.Context, r screenshot.Rect) (*session.SnipResult, error) {
	f.got = r
	return &session.SnipResult{Source: "こんにちは", Translation: "Hello"}, nil
}

func TestRunSnip(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 50, 20))
	s := &fakeSnipper{}

	var plain bytes.Buffer
	require.NoError(t, runSnip(context.Background(), s, img, cliOptions{}, &plain))
	assert.Equal(t, "Hello", plain.String())
	assert.Equal(t, screenshot.Rect{X2: 50, Y2: 20}, s.got)

	var js bytes.Buffer
	require.NoError(t, runSnip(context.Background(), s, img, cliOptions{jsonOutput: true, filePath: "a.png"}, &js))
	assert.True(t, strings.Contains(js.String(), `"translation": "Hello"`))
}
