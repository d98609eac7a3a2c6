// Package viewer is the desktop window that shows composited frames next to a
// console of log lines.
package viewer

import (
	"image"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"pkt.systems/pslog"

	"bubble-overlay/src/hotkey"
	"bubble-overlay/src/logutil"
	"bubble-overlay/src/screenshot"
)

const appID = "systems.bubble-overlay"

type Options struct {
	Title    string
	OnAction func(hotkey.Action)
	// OnClosed runs after the window is closed and the app has quit.
	OnClosed func()
	Logger   pslog.Logger
}

// Viewer implements the session sink on top of a fyne window. Emit calls may
// come from any goroutine; widget updates are marshalled with fyne.Do.
type Viewer struct {
	opts    Options
	app     fyne.App
	win     fyne.Window
	frame   *canvas.Image
	log     *widget.Label
	console *Console
}

func New(opts Options) *Viewer {
	if opts.Title == "" {
		opts.Title = "Bubble Overlay"
	}
	if opts.Logger == nil {
		opts.Logger = logutil.Discard()
	}
	v := &Viewer{
		opts:    opts,
		app:     app.NewWithID(appID),
		console: NewConsole(DefaultConsoleLines),
	}
	v.build()
	return v
}

func (v *Viewer) build() {
	v.win = v.app.NewWindow(v.opts.Title)

	v.frame = canvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, 1, 1)))
	v.frame.FillMode = canvas.ImageFillContain
	v.frame.SetMinSize(fyne.NewSize(480, 320))

	v.log = widget.NewLabel("")
	v.log.Wrapping = fyne.TextWrapWord
	v.log.TextStyle = fyne.TextStyle{Monospace: true}

	buttons := container.NewHBox(
		widget.NewButton("Start", func() { v.post(hotkey.ActionStart) }),
		widget.NewButton("Stop", func() { v.post(hotkey.ActionStop) }),
		widget.NewButton("Snip", func() { v.post(hotkey.ActionSnip) }),
	)
	console := container.NewBorder(buttons, nil, nil, nil, container.NewVScroll(v.log))

	split := container.NewHSplit(v.frame, console)
	split.Offset = 0.65
	v.win.SetContent(split)
	v.win.Resize(fyne.NewSize(1100, 640))
}

func (v *Viewer) post(a hotkey.Action) {
	if v.opts.OnAction != nil {
		v.opts.OnAction(a)
	}
}

// EmitFrame shows a PNG frame scaled to fit the frame pane.
func (v *Viewer) EmitFrame(png []byte) {
	img, err := screenshot.DecodePNG(png)
	if err != nil {
		v.opts.Logger.Warn("viewer could not decode frame", "err", err)
		return
	}
	fyne.Do(func() {
		v.frame.Image = img
		v.frame.Refresh()
	})
}

// EmitLog prepends a timestamped line to the console pane.
func (v *Viewer) EmitLog(line string) {
	text := v.console.Add(line)
	fyne.Do(func() { v.log.SetText(text) })
}

// ShowAndRun blocks on the UI event loop. It must run on the main goroutine.
func (v *Viewer) ShowAndRun() {
	v.win.SetOnClosed(func() {
		if v.opts.OnClosed != nil {
			v.opts.OnClosed()
		}
	})
	v.win.ShowAndRun()
}

// Close quits the UI loop. Safe from any goroutine.
func (v *Viewer) Close() {
	fyne.Do(v.app.Quit)
}
