package hotkey

import (
	"context"
	"errors"
	"runtime"
	"unicode"

	gohook "github.com/robotn/gohook"
	"pkt.systems/pslog"
)

// Handler receives fired actions on the hook goroutine. It must not block.
type Handler func(Action)

// Listen starts the global keyboard hook and feeds m until ctx is cancelled.
func Listen(ctx context.Context, m *Matcher, handle Handler) error {
	logger := pslog.Ctx(ctx)
	for _, a := range priority {
		logger.Info("hotkey registered", "action", a.String(), "chord", m.Chord(a).String())
	}

	evChan := gohook.Start()
	if evChan == nil {
		return errors.New("gohook.Start() returned nil channel")
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("PANIC in hotkey goroutine", "panic", r)
			}
		}()
		defer gohook.End()

		for {
			select {
			case <-ctx.Done():
				logger.Debug("hotkey listener stopped")
				return
			case ev, ok := <-evChan:
				if !ok {
					logger.Info("Event channel closed")
					return
				}
				Dispatch(logger, m, ev, runtime.GOOS, handle)
			}
		}
	}()
	return nil
}

// Dispatch applies one hook event to the matcher and calls handle when a chord fires.
func Dispatch(logger pslog.Logger, m *Matcher, ev gohook.Event, goos string, handle Handler) {
	switch ev.Kind {
	case gohook.KeyHold, gohook.KeyDown:
		k, ok := resolveKey(ev.Rawcode, ev.Keychar, goos)
		if !ok {
			return
		}
		if a := m.Press(k); a != ActionNone {
			logger.Debug("chord fired", "action", a.String(), "key", string(k))
			if handle != nil {
				handle(a)
			}
		}
	case gohook.KeyUp:
		if k, ok := resolveKey(ev.Rawcode, ev.Keychar, goos); ok {
			m.Release(k)
		}
	}
}

// resolveKey maps a hook event to a LogicalKey. Windows rawcodes are virtual key
// codes; other platforms go through gohook's keychar table.
func resolveKey(rawcode uint16, keychar rune, goos string) (LogicalKey, bool) {
	if goos == "windows" {
		if k, ok := KeyFromVK(rawcode); ok {
			return k, true
		}
	} else if name := gohook.RawcodetoKeychar(rawcode); name != "" {
		if k, err := Normalize(name); err == nil {
			return k, true
		}
	}
	if keychar != gohook.CharUndefined && keychar != 0 && unicode.IsPrint(keychar) {
		if k, err := Normalize(string(keychar)); err == nil {
			return k, true
		}
	}
	return "", false
}
