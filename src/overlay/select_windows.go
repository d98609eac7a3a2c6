//go:build windows

package overlay

import (
	"context"
	"fmt"
	"image"
	"runtime"
	"syscall"
	"time"
	"unsafe"

	"github.com/lxn/win"
	"pkt.systems/pslog"

	"bubble-overlay/src/screenshot"
)

const (
	keyPollTimerID    = 1
	keyPollIntervalMs = 25
	hintText          = "Drag to select the area to translate   ESC cancels"
)

var (
	user32DLL                    = syscall.NewLazyDLL("user32.dll")
	gdi32DLL                     = syscall.NewLazyDLL("gdi32.dll")
	procAllowSetForegroundWindow = user32DLL.NewProc("AllowSetForegroundWindow")
	procGetAsyncKeyState         = user32DLL.NewProc("GetAsyncKeyState")
	procCreatePen                = gdi32DLL.NewProc("CreatePen")
	procRectangle                = gdi32DLL.NewProc("Rectangle")
)

// dragState is the state of the one open selection window. The window
// procedure is a plain callback, so it reaches the state through active.
type dragState struct {
	logger     pslog.Logger
	hwnd       win.HWND
	backdrop   *image.RGBA
	origin     image.Point
	dragging   bool
	start, end image.Point
	escWasDown bool
	cursor     win.HCURSOR
	result     chan screenshot.Rect
}

var active *dragState

// dragSelector shows a full-screen frozen screenshot and lets the user drag a
// rectangle over it.
type dragSelector struct {
	logger pslog.Logger
}

func newInteractiveSelector(logger pslog.Logger) Selector {
	return &dragSelector{logger: logger}
}

func (s *dragSelector) Select(ctx context.Context) (screenshot.Rect, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	vx := win.GetSystemMetrics(win.SM_XVIRTUALSCREEN)
	vy := win.GetSystemMetrics(win.SM_YVIRTUALSCREEN)
	vw := win.GetSystemMetrics(win.SM_CXVIRTUALSCREEN)
	vh := win.GetSystemMetrics(win.SM_CYVIRTUALSCREEN)
	s.logger.Debug("virtual screen", "x", vx, "y", vy, "w", vw, "h", vh)

	backdrop, err := screenshot.CaptureDisplay()
	if err != nil {
		return screenshot.Rect{}, fmt.Errorf("failed to capture screen: %w", err)
	}

	st := &dragState{
		logger:   s.logger,
		backdrop: backdrop,
		origin:   image.Pt(int(vx), int(vy)),
		cursor:   win.LoadCursor(0, win.MAKEINTRESOURCE(win.IDC_CROSS)),
		result:   make(chan screenshot.Rect, 1),
	}
	active = st
	defer func() { active = nil }()

	className := syscall.StringToUTF16Ptr(fmt.Sprintf("BubbleOverlaySelect_%d", time.Now().UnixNano()))
	wndClass := win.WNDCLASSEX{
		CbSize:        uint32(unsafe.Sizeof(win.WNDCLASSEX{})),
		Style:         win.CS_HREDRAW | win.CS_VREDRAW,
		LpfnWndProc:   syscall.NewCallback(selectWndProc),
		HInstance:     win.GetModuleHandle(nil),
		HCursor:       st.cursor,
		LpszClassName: className,
	}
	if win.RegisterClassEx(&wndClass) == 0 {
		return screenshot.Rect{}, fmt.Errorf("failed to register window class")
	}
	defer win.UnregisterClass(className)

	st.hwnd = win.CreateWindowEx(
		win.WS_EX_TOPMOST,
		className,
		syscall.StringToUTF16Ptr("Select region"),
		win.WS_POPUP|win.WS_VISIBLE,
		vx, vy, vw, vh,
		0, 0, win.GetModuleHandle(nil), nil,
	)
	if st.hwnd == 0 {
		return screenshot.Rect{}, fmt.Errorf("failed to create overlay window")
	}

	win.ShowWindow(st.hwnd, win.SW_SHOW)
	procAllowSetForegroundWindow.Call(uintptr(syscall.Getpid()))
	win.SetForegroundWindow(st.hwnd)
	win.BringWindowToTop(st.hwnd)
	win.SetFocus(st.hwnd)
	win.UpdateWindow(st.hwnd)
	if win.SetTimer(st.hwnd, keyPollTimerID, keyPollIntervalMs, 0) == 0 {
		s.logger.Warn("failed to start keyboard poll timer")
	}

	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func(hwnd win.HWND) {
		select {
		case <-ctx.Done():
			win.PostMessage(hwnd, win.WM_CLOSE, 0, 0)
		case <-stopWatch:
		}
	}(st.hwnd)

	var msg win.MSG
	for {
		ret := win.GetMessage(&msg, 0, 0, 0)
		if ret == 0 || ret == -1 {
			break
		}
		win.TranslateMessage(&msg)
		win.DispatchMessage(&msg)

		select {
		case r := <-st.result:
			win.DestroyWindow(st.hwnd)
			s.logger.Info("region selected", "region", r.String())
			return r, Check(r)
		default:
		}
	}

	win.DestroyWindow(st.hwnd)
	if err := ctx.Err(); err != nil {
		return screenshot.Rect{}, err
	}
	return screenshot.Rect{}, ErrSelectionCancelled
}

func selectWndProc(hwnd win.HWND, msg uint32, wParam, lParam uintptr) uintptr {
	st := active
	if st == nil {
		return win.DefWindowProc(hwnd, msg, wParam, lParam)
	}
	switch msg {
	case win.WM_LBUTTONDOWN:
		win.SetCapture(hwnd)
		st.dragging = true
		st.start = mousePoint(lParam)
		st.end = st.start
		repaint(hwnd)
		return 0

	case win.WM_MOUSEMOVE:
		if st.dragging {
			st.end = mousePoint(lParam)
			repaint(hwnd)
		}
		return 0

	case win.WM_LBUTTONUP:
		if !st.dragging {
			return 0
		}
		win.ReleaseCapture()
		st.dragging = false
		st.end = mousePoint(lParam)
		r := image.Rectangle{Min: st.start, Max: st.end}.Canon().Add(st.origin)
		st.result <- screenshot.FromImage(r)
		return 0

	case win.WM_PAINT:
		var ps win.PAINTSTRUCT
		hdc := win.BeginPaint(hwnd, &ps)
		paintBackdrop(hdc, st.backdrop)
		paintHint(hdc)
		if st.dragging {
			paintSelection(hdc, image.Rectangle{Min: st.start, Max: st.end}.Canon())
		}
		win.EndPaint(hwnd, &ps)
		return 0

	case win.WM_SETCURSOR:
		if st.cursor != 0 {
			win.SetCursor(st.cursor)
		}
		return 1

	case win.WM_TIMER:
		if wParam == keyPollTimerID {
			// The global hook can swallow WM_KEYDOWN, so Escape is polled too.
			down, pressed := asyncKeyState(win.VK_ESCAPE)
			if !st.escWasDown && (down || pressed) {
				win.PostQuitMessage(0)
			}
			st.escWasDown = down
		}
		return 0

	case win.WM_KEYDOWN:
		if wParam == win.VK_ESCAPE {
			st.escWasDown = true
			win.PostQuitMessage(0)
		}
		return 0

	case win.WM_CLOSE:
		win.PostQuitMessage(0)
		return 0

	case win.WM_NCHITTEST:
		return uintptr(win.HTCLIENT)

	case win.WM_DESTROY:
		// No PostQuitMessage here: a stray WM_QUIT would cancel the next selection.
		win.KillTimer(hwnd, keyPollTimerID)
		return 0
	}
	return win.DefWindowProc(hwnd, msg, wParam, lParam)
}

func mousePoint(lParam uintptr) image.Point {
	return image.Pt(int(int16(win.LOWORD(uint32(lParam)))), int(int16(win.HIWORD(uint32(lParam)))))
}

func repaint(hwnd win.HWND) {
	win.InvalidateRect(hwnd, nil, false)
	win.UpdateWindow(hwnd)
}

func asyncKeyState(vk int32) (down, pressed bool) {
	state, _, _ := procGetAsyncKeyState.Call(uintptr(vk))
	s := uint16(state)
	return s&0x8000 != 0, s&0x0001 != 0
}

func paintSelection(hdc win.HDC, r image.Rectangle) {
	pen, _, _ := procCreatePen.Call(0, 3, 0x0000FF)
	oldPen := win.SelectObject(hdc, win.HGDIOBJ(pen))
	oldBrush := win.SelectObject(hdc, win.GetStockObject(win.NULL_BRUSH))
	procRectangle.Call(uintptr(hdc), uintptr(r.Min.X), uintptr(r.Min.Y), uintptr(r.Max.X), uintptr(r.Max.Y))
	win.SelectObject(hdc, oldPen)
	win.SelectObject(hdc, oldBrush)
	win.DeleteObject(win.HGDIOBJ(pen))
}

func paintHint(hdc win.HDC) {
	win.SetBkMode(hdc, win.TRANSPARENT)
	win.SetTextColor(hdc, win.COLORREF(0x00FFFF))
	win.TextOut(hdc, 16, 16, syscall.StringToUTF16Ptr(hintText), int32(len(hintText)))
}

// paintBackdrop blits the frozen screenshot as a top-down 32-bit DIB.
func paintBackdrop(hdc win.HDC, img *image.RGBA) {
	if img == nil {
		return
	}
	memDC := win.CreateCompatibleDC(hdc)
	defer win.DeleteDC(memDC)

	w, h := img.Rect.Dx(), img.Rect.Dy()
	info := win.BITMAPINFO{
		BmiHeader: win.BITMAPINFOHEADER{
			BiSize:        uint32(unsafe.Sizeof(win.BITMAPINFOHEADER{})),
			BiWidth:       int32(w),
			BiHeight:      -int32(h),
			BiPlanes:      1,
			BiBitCount:    32,
			BiCompression: win.BI_RGB,
		},
	}
	var bits unsafe.Pointer
	bmp := win.CreateDIBSection(memDC, &info.BmiHeader, win.DIB_RGB_COLORS, &bits, 0, 0)
	if bmp == 0 {
		return
	}
	defer win.DeleteObject(win.HGDIOBJ(bmp))
	old := win.SelectObject(memDC, win.HGDIOBJ(bmp))
	defer win.SelectObject(memDC, old)

	dst := unsafe.Slice((*byte)(bits), w*h*4)
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+w*4]
		row := dst[y*w*4 : (y+1)*w*4]
		for x := 0; x < w*4; x += 4 {
			row[x], row[x+1], row[x+2], row[x+3] = src[x+2], src[x+1], src[x], src[x+3]
		}
	}
	win.BitBlt(hdc, 0, 0, int32(w), int32(h), memDC, 0, 0, win.SRCCOPY)
}
