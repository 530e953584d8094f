//go:build windows

// Package winsink is the Windows InputSink adapter: input synthesis via
// SendInput and window control via the Win32 window-management APIs
// (spec.md §4.3).
package winsink

import (
	"context"
	"fmt"
	"syscall"
	"time"
	"unsafe"

	"github.com/atotto/clipboard"
	"golang.org/x/sys/windows"

	"github.com/deskflow-rpa/deskflow/internal/recording/model"
	"github.com/deskflow-rpa/deskflow/internal/replay"
)

const (
	inputKeyboard = 1
	inputMouse    = 0

	keyEventFKeyUp = 0x0002
	keyEventFUnicode = 0x0004

	mouseEventFMove     = 0x0001
	mouseEventFAbsolute = 0x8000
	mouseEventFLeftDown  = 0x0002
	mouseEventFLeftUp    = 0x0004
	mouseEventFRightDown = 0x0008
	mouseEventFRightUp   = 0x0010
	mouseEventFMiddleDown = 0x0020
	mouseEventFMiddleUp   = 0x0040
	mouseEventFWheel      = 0x0800
	mouseEventFXDown      = 0x0080
	mouseEventFXUp        = 0x0100

	vkControl = 0x11
	vkMenu    = 0x12
	vkShift   = 0x10
	vkLWin    = 0x5B
	vkV       = 0x56
)

var (
	user32             = windows.NewLazySystemDLL("user32.dll")
	procSendInput      = user32.NewProc("SendInput")
	procFindWindowW    = user32.NewProc("FindWindowW")
	procSetForeground  = user32.NewProc("SetForegroundWindow")
	procSetWindowPos   = user32.NewProc("SetWindowPos")
	procGetSystemMetrics = user32.NewProc("GetSystemMetrics")
	procGetForegroundWindow = user32.NewProc("GetForegroundWindow")
)

type mouseInput struct {
	Dx, Dy      int32
	MouseData   uint32
	Flags       uint32
	Time        uint32
	ExtraInfo   uintptr
}

type keybdInput struct {
	Vk        uint16
	Scan      uint16
	Flags     uint32
	Time      uint32
	ExtraInfo uintptr
}

// input mirrors Win32's tagged INPUT union; padding makes the mouse/keybd
// fields line up on both 32 and 64-bit builds.
type input struct {
	Type uint32
	_    uint32 // alignment padding before the union on amd64
	Data [40]byte
}

func sendKeyInput(vk uint16, keyUp bool) {
	var flags uint32
	if keyUp {
		flags = keyEventFKeyUp
	}
	kb := keybdInput{Vk: vk, Flags: flags}
	in := input{Type: inputKeyboard}
	*(*keybdInput)(unsafe.Pointer(&in.Data[0])) = kb
	procSendInput.Call(1, uintptr(unsafe.Pointer(&in)), unsafe.Sizeof(in))
}

func sendUnicodeInput(r rune, keyUp bool) {
	flags := uint32(keyEventFUnicode)
	if keyUp {
		flags |= keyEventFKeyUp
	}
	kb := keybdInput{Scan: uint16(r), Flags: flags}
	in := input{Type: inputKeyboard}
	*(*keybdInput)(unsafe.Pointer(&in.Data[0])) = kb
	procSendInput.Call(1, uintptr(unsafe.Pointer(&in)), unsafe.Sizeof(in))
}

func screenSize() (int32, int32) {
	const smCXScreen, smCYScreen = 0, 1
	w, _, _ := procGetSystemMetrics.Call(smCXScreen)
	h, _, _ := procGetSystemMetrics.Call(smCYScreen)
	return int32(w), int32(h)
}

func sendMouseMove(x, y int) {
	sw, sh := screenSize()
	absX := int32(float64(x) * 65535 / float64(sw))
	absY := int32(float64(y) * 65535 / float64(sh))
	m := mouseInput{Dx: absX, Dy: absY, Flags: mouseEventFMove | mouseEventFAbsolute}
	in := input{Type: inputMouse}
	*(*mouseInput)(unsafe.Pointer(&in.Data[0])) = m
	procSendInput.Call(1, uintptr(unsafe.Pointer(&in)), unsafe.Sizeof(in))
}

func sendMouseButton(button model.MouseButton, down bool) {
	var flags uint32
	var data uint32
	switch button {
	case model.ButtonLeft:
		flags = pick(down, mouseEventFLeftDown, mouseEventFLeftUp)
	case model.ButtonRight:
		flags = pick(down, mouseEventFRightDown, mouseEventFRightUp)
	case model.ButtonMiddle:
		flags = pick(down, mouseEventFMiddleDown, mouseEventFMiddleUp)
	case model.ButtonX1:
		flags, data = pick(down, mouseEventFXDown, mouseEventFXUp), 1
	case model.ButtonX2:
		flags, data = pick(down, mouseEventFXDown, mouseEventFXUp), 2
	}
	m := mouseInput{Flags: flags, MouseData: data}
	in := input{Type: inputMouse}
	*(*mouseInput)(unsafe.Pointer(&in.Data[0])) = m
	procSendInput.Call(1, uintptr(unsafe.Pointer(&in)), unsafe.Sizeof(in))
}

func sendMouseWheel(delta int) {
	m := mouseInput{Flags: mouseEventFWheel, MouseData: uint32(int32(delta))}
	in := input{Type: inputMouse}
	*(*mouseInput)(unsafe.Pointer(&in.Data[0])) = m
	procSendInput.Call(1, uintptr(unsafe.Pointer(&in)), unsafe.Sizeof(in))
}

func pick(cond bool, a, b uint32) uint32 {
	if cond {
		return a
	}
	return b
}

type hwndHandle uintptr

// Sink is the Windows InputSink.
type Sink struct{}

func New() *Sink { return &Sink{} }

func (s *Sink) PressKey(ctx context.Context, vk int, mods model.Modifiers) error {
	press := func(code uint16) { sendKeyInput(code, false) }
	release := func(code uint16) { sendKeyInput(code, true) }

	if mods.Ctrl {
		press(vkControl)
	}
	if mods.Alt {
		press(vkMenu)
	}
	if mods.Shift {
		press(vkShift)
	}
	if mods.Meta {
		press(vkLWin)
	}
	sendKeyInput(uint16(vk), false)
	sendKeyInput(uint16(vk), true)
	if mods.Meta {
		release(vkLWin)
	}
	if mods.Shift {
		release(vkShift)
	}
	if mods.Alt {
		release(vkMenu)
	}
	if mods.Ctrl {
		release(vkControl)
	}
	return nil
}

func (s *Sink) MoveAndClick(ctx context.Context, x, y int, button model.MouseButton, double bool, wheelDelta int) error {
	sendMouseMove(x, y)
	if wheelDelta != 0 {
		sendMouseWheel(wheelDelta)
		return nil
	}
	clicks := 1
	if double {
		clicks = 2
	}
	for i := 0; i < clicks; i++ {
		sendMouseButton(button, true)
		sendMouseButton(button, false)
	}
	return nil
}

// clipboardRestoreBound is the spec.md §4.3 "best-effort and time-bounded
// (1 s)" restoration window.
const clipboardRestoreBound = time.Second

func (s *Sink) TypeText(ctx context.Context, text string, method model.InputMethod) error {
	switch method {
	case model.InputClipboard:
		return s.typeViaClipboard(ctx, text)
	case model.InputIME:
		// The composition-window path requires per-IME integration; typing
		// unicode scancodes directly is an acceptable fallback since the
		// characters still land correctly without IME candidate UI.
		return s.typeDirect(text)
	default:
		return s.typeDirect(text)
	}
}

func (s *Sink) typeDirect(text string) error {
	for _, r := range text {
		sendUnicodeInput(r, false)
		sendUnicodeInput(r, true)
	}
	return nil
}

func (s *Sink) typeViaClipboard(ctx context.Context, text string) error {
	previous, _ := clipboard.ReadAll()
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("%w: writing clipboard: %v", replay.ErrSynthesisFailed, err)
	}

	sendKeyInput(vkControl, false)
	sendKeyInput(vkV, false)
	sendKeyInput(vkV, true)
	sendKeyInput(vkControl, true)

	restoreCtx, cancel := context.WithTimeout(ctx, clipboardRestoreBound)
	defer cancel()
	go func() {
		<-restoreCtx.Done()
		_ = clipboard.WriteAll(previous) // best-effort, errors are not actionable here
	}()
	return nil
}

func (s *Sink) FindWindow(ctx context.Context, target model.WindowDescriptor) (replay.WindowHandle, error) {
	var titlePtr *uint16
	if target.Title != "" {
		p, err := syscall.UTF16PtrFromString(target.Title)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", replay.ErrSynthesisFailed, err)
		}
		titlePtr = p
	}
	var classPtr *uint16
	if target.Class != "" {
		p, err := syscall.UTF16PtrFromString(target.Class)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", replay.ErrSynthesisFailed, err)
		}
		classPtr = p
	}
	hwnd, _, _ := procFindWindowW.Call(uintptr(unsafe.Pointer(classPtr)), uintptr(unsafe.Pointer(titlePtr)))
	if hwnd == 0 {
		return nil, fmt.Errorf("%w: %v", replay.ErrWindowNotFound, target)
	}
	return hwndHandle(hwnd), nil
}

func (s *Sink) Activate(ctx context.Context, h replay.WindowHandle) error {
	hwnd, ok := h.(hwndHandle)
	if !ok {
		return fmt.Errorf("%w: invalid window handle", replay.ErrSynthesisFailed)
	}
	ret, _, _ := procSetForeground.Call(uintptr(hwnd))
	if ret == 0 {
		return fmt.Errorf("%w: SetForegroundWindow failed", replay.ErrPermissionDenied)
	}
	return nil
}

// ForegroundWindow reports whatever window currently holds focus, via
// GetForegroundWindow, the same call windows_api_service.py's
// _get_current_window_handle uses to skip the active window when
// minimizing everything else.
func (s *Sink) ForegroundWindow(ctx context.Context) (replay.WindowHandle, error) {
	hwnd, _, _ := procGetForegroundWindow.Call()
	if hwnd == 0 {
		return nil, fmt.Errorf("%w: no foreground window", replay.ErrWindowNotFound)
	}
	return hwndHandle(hwnd), nil
}

func (s *Sink) MoveWindow(ctx context.Context, h replay.WindowHandle, rect model.Rect) error {
	hwnd, ok := h.(hwndHandle)
	if !ok {
		return fmt.Errorf("%w: invalid window handle", replay.ErrSynthesisFailed)
	}
	const swpNoZOrder = 0x0004
	ret, _, _ := procSetWindowPos.Call(uintptr(hwnd), 0,
		uintptr(rect.X), uintptr(rect.Y), uintptr(rect.W), uintptr(rect.H), swpNoZOrder)
	if ret == 0 {
		return fmt.Errorf("%w: SetWindowPos failed", replay.ErrSynthesisFailed)
	}
	return nil
}
