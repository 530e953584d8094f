//go:build windows

// Package winsource is the Windows InputSource adapter: a low-level
// keyboard/mouse hook installed via SetWindowsHookEx (spec.md §4.2).
package winsource

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/deskflow-rpa/deskflow/internal/capture"
	"github.com/deskflow-rpa/deskflow/internal/platform/clock"
)

const (
	whKeyboardLL = 13
	whMouseLL    = 14

	wmKeyDown    = 0x0100
	wmKeyUp      = 0x0101
	wmSysKeyDown = 0x0104
	wmSysKeyUp   = 0x0105

	wmMouseMove  = 0x0200
	wmLButtonDown = 0x0201
	wmLButtonUp   = 0x0202
	wmRButtonDown = 0x0204
	wmRButtonUp   = 0x0205
	wmMButtonDown = 0x0207
	wmMButtonUp   = 0x0208
	wmMouseWheel  = 0x020A
	wmXButtonDown = 0x020B
	wmXButtonUp   = 0x020C

	vkLShift, vkRShift       = 0xA0, 0xA1
	vkLControl, vkRControl   = 0xA2, 0xA3
	vkLMenu, vkRMenu         = 0xA4, 0xA5
	vkLWin, vkRWin           = 0x5B, 0x5C
)

type kbdllhookstruct struct {
	VKCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type msllhookstruct struct {
	Pt          struct{ X, Y int32 }
	MouseData   uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

var (
	user32                   = windows.NewLazySystemDLL("user32.dll")
	procSetWindowsHookExW    = user32.NewProc("SetWindowsHookExW")
	procCallNextHookEx       = user32.NewProc("CallNextHookEx")
	procUnhookWindowsHookEx  = user32.NewProc("UnhookWindowsHookEx")
	procGetMessageW          = user32.NewProc("GetMessageW")
	procTranslateMessage     = user32.NewProc("TranslateMessage")
	procDispatchMessageW     = user32.NewProc("DispatchMessageW")
	procPostThreadMessageW   = user32.NewProc("PostThreadMessageW")
	procGetCurrentThreadId   = windows.NewLazySystemDLL("kernel32.dll").NewProc("GetCurrentThreadId")
)

const wmQuit = 0x0012

// vkKeyNames maps virtual-key codes this adapter cares about to the raw
// key labels the Event Filter normalizes (spec.md §4.4 step 1).
var vkKeyNames = map[uint32]string{
	0x1B: "Escape", 0x0D: "Return", 0x20: "Space", 0x09: "Tab", 0x08: "Backspace",
	0x2E: "Delete", 0x2D: "Insert", 0x24: "Home", 0x23: "End",
	0x21: "Page_Up", 0x22: "Page_Down",
	0x26: "Up", 0x28: "Down", 0x25: "Left", 0x27: "Right",
	0x70: "F1", 0x71: "F2", 0x72: "F3", 0x73: "F4", 0x74: "F5", 0x75: "F6",
	0x76: "F7", 0x77: "F8", 0x78: "F9", 0x79: "F10", 0x7A: "F11", 0x7B: "F12",
}

func keyName(vk uint32) string {
	if name, ok := vkKeyNames[vk]; ok {
		return name
	}
	if vk >= 'A' && vk <= 'Z' {
		return string(rune(vk))
	}
	if vk >= '0' && vk <= '9' {
		return string(rune(vk))
	}
	return fmt.Sprintf("vk_%d", vk)
}

func modifierSideOf(vk uint32) (name, side string, ok bool) {
	switch vk {
	case vkLShift:
		return "shift", "left", true
	case vkRShift:
		return "shift", "right", true
	case vkLControl:
		return "ctrl", "left", true
	case vkRControl:
		return "ctrl", "right", true
	case vkLMenu:
		return "alt", "left", true
	case vkRMenu:
		return "alt", "right", true
	case vkLWin:
		return "win", "left", true
	case vkRWin:
		return "win", "right", true
	}
	return "", "", false
}

// Source installs WH_KEYBOARD_LL and WH_MOUSE_LL hooks on a dedicated
// thread, since SetWindowsHookEx hooks are thread-affine and require a
// running Windows message loop to dispatch hook callbacks.
type Source struct {
	mu        sync.Mutex
	events    chan capture.RawEvent
	threadID  uint32
	kbHook    uintptr
	msHook    uintptr
	cancel    context.CancelFunc
	installed chan error
}

func New() *Source { return &Source{} }

func (s *Source) Start(ctx context.Context) (<-chan capture.RawEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = make(chan capture.RawEvent, 512)
	s.installed = make(chan error, 1)
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go s.run(runCtx)

	select {
	case err := <-s.installed:
		if err != nil {
			return nil, fmt.Errorf("%w: %v", capture.ErrCaptureUnavailable, err)
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.events, nil
}

// run owns the OS thread the hooks are installed on, pumping Windows
// messages until cancelled.
func (s *Source) run(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	tid, _, _ := procGetCurrentThreadId.Call()
	s.threadID = uint32(tid)

	moduleHandle, _ := windows.GetModuleHandle("")

	kbCallback := windows.NewCallback(s.keyboardProc)
	kbHook, _, errno := procSetWindowsHookExW.Call(whKeyboardLL, kbCallback, uintptr(moduleHandle), 0)
	if kbHook == 0 {
		s.installed <- fmt.Errorf("installing keyboard hook: %v", errno)
		close(s.events)
		return
	}
	s.kbHook = kbHook

	msCallback := windows.NewCallback(s.mouseProc)
	msHook, _, errno := procSetWindowsHookExW.Call(whMouseLL, msCallback, uintptr(moduleHandle), 0)
	if msHook == 0 {
		procUnhookWindowsHookEx.Call(kbHook)
		s.installed <- fmt.Errorf("installing mouse hook: %v", errno)
		close(s.events)
		return
	}
	s.msHook = msHook

	s.installed <- nil

	go func() {
		<-ctx.Done()
		procPostThreadMessageW.Call(uintptr(s.threadID), wmQuit, 0, 0)
	}()

	var msg struct {
		Hwnd    uintptr
		Message uint32
		WParam  uintptr
		LParam  uintptr
		Time    uint32
		Pt      struct{ X, Y int32 }
	}
	for {
		ret, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
		if ret == 0 || msg.Message == wmQuit {
			break
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&msg)))
		procDispatchMessageW.Call(uintptr(unsafe.Pointer(&msg)))
	}

	procUnhookWindowsHookEx.Call(s.kbHook)
	procUnhookWindowsHookEx.Call(s.msHook)
	close(s.events)
}

func (s *Source) keyboardProc(nCode int32, wParam uintptr, lParam uintptr) uintptr {
	if nCode >= 0 {
		hook := (*kbdllhookstruct)(unsafe.Pointer(lParam))
		down := wParam == wmKeyDown || wParam == wmSysKeyDown
		up := wParam == wmKeyUp || wParam == wmSysKeyUp
		if down || up {
			kind := capture.RawKeyUp
			if down {
				kind = capture.RawKeyDown
			}
			if name, side, isMod := modifierSideOf(hook.VKCode); isMod {
				s.send(capture.RawEvent{Kind: kind, Key: &capture.RawKeyPayload{
					VKCode: int(hook.VKCode), KeyName: name, IsModifier: true, ModifierSide: side,
				}})
			} else if down {
				s.send(capture.RawEvent{Kind: kind, Key: &capture.RawKeyPayload{
					VKCode: int(hook.VKCode), KeyName: keyName(hook.VKCode),
				}})
			}
		}
	}
	ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
	return ret
}

func (s *Source) mouseProc(nCode int32, wParam uintptr, lParam uintptr) uintptr {
	if nCode >= 0 {
		hook := (*msllhookstruct)(unsafe.Pointer(lParam))
		x, y := int(hook.Pt.X), int(hook.Pt.Y)
		switch wParam {
		case wmMouseMove:
			s.send(capture.RawEvent{Kind: capture.RawMouseMove, Mouse: &capture.RawMousePayload{X: x, Y: y, DPIScale: 1.0}})
		case wmLButtonDown, wmLButtonUp, wmRButtonDown, wmRButtonUp, wmMButtonDown, wmMButtonUp, wmXButtonDown, wmXButtonUp:
			button, pressed := buttonFromMessage(wParam, hook.MouseData)
			s.send(capture.RawEvent{Kind: capture.RawMouseClick, Mouse: &capture.RawMousePayload{
				X: x, Y: y, DPIScale: 1.0, Button: button, Pressed: pressed,
			}})
		case wmMouseWheel:
			delta := int(int16(hook.MouseData >> 16))
			s.send(capture.RawEvent{Kind: capture.RawMouseScroll, Mouse: &capture.RawMousePayload{
				X: x, Y: y, DPIScale: 1.0, Button: "middle", WheelDelta: delta,
			}})
		}
	}
	ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
	return ret
}

func buttonFromMessage(wParam uintptr, mouseData uint32) (button string, pressed bool) {
	switch wParam {
	case wmLButtonDown:
		return "left", true
	case wmLButtonUp:
		return "left", false
	case wmRButtonDown:
		return "right", true
	case wmRButtonUp:
		return "right", false
	case wmMButtonDown:
		return "middle", true
	case wmMButtonUp:
		return "middle", false
	case wmXButtonDown, wmXButtonUp:
		xButton := "x1"
		if (mouseData>>16)&0x2 != 0 {
			xButton = "x2"
		}
		return xButton, wParam == wmXButtonDown
	}
	return "", false
}

func (s *Source) send(ev capture.RawEvent) {
	ev.MonotonicTS = clock.New().NowMono()
	select {
	case s.events <- ev:
	default:
		// Drop under backpressure rather than block the hook callback,
		// which Windows will forcibly unhook if it stalls too long.
	}
}

func (s *Source) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
