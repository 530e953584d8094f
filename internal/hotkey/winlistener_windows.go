//go:build windows

package hotkey

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/deskflow-rpa/deskflow/internal/chord"
)

const (
	modAlt     = 0x0001
	modControl = 0x0002
	modShift   = 0x0004
	modWin     = 0x0008

	wmHotkey = 0x0312
	wmQuit   = 0x0012
)

var (
	user32                 = windows.NewLazySystemDLL("user32.dll")
	procRegisterHotKey     = user32.NewProc("RegisterHotKey")
	procUnregisterHotKey   = user32.NewProc("UnregisterHotKey")
	procGetMessageW        = user32.NewProc("GetMessageW")
	procPostThreadMessageW = user32.NewProc("PostThreadMessageW")
	kernel32               = windows.NewLazySystemDLL("kernel32.dll")
	procGetCurrentThreadId = kernel32.NewProc("GetCurrentThreadId")
)

var vkByKeyName = map[string]uint16{
	"esc": 0x1B, "enter": 0x0D, "space": 0x20, "tab": 0x09, "backspace": 0x08,
	"delete": 0x2E, "insert": 0x2D, "home": 0x24, "end": 0x23,
	"page_up": 0x21, "page_down": 0x22, "up": 0x26, "down": 0x28, "left": 0x25, "right": 0x27,
	"f1": 0x70, "f2": 0x71, "f3": 0x72, "f4": 0x73, "f5": 0x74, "f6": 0x75,
	"f7": 0x76, "f8": 0x77, "f9": 0x78, "f10": 0x79, "f11": 0x7A, "f12": 0x7B,
}

func vkForKeyName(key string) (uint16, bool) {
	if vk, ok := vkByKeyName[key]; ok {
		return vk, true
	}
	if len(key) == 1 {
		r := key[0]
		if r >= 'a' && r <= 'z' {
			return uint16(r - 'a' + 'A'), true
		}
		if r >= '0' && r <= '9' {
			return uint16(r), true
		}
	}
	return 0, false
}

func modifierMask(mods map[string]bool) uint32 {
	var mask uint32
	if mods["ctrl"] {
		mask |= modControl
	}
	if mods["alt"] {
		mask |= modAlt
	}
	if mods["shift"] {
		mask |= modShift
	}
	if mods["win"] {
		mask |= modWin
	}
	return mask
}

// WinListener is the Windows global hotkey listener, backed by
// RegisterHotKey/WM_HOTKEY. RegisterHotKey is thread-affine, so
// registration and the message loop both run on one dedicated OS thread.
type WinListener struct {
	mu       sync.Mutex
	events   chan string
	threadID uint32
	ready    chan struct{}
	stopCh   chan struct{}

	nextID int32
	idByChord map[string]int32
	chordByID map[int32]string
}

func NewListener() *WinListener {
	return &WinListener{
		ready:     make(chan struct{}),
		idByChord: make(map[string]int32),
		chordByID: make(map[int32]string),
	}
}

func (l *WinListener) Start() (<-chan string, error) {
	l.events = make(chan string, 64)
	l.stopCh = make(chan struct{})
	go l.run()
	<-l.ready
	return l.events, nil
}

func (l *WinListener) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	tid, _, _ := procGetCurrentThreadId.Call()
	l.mu.Lock()
	l.threadID = uint32(tid)
	l.mu.Unlock()
	close(l.ready)

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
		if msg.Message == wmHotkey {
			l.mu.Lock()
			chordStr, ok := l.chordByID[int32(msg.WParam)]
			l.mu.Unlock()
			if ok {
				select {
				case l.events <- chordStr:
				default:
				}
			}
		}
	}
	close(l.events)
}

func (l *WinListener) RegisterChord(canonical string) error {
	c, err := parseModifiersAndKey(canonical)
	if err != nil {
		return err
	}
	vk, ok := vkForKeyName(c.key)
	if !ok {
		return fmt.Errorf("hotkey: unsupported key %q", c.key)
	}

	l.mu.Lock()
	l.nextID++
	id := l.nextID
	l.idByChord[canonical] = id
	l.chordByID[id] = canonical
	l.mu.Unlock()

	return postRegister(id, modifierMask(c.mods), uint32(vk))
}

func (l *WinListener) UnregisterChord(canonical string) error {
	l.mu.Lock()
	id, ok := l.idByChord[canonical]
	delete(l.idByChord, canonical)
	delete(l.chordByID, id)
	l.mu.Unlock()
	if !ok {
		return nil
	}
	return postUnregister(id)
}

func (l *WinListener) Stop() {
	l.mu.Lock()
	tid := l.threadID
	l.mu.Unlock()
	if tid != 0 {
		procPostThreadMessageW.Call(uintptr(tid), wmQuit, 0, 0)
	}
}

// postRegister/postUnregister pass hwnd=0, which registers the hotkey
// against the calling thread's message queue rather than a window handle.
// Both are only ever called from RegisterChord/UnregisterChord, which run on
// whatever goroutine the caller uses; since RegisterHotKey's thread affinity
// is about which thread receives WM_HOTKEY (l.run's thread, via GetMessageW
// with hwnd=0 filtering to thread messages), not which thread registers it.
func postRegister(id int32, mods, vk uint32) error {
	ret, _, errno := procRegisterHotKey.Call(0, uintptr(id), uintptr(mods), uintptr(vk))
	if ret == 0 {
		return fmt.Errorf("hotkey: RegisterHotKey failed: %v", errno)
	}
	return nil
}

func postUnregister(id int32) error {
	ret, _, errno := procUnregisterHotKey.Call(0, uintptr(id))
	if ret == 0 {
		return fmt.Errorf("hotkey: UnregisterHotKey failed: %v", errno)
	}
	return nil
}

type parsedChord struct {
	mods map[string]bool
	key  string
}

func parseModifiersAndKey(canonical string) (parsedChord, error) {
	c, err := chord.Parse(canonical)
	if err != nil {
		return parsedChord{}, err
	}
	return parsedChord{mods: c.Modifiers, key: c.Key}, nil
}
