// Package hotkey implements the global Hotkey Dispatcher of spec.md §4.9:
// a registration table of chord -> callback, independent of the Capture
// Engine's Event Filter.
package hotkey

import (
	"sync"

	"github.com/deskflow-rpa/deskflow/internal/chord"
	"github.com/deskflow-rpa/deskflow/internal/platform/logger"
)

// Callback is invoked when its registered chord fires. Errors are logged
// and swallowed (spec.md §4.9 step 3: "the listener must not die").
type Callback func() error

// Listener is the platform-native global hotkey hook. Implementations
// deliver normalized chord strings to the Dispatcher via the channel
// returned by Start.
type Listener interface {
	Start() (<-chan string, error)
	Stop()
}

// ChordRegistrar is implemented by listeners that must be told which
// chords to watch for up front (e.g. Windows' RegisterHotKey, which binds
// one OS-level registration per chord). Listeners that observe every
// keystroke unconditionally (like SimListener) need not implement it.
type ChordRegistrar interface {
	RegisterChord(canonical string) error
	UnregisterChord(canonical string) error
}

// Dispatcher owns the process-wide chord -> callback table.
type Dispatcher struct {
	mu       sync.RWMutex
	table    map[string]Callback
	listener Listener
	log      logger.Logger

	stopCh chan struct{}
}

// New builds a Dispatcher over listener.
func New(listener Listener, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		table:    make(map[string]Callback),
		listener: listener,
		log:      log,
	}
}

// Register binds chordStr's canonical form to cb, replacing any prior
// binding for the same chord.
func (d *Dispatcher) Register(chordStr string, cb Callback) error {
	canon, err := chord.Normalize(chordStr)
	if err != nil {
		return err
	}
	d.mu.Lock()
	_, existed := d.table[canon]
	d.table[canon] = cb
	d.mu.Unlock()

	if !existed {
		if registrar, ok := d.listener.(ChordRegistrar); ok {
			return registrar.RegisterChord(canon)
		}
	}
	return nil
}

// Unregister removes chordStr's binding, if any.
func (d *Dispatcher) Unregister(chordStr string) {
	canon, err := chord.Normalize(chordStr)
	if err != nil {
		return
	}
	d.mu.Lock()
	delete(d.table, canon)
	d.mu.Unlock()

	if registrar, ok := d.listener.(ChordRegistrar); ok {
		_ = registrar.UnregisterChord(canon)
	}
}

// Start installs the platform listener and begins dispatching events
// until Stop is called.
func (d *Dispatcher) Start() error {
	events, err := d.listener.Start()
	if err != nil {
		return err
	}
	d.stopCh = make(chan struct{})
	go d.loop(events)
	return nil
}

func (d *Dispatcher) Stop() {
	d.listener.Stop()
	if d.stopCh != nil {
		close(d.stopCh)
	}
}

func (d *Dispatcher) loop(events <-chan string) {
	for {
		select {
		case raw, ok := <-events:
			if !ok {
				return
			}
			d.fire(raw)
		case <-d.stopCh:
			return
		}
	}
}

func (d *Dispatcher) fire(raw string) {
	canon, err := chord.Normalize(raw)
	if err != nil {
		return
	}
	d.mu.RLock()
	cb, ok := d.table[canon]
	d.mu.RUnlock()
	if !ok {
		return
	}
	// Invoked without holding the table lock (spec.md §4.9 step 2), so a
	// slow or re-entrant callback never blocks registration changes.
	if err := cb(); err != nil && d.log != nil {
		d.log.Warn("hotkey: callback error", "chord", canon, "error", err)
	}
}
