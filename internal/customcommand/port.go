// Package customcommand implements the Custom Command Runner of spec.md
// §4.10: executes application/file-op/system-cmd/script/url/text-input
// commands bound to a chord by the Hotkey Dispatcher.
package customcommand

import "context"

// WindowProbe reports the foreground window and running process state, so
// a command's Precondition can be checked before spawn.
type WindowProbe interface {
	ActiveWindowTitle(ctx context.Context) (string, error)
	IsProcessRunning(ctx context.Context, name string) (bool, error)
}
