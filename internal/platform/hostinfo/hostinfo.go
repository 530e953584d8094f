// Package hostinfo captures the host/OS metadata stored on a Recording
// (spec.md §3, "capture metadata (host, screen resolution, DPI, OS
// version)").
package hostinfo

import (
	"github.com/shirou/gopsutil/v3/host"
)

// CaptureMetadata is the subset of Recording capture metadata this package
// can fill in; screen resolution and DPI come from the platform InputSource
// adapter, which is the only component with access to the display server.
type CaptureMetadata struct {
	Host      string
	OSVersion string
}

// Collect gathers host metadata via gopsutil. Errors are non-fatal: an
// unreadable field is left blank rather than failing the capture.
func Collect() CaptureMetadata {
	info, err := host.Info()
	if err != nil {
		return CaptureMetadata{}
	}
	return CaptureMetadata{
		Host:      info.Hostname,
		OSVersion: info.Platform + " " + info.PlatformVersion,
	}
}
