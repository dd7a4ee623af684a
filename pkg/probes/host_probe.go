package probes

import (
	"os"
	"runtime"

	"github.com/gravito-framework/quasar-rmq/pkg/types"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/process"
)

// GoHostProbe implements HostProbe using gopsutil
type GoHostProbe struct{}

// NewGoHostProbe creates a host probe
func NewGoHostProbe() *GoHostProbe {
	return &GoHostProbe{}
}

// HostInfo returns hostname, platform and uptime.
// gopsutil failures fall back to what the Go runtime knows.
func (p *GoHostProbe) HostInfo() (*types.HostInfo, error) {
	info, err := host.Info()
	if err != nil {
		hostname, herr := os.Hostname()
		if herr != nil {
			return nil, herr
		}
		return &types.HostInfo{
			Hostname: hostname,
			Platform: runtime.GOOS,
		}, nil
	}

	platform := info.Platform
	if platform == "" {
		platform = info.OS
	}

	return &types.HostInfo{
		Hostname: info.Hostname,
		Platform: platform,
		Uptime:   float64(info.Uptime),
	}, nil
}

// ProcessName returns the executable name of pid
func (p *GoHostProbe) ProcessName(pid int32) (string, error) {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return "", err
	}
	return proc.Name()
}

// Ensure GoHostProbe implements HostProbe
var _ HostProbe = (*GoHostProbe)(nil)
