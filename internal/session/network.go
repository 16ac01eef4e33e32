package session

import (
	"context"
	"net"
)

// NetworkMonitor reports whether the host can currently reach a network.
type NetworkMonitor interface {
	Online(ctx context.Context) bool
}

// InterfaceMonitor treats the host as online when a non-loopback interface is up and addressed.
type InterfaceMonitor struct{}

func (InterfaceMonitor) Online(_ context.Context) bool {
	interfaces, err := net.Interfaces()
	if err != nil {
		return true
	}
	for _, candidate := range interfaces {
		if candidate.Flags&net.FlagUp == 0 || candidate.Flags&net.FlagLoopback != 0 {
			continue
		}
		addresses, err := candidate.Addrs()
		if err == nil && len(addresses) > 0 {
			return true
		}
	}
	return false
}

// AlwaysOnline never blocks a request on connectivity.
type AlwaysOnline struct{}

func (AlwaysOnline) Online(context.Context) bool {
	return true
}
