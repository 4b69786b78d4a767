package console

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
)

// ErrNoAddress is returned while no usable IPv4 address is assigned
var ErrNoAddress = errors.New("no IPv4 address assigned")

// HostLink treats the host's network interfaces as the device link. An
// empty interface name accepts the first non-loopback interface that is up.
type HostLink struct {
	iface string
	mu    sync.Mutex
	addr  string
}

func NewHostLink(iface string) *HostLink {
	return &HostLink{iface: iface}
}

// Connect returns the first IPv4 address found
func (l *HostLink) Connect(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	addr, err := l.lookup()
	if err != nil {
		return "", err
	}
	l.mu.Lock()
	l.addr = addr
	l.mu.Unlock()
	return addr, nil
}

// Connected reports whether the address from the last Connect is still held
func (l *HostLink) Connected() bool {
	l.mu.Lock()
	want := l.addr
	l.mu.Unlock()
	if want == "" {
		return false
	}
	addr, err := l.lookup()
	return err == nil && addr == want
}

func (l *HostLink) lookup() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("list interfaces: %w", err)
	}
	for _, ifc := range ifaces {
		if l.iface != "" && ifc.Name != l.iface {
			continue
		}
		if ifc.Flags&net.FlagUp == 0 || ifc.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := ifc.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ipn, ok := a.(*net.IPNet); ok {
				if ip4 := ipn.IP.To4(); ip4 != nil {
					return ip4.String(), nil
				}
			}
		}
	}
	return "", ErrNoAddress
}
