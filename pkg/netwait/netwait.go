// Package netwait blocks until the host has a usable network address.
package netwait

import (
	"context"
	"net"
	"time"

	"github.com/golang/glog"
)

// DefaultPollInterval is the default period of InterfaceWaiter.
const DefaultPollInterval = 500 * time.Millisecond

// Waiter blocks until the network is available.
type Waiter interface {
	WaitReady(ctx context.Context) error
}

// WaiterFunc is func type of Waiter.
type WaiterFunc func(ctx context.Context) error

// WaitReady implements Waiter.
func (f WaiterFunc) WaitReady(ctx context.Context) error {
	return f(ctx)
}

// Ready is a Waiter that never blocks.
var Ready Waiter = WaiterFunc(func(context.Context) error { return nil })

// InterfaceWaiter polls the host interfaces for a routable address.
type InterfaceWaiter struct {
	Interval time.Duration
	// Addrs lists the interface addresses, net.InterfaceAddrs when nil.
	Addrs func() ([]net.Addr, error)
}

// WaitReady implements Waiter.
func (w *InterfaceWaiter) WaitReady(ctx context.Context) error {
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	addrsFn := w.Addrs
	if addrsFn == nil {
		addrsFn = net.InterfaceAddrs
	}
	logged := false
	for {
		addrs, err := addrsFn()
		if err != nil {
			glog.V(2).Infof("list interface addresses: %v", err)
		} else if HasRoutable(addrs) {
			if logged {
				glog.Info("network ready")
			}
			return nil
		}
		if !logged {
			glog.Info("waiting for network")
			logged = true
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// HasRoutable returns true if any address is a global unicast address.
func HasRoutable(addrs []net.Addr) bool {
	for _, addr := range addrs {
		var ip net.IP
		switch a := addr.(type) {
		case *net.IPNet:
			ip = a.IP
		case *net.IPAddr:
			ip = a.IP
		default:
			continue
		}
		if ip.IsGlobalUnicast() {
			return true
		}
	}
	return false
}
