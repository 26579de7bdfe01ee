// Package driver defines the byte-channel transport contract T=1' runs
// over and a pluggable registry of concrete transports, mirroring
// gocanopen's can.Bus/RegisterInterface pattern adapted from a
// push/subscribe CAN model to a pull request/response byte-serial one.
package driver

import (
	"context"
	"fmt"
)

// ByteChannel is the physical driver contract: an ordered, lossy-at-framing
// byte transport. T=1' is strictly half-duplex request/response, so unlike
// a CAN bus there is no subscribe/broadcast side — only Transmit and a
// blocking Receive.
type ByteChannel interface {
	// Activate brings the underlying transport up (opens the device,
	// resets the bus) and returns once it is ready for use.
	Activate(ctx context.Context) error

	// Transmit writes data to the peer. It returns once every byte has
	// been accepted by the transport.
	Transmit(ctx context.Context, data []byte) error

	// Receive reads exactly n bytes from the peer, blocking until they
	// arrive or ctx is done.
	Receive(ctx context.Context, n int) ([]byte, error)
}

// NewChannelFunc constructs a ByteChannel for a registered driver name.
type NewChannelFunc func(address string) (ByteChannel, error)

var registry = make(map[string]NewChannelFunc)

// RegisterInterface registers a driver constructor under name. Call
// from an init() function of the driver's package.
func RegisterInterface(name string, ctor NewChannelFunc) {
	registry[name] = ctor
}

// NewChannel constructs a ByteChannel using the driver registered under
// name, addressed at address (e.g. "/dev/i2c-1" or "/dev/spidev0.0").
func NewChannel(name string, address string) (ByteChannel, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("t1prime/driver: unsupported interface %q", name)
	}
	return ctor(address)
}
