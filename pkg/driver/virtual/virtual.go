// Package virtual implements an in-process loopback driver.ByteChannel
// used by every pkg/t1prime test, driven by a scriptable peer that
// replays canned block sequences (CRC-flip injection, WTX, resync).
// Modeled on gocanopen's pkg/can/virtual TCP loopback bus, simplified
// to an in-process channel since tests don't need a broker process.
package virtual

import (
	"errors"
	"sync"

	"context"

	"github.com/nbtgo/t1prime/pkg/driver"
)

func init() {
	driver.RegisterInterface("virtual", func(address string) (driver.ByteChannel, error) {
		return New(&ScriptedPeer{}), nil
	})
}

// Peer decides what bytes a Channel's Receive calls will serve in
// response to every Transmit.
type Peer interface {
	OnTransmit(data []byte) ([]byte, error)
}

// PeerFunc adapts a plain function to Peer.
type PeerFunc func(data []byte) ([]byte, error)

func (f PeerFunc) OnTransmit(data []byte) ([]byte, error) { return f(data) }

// ScriptedPeer replays a fixed sequence of replies, one per Transmit
// call, regardless of what was transmitted. Useful for scenario tests
// that assert on a known exchange.
type ScriptedPeer struct {
	Replies [][]byte
	pos     int
}

func (s *ScriptedPeer) OnTransmit(data []byte) ([]byte, error) {
	if s.pos >= len(s.Replies) {
		return nil, errors.New("t1prime/driver/virtual: script exhausted")
	}
	reply := s.Replies[s.pos]
	s.pos++
	return reply, nil
}

// Channel is an in-process driver.ByteChannel backed by a Peer.
type Channel struct {
	mu    sync.Mutex
	peer  Peer
	inbox []byte
}

// New constructs a Channel driven by peer.
func New(peer Peer) *Channel {
	return &Channel{peer: peer}
}

func (c *Channel) Activate(ctx context.Context) error {
	return nil
}

func (c *Channel) Transmit(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	reply, err := c.peer.OnTransmit(data)
	if err != nil {
		return err
	}
	c.inbox = append(c.inbox, reply...)
	return nil
}

func (c *Channel) Receive(ctx context.Context, n int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.inbox) < n {
		return nil, errors.New("t1prime/driver/virtual: peer produced too few bytes for requested read")
	}
	out := c.inbox[:n]
	c.inbox = c.inbox[n:]
	return out, nil
}
