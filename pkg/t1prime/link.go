// Package t1prime implements the T=1' block state machine: the central
// transceive operation that chains outbound payloads into I-blocks,
// drives polling or interrupt-based receive, classifies inbound
// blocks, and recovers from framing, protocol and timeout errors.
package t1prime

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/nbtgo/t1prime/internal/fifo"
	"github.com/nbtgo/t1prime/pkg/block"
	"github.com/nbtgo/t1prime/pkg/cip"
	"github.com/nbtgo/t1prime/pkg/driver"
)

// assemblyBufferSize bounds the longest chained response this
// implementation will assemble.
const assemblyBufferSize = 64 * 1024

// Link is the public façade over one T=1' protocol instance: a single
// byte channel, its negotiated parameters, and the logger and clock it
// was constructed with. Not safe for concurrent calls; the caller
// serialises, per spec §5.
type Link struct {
	*State

	ch    driver.ByteChannel
	log   logrus.FieldLogger
	clock Clock

	active bool
	plid   cip.PLID
	cipVal *cip.CIP

	hostAddr byte
	seAddr   byte

	lastSent []byte
	pending  *fifo.Fifo
}

// Option configures a Link at construction time.
type Option func(*Link)

// WithLogger injects the logger every Link operation reports through.
// Defaults to logrus.StandardLogger() field-less, same as the
// constructor-parameter explicit-logger redesign spec.md §9 calls for.
func WithLogger(log logrus.FieldLogger) Option {
	return func(l *Link) { l.log = log }
}

// WithClock injects the timing capability the receive path uses for
// every wait.
func WithClock(clock Clock) Option {
	return func(l *Link) { l.clock = clock }
}

// WithPLID selects the active physical interface, validated against
// the CIP returned at activation.
func WithPLID(plid cip.PLID) Option {
	return func(l *Link) { l.plid = plid }
}

// WithAddresses overrides the default NAD values (host=0x21, SE=0x12).
func WithAddresses(host, se byte) Option {
	return func(l *Link) { l.hostAddr, l.seAddr = host, se }
}

// New constructs a Link over ch. ch must not be nil.
func New(ch driver.ByteChannel, opts ...Option) (*Link, error) {
	if ch == nil {
		return nil, ErrIllegalArgument
	}
	l := &Link{
		State:    newState(),
		ch:       ch,
		log:      logrus.StandardLogger(),
		clock:    RealClock(),
		plid:     cip.PLIDI2C,
		hostAddr: block.HostAddress,
		seAddr:   block.SecureElementAddress,
		pending:  fifo.New(assemblyBufferSize),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// SetIFSD validates and stores the host's desired information field
// size, per spec §4.8. If the link is already active it sends
// S(IFS request) and waits for the matching S(IFS response).
func (l *Link) SetIFSD(ctx context.Context, size int) error {
	if size < 0x01 || size > block.IFSMax {
		return ErrIllegalArgument
	}
	l.ifsd = size
	if !l.active {
		return nil
	}
	return l.negotiateIFSD(ctx)
}

// SetBWT overrides the current block-waiting-time; affects every
// subsequent wait.
func (l *Link) SetBWT(ms uint16) {
	l.bwt = ms
}

// GetBWT returns the current block-waiting-time in milliseconds.
func (l *Link) GetBWT() uint16 {
	return l.bwt
}

// SetIRQHandler atomically replaces the interrupt callback; effective
// on the next Transceive. A nil handler switches the link back to
// polling.
func (l *Link) SetIRQHandler(h IRQHandler) {
	l.irqHandler = h
}

// GetIRQHandler returns the currently installed interrupt callback, or
// nil if the link is polling.
func (l *Link) GetIRQHandler() IRQHandler {
	return l.irqHandler
}
