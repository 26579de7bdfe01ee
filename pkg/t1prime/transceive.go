package t1prime

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/nbtgo/t1prime/pkg/block"
)

// Transceive sends request, chained into ≤ifsc fragments if needed,
// and returns the assembled response per spec §4.4.
func (l *Link) Transceive(ctx context.Context, request []byte) ([]byte, error) {
	if !l.active {
		return nil, ErrNotActive
	}
	if request == nil {
		return nil, ErrIllegalArgument
	}
	l.pending.Reset()

	ex := &exchange{
		Link:      l,
		fragments: chunkFragments(request, l.ifsc),
	}
	return ex.sendFirstAndLoop(ctx)
}

// exchange holds the per-call state a single Transceive invocation
// threads through the classify dispatch: which fragments remain to be
// sent, whether our most recently sent fragment is still awaiting
// acknowledgement, and whether the recovery ladder has already spent
// its one S(SWR)/S(POR) attempt for this call.
type exchange struct {
	*Link
	fragments       [][]byte
	sentIdx         int
	needsAck        bool
	resyncAttempted bool
	porAttempted    bool
}

// sendFirst emits the first (or only) fragment of the request.
func (ex *exchange) sendFirst(ctx context.Context) error {
	first := ex.fragments[0]
	more := len(ex.fragments) > 1
	if err := ex.transmitWithRetry(ctx, block.NewI(ex.hostAddr, ex.sendCounter, more, first)); err != nil {
		return err
	}
	ex.sentIdx = 1
	ex.needsAck = true
	return nil
}

// sendFirstAndLoop sends the first fragment and runs the receive loop
// to completion. Used both for a fresh Transceive call and to reissue
// the original request after a successful S(SWR)/S(POR) resync.
func (ex *exchange) sendFirstAndLoop(ctx context.Context) ([]byte, error) {
	if err := ex.sendFirst(ctx); err != nil {
		return nil, err
	}
	return ex.loop(ctx)
}

func (ex *exchange) loop(ctx context.Context) ([]byte, error) {
	for {
		var result []byte
		var done bool
		var err error

		b, recvErr := ex.receiveOneBlock(ctx)
		if recvErr != nil {
			result, done, err = ex.resync(ctx, recvErrTrigger(recvErr))
		} else {
			result, done, err = ex.classify(ctx, b)
		}
		if err != nil {
			return nil, err
		}
		if done {
			return result, nil
		}
	}
}

// classify dispatches one inbound block per spec §4.4.3.
func (ex *exchange) classify(ctx context.Context, b *block.Block) (result []byte, done bool, err error) {
	switch b.Kind {
	case block.KindI:
		return ex.classifyI(ctx, b.I)
	case block.KindR:
		return ex.classifyR(ctx, b.R)
	case block.KindS:
		return ex.classifyS(ctx, b.S)
	default:
		return ex.resync(ctx, triggerSequence)
	}
}

func (ex *exchange) classifyI(ctx context.Context, i *block.IBlock) ([]byte, bool, error) {
	if i.NS != ex.receiveCounter {
		return ex.resync(ctx, triggerSequence)
	}
	ex.retryCounter = 0
	ex.pending.Write(i.Info)

	if ex.needsAck {
		ex.sendCounter = !ex.sendCounter
		ex.needsAck = false
	}

	if i.M {
		ex.receiveCounter = !ex.receiveCounter
		ack := block.NewR(ex.hostAddr, !ex.receiveCounter, block.RAck)
		if err := ex.transmitWithRetry(ctx, ack); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}

	ex.receiveCounter = !ex.receiveCounter
	return ex.pending.ReadAll(), true, nil
}

func (ex *exchange) classifyR(ctx context.Context, r *block.RBlock) ([]byte, bool, error) {
	if r.Err != block.RAck {
		// The peer is telling us our last block was bad; retransmit it.
		return ex.resync(ctx, triggerTimeout)
	}
	if r.NR != !ex.sendCounter {
		return ex.resync(ctx, triggerSequence)
	}
	ex.retryCounter = 0
	ex.sendCounter = !ex.sendCounter
	ex.needsAck = false

	if ex.sentIdx < len(ex.fragments) {
		frag := ex.fragments[ex.sentIdx]
		more := ex.sentIdx != len(ex.fragments)-1
		if err := ex.transmitWithRetry(ctx, block.NewI(ex.hostAddr, ex.sendCounter, more, frag)); err != nil {
			return nil, false, err
		}
		ex.sentIdx++
		ex.needsAck = true
	}
	return nil, false, nil
}

func (ex *exchange) classifyS(ctx context.Context, s *block.SBlock) ([]byte, bool, error) {
	switch {
	case s.Subtype == block.SWTX && !s.Response:
		return ex.classifyWTX(ctx, s)
	case s.Subtype == block.SIFS && !s.Response:
		return ex.classifyIFSRequest(ctx, s)
	case s.Subtype == block.SABORT && !s.Response:
		return ex.classifyAbort(ctx)
	default:
		// S(SWR response)/S(POR response) outside their initiating
		// handlers, or any other unexpected supervisory block, is a
		// protocol error.
		return ex.resync(ctx, triggerSequence)
	}
}

func (ex *exchange) classifyWTX(ctx context.Context, s *block.SBlock) ([]byte, bool, error) {
	if len(s.Info) != 1 {
		return ex.resync(ctx, triggerSequence)
	}
	// WTX does not consume a retry count and does not reset it either;
	// it is orthogonal to the recovery ladder.
	ex.wtx = uint32(s.Info[0])
	resp := block.NewS(ex.hostAddr, true, block.SWTX, s.Info)
	if err := ex.transmitWithRetry(ctx, resp); err != nil {
		return nil, false, err
	}
	return nil, false, nil
}

func (ex *exchange) classifyIFSRequest(ctx context.Context, s *block.SBlock) ([]byte, bool, error) {
	size, err := block.DecodeIFS(s.Info)
	if err != nil {
		return ex.resync(ctx, triggerSequence)
	}
	ex.retryCounter = 0
	ex.ifsd = size
	resp := block.NewS(ex.hostAddr, true, block.SIFS, s.Info)
	if err := ex.transmitWithRetry(ctx, resp); err != nil {
		return nil, false, err
	}
	return nil, false, nil
}

func (ex *exchange) classifyAbort(ctx context.Context) ([]byte, bool, error) {
	ex.retryCounter = 0
	ex.pending.Reset()
	resp := block.NewS(ex.hostAddr, true, block.SABORT, nil)
	_ = ex.transmitWithRetry(ctx, resp)
	return nil, true, newError(moduleMachine, funcTransceive, ReasonAborted)
}

// receiveOneBlock reads and decodes one block per spec §4.4.2.
func (l *Link) receiveOneBlock(ctx context.Context) (*block.Block, error) {
	budget := time.Duration(l.bwt) * time.Duration(l.wtx) * time.Millisecond
	deadline := l.clock.Now().Add(budget)

	prologue, err := l.readWithDeadline(ctx, 4, deadline)
	if err != nil {
		return nil, err
	}
	length := int(binary.BigEndian.Uint16(prologue[2:4]))

	rest, err := l.readWithDeadline(ctx, length+2, deadline)
	if err != nil {
		return nil, err
	}

	wire := append(append([]byte(nil), prologue...), rest...)
	b, err := block.Decode(wire)
	if err != nil {
		return nil, newError(moduleMachine, funcTransceive, ReasonFraming)
	}

	if !(b.Kind == block.KindS && b.S.Subtype == block.SWTX && !b.S.Response) {
		l.wtx = 1
	}
	return b, nil
}

func (l *Link) readWithDeadline(ctx context.Context, n int, deadline time.Time) ([]byte, error) {
	if l.irqHandler != nil {
		irqCtx, cancel := context.WithDeadline(ctx, deadline)
		defer cancel()
		if err := l.irqHandler(irqCtx); err != nil {
			return nil, newError(moduleMachine, funcTransceive, ReasonTimeout)
		}
		data, err := l.ch.Receive(ctx, n)
		if err != nil {
			return nil, newError(moduleMachine, funcTransceive, ReasonTransport)
		}
		return data, nil
	}

	for {
		data, err := l.ch.Receive(ctx, n)
		if err == nil {
			return data, nil
		}
		if l.clock.Now().After(deadline) {
			return nil, newError(moduleMachine, funcTransceive, ReasonTimeout)
		}
		if ctx.Err() != nil {
			return nil, newError(moduleMachine, funcTransceive, ReasonTimeout)
		}
		l.clock.Sleep(time.Duration(l.mpot) * 100 * time.Microsecond)
	}
}

// recvErrTrigger maps a receiveOneBlock failure to the recovery
// ladder's entry point: a framing/CRC fault calls for telling the peer
// to retransmit, anything else (timeout, transport) calls for us to
// retransmit our own last block.
func recvErrTrigger(err error) resyncTrigger {
	if e, ok := err.(Error); ok && e.Reason() == ReasonFraming {
		return triggerFraming
	}
	return triggerTimeout
}

// transmitWithRetry encodes and sends b, remembering its wire bytes so
// the recovery ladder can retransmit it.
func (l *Link) transmitWithRetry(ctx context.Context, b *block.Block) error {
	wire, err := b.Encode()
	if err != nil {
		return newError(moduleMachine, funcTransceive, reasonIllegalArg)
	}
	l.lastSent = wire
	l.log.WithField("block", b).Debug("[T1][TX]")
	if err := l.ch.Transmit(ctx, wire); err != nil {
		return newError(moduleMachine, funcTransceive, ReasonTransport)
	}
	return nil
}
