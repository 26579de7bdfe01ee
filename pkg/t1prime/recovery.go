package t1prime

import (
	"context"

	"github.com/nbtgo/t1prime/pkg/block"
)

// maxRecoveryAttempts bounds each of the recovery ladder's first two
// steps, per spec §4.5.
const maxRecoveryAttempts = 3

// resyncTrigger identifies which kind of fault is driving the recovery
// ladder, since the first applicable step differs: a transport
// timeout calls for retransmitting our own last block, a framing/CRC
// fault on what we received calls for telling the peer to retransmit,
// and a sequence or PCB violation calls for a full resynchronisation.
type resyncTrigger int

const (
	triggerTimeout resyncTrigger = iota
	triggerFraming
	triggerSequence
)

// resync implements the recovery ladder of spec §4.5.
func (ex *exchange) resync(ctx context.Context, trigger resyncTrigger) ([]byte, bool, error) {
	switch trigger {
	case triggerTimeout:
		ex.log.Warn("[T1][RESYNC] step=1 retransmit last block")
		for attempt := 0; attempt < maxRecoveryAttempts; attempt++ {
			ex.retryCounter = uint8(attempt + 1)
			if err := ex.retransmitLastSent(ctx); err != nil {
				return nil, false, err
			}
			if b, err := ex.receiveOneBlock(ctx); err == nil {
				return ex.classify(ctx, b)
			}
		}
	case triggerFraming:
		ex.log.Warn("[T1][RESYNC] step=1 R(CRC error)")
		for attempt := 0; attempt < maxRecoveryAttempts; attempt++ {
			ex.retryCounter = uint8(attempt + 1)
			nack := block.NewR(ex.hostAddr, ex.receiveCounter, block.RCRCError)
			if err := ex.transmitWithRetry(ctx, nack); err != nil {
				return nil, false, err
			}
			if b, err := ex.receiveOneBlock(ctx); err == nil {
				return ex.classify(ctx, b)
			}
		}
	case triggerSequence:
		// Unexpected sequence or unknown PCB: go straight to a full
		// resynchronisation rather than retry the broken exchange.
	}

	return ex.escalate(ctx)
}

// escalate is steps 3-5 of the recovery ladder: S(SWR), then S(POR),
// then surface unrecoverable-protocol-error.
func (ex *exchange) escalate(ctx context.Context) ([]byte, bool, error) {
	if !ex.resyncAttempted {
		ex.resyncAttempted = true
		ex.log.Warn("[T1][RESYNC] step=3/4 S(SWR)")
		if err := ex.performSWR(ctx); err == nil {
			ex.pending.Reset()
			result, err := ex.sendFirstAndLoop(ctx)
			return result, true, err
		}
	}

	if !ex.porAttempted {
		ex.porAttempted = true
		ex.log.Warn("[T1][RESYNC] step=4/4 S(POR)")
		if err := ex.performPOR(ctx); err == nil {
			ex.pending.Reset()
			result, err := ex.sendFirstAndLoop(ctx)
			return result, true, err
		}
	}

	ex.resetSequence()
	return nil, true, newError(moduleMachine, funcTransceive, ReasonUnrecoverable)
}

// retransmitLastSent resends the most recent block this Link
// transmitted, verbatim.
func (l *Link) retransmitLastSent(ctx context.Context) error {
	if l.lastSent == nil {
		return newError(moduleMachine, funcTransceive, reasonInvalidState)
	}
	if err := l.ch.Transmit(ctx, l.lastSent); err != nil {
		return newError(moduleMachine, funcTransceive, ReasonTransport)
	}
	return nil
}

// performSWR implements s_swr (spec §4.7): emit S(SWR request); expect
// a matching S(SWR response) within the current BWT; on success reset
// sequence counters and WTX.
func (l *Link) performSWR(ctx context.Context) error {
	req := block.NewS(l.hostAddr, false, block.SSWR, nil)
	if err := l.transmitWithRetry(ctx, req); err != nil {
		return err
	}
	b, err := l.receiveOneBlock(ctx)
	if err != nil {
		return err
	}
	if b.Kind != block.KindS || b.S.Subtype != block.SSWR || !b.S.Response {
		return newError(moduleMachine, funcSSWR, ReasonProtocol)
	}
	l.resetSequence()
	return nil
}

// SSWR performs a standalone software reset: spec §4.7's s_swr.
func (l *Link) SSWR(ctx context.Context) error {
	if !l.active {
		return ErrNotActive
	}
	return l.performSWR(ctx)
}

// SPOR performs a standalone power-on reset: spec §4.7's s_por. No
// response is expected unless the driver layer supports it; state is
// re-initialized afterwards.
func (l *Link) SPOR(ctx context.Context) error {
	if !l.active {
		return ErrNotActive
	}
	req := block.NewS(l.hostAddr, false, block.SPOR, nil)
	if err := l.transmitWithRetry(ctx, req); err != nil {
		return err
	}
	l.resetSequence()
	return nil
}
