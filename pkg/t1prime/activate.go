package t1prime

import (
	"context"

	"github.com/nbtgo/t1prime/pkg/block"
	"github.com/nbtgo/t1prime/pkg/cip"
)

// Activate brings the link up per spec §4.6: activates the physical
// driver, sends S(POR request), decodes and validates the CIP,
// negotiates IFSD, and returns the CIP's historical bytes.
func (l *Link) Activate(ctx context.Context) ([]byte, error) {
	if err := l.ch.Activate(ctx); err != nil {
		return nil, newError(moduleActivate, funcActivate, ReasonTransport)
	}
	if l.pwt > 0 {
		l.clock.Sleep(durationMs(l.pwt))
	}

	req := block.NewS(l.hostAddr, false, block.SPOR, nil)
	if err := l.transmitWithRetry(ctx, req); err != nil {
		return nil, err
	}
	resp, err := l.receiveOneBlock(ctx)
	if err != nil {
		return nil, err
	}
	if resp.Kind != block.KindS || resp.S.Subtype != block.SIFS || !resp.S.Response {
		return nil, newError(moduleActivate, funcActivate, ReasonProtocol)
	}

	c, err := cip.Decode(resp.S.Info)
	if err != nil {
		return nil, newError(moduleActivate, funcActivate, ReasonInvalidCIP)
	}
	if err := c.Validate(l.plid); err != nil {
		return nil, newError(moduleActivate, funcActivate, ReasonInvalidCIP)
	}
	l.applyCIP(c)
	l.active = true

	if err := l.negotiateIFSD(ctx); err != nil {
		return nil, err
	}
	return c.HB, nil
}

// applyCIP updates protocol state from a freshly decoded CIP, per spec
// §4.6 step 6.
func (l *Link) applyCIP(c *cip.CIP) {
	l.cipVal = c
	l.bwt = c.DLLP.BWT
	l.ifsc = int(c.DLLP.IFSC)
	if c.PLP.MPOT != 0 {
		l.mpot = c.PLP.MPOT
	}
	if c.PLP.PWT != 0 {
		l.pwt = c.PLP.PWT
	}
	l.wtx = 1
	l.sendCounter = false
	l.receiveCounter = false
}

// negotiateIFSD advertises the host's desired IFSD via S(IFS request)
// and waits for the matching S(IFS response), per spec §4.8.
func (l *Link) negotiateIFSD(ctx context.Context) error {
	enc, err := block.EncodeIFS(l.ifsd)
	if err != nil {
		return ErrIllegalArgument
	}
	req := block.NewS(l.hostAddr, false, block.SIFS, enc)
	if err := l.transmitWithRetry(ctx, req); err != nil {
		return err
	}
	resp, err := l.receiveOneBlock(ctx)
	if err != nil {
		return err
	}
	if resp.Kind != block.KindS || resp.S.Subtype != block.SIFS || !resp.S.Response {
		return newError(moduleFacade, funcSetIFSD, ReasonProtocol)
	}
	return nil
}

// performPOR implements s_por as a recovery-ladder step: force the
// secure element through a power-on reset and re-parse its CIP.
func (l *Link) performPOR(ctx context.Context) error {
	req := block.NewS(l.hostAddr, false, block.SPOR, nil)
	if err := l.transmitWithRetry(ctx, req); err != nil {
		return err
	}
	resp, err := l.receiveOneBlock(ctx)
	if err != nil {
		return err
	}
	if resp.Kind != block.KindS || resp.S.Subtype != block.SIFS || !resp.S.Response {
		return newError(moduleMachine, funcSPOR, ReasonProtocol)
	}
	c, err := cip.Decode(resp.S.Info)
	if err != nil {
		return newError(moduleMachine, funcSPOR, ReasonInvalidCIP)
	}
	if err := c.Validate(l.plid); err != nil {
		return newError(moduleMachine, funcSPOR, ReasonInvalidCIP)
	}
	l.applyCIP(c)
	return nil
}
