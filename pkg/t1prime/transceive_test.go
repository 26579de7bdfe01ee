package t1prime

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/nbtgo/t1prime/pkg/block"
	"github.com/nbtgo/t1prime/pkg/driver/virtual"
)

func testLink(t *testing.T, peer virtual.Peer) (*Link, *virtual.Channel) {
	t.Helper()
	ch := virtual.New(peer)
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	l, err := New(ch, WithLogger(log), WithClock(newFakeClock()))
	require.NoError(t, err)
	l.active = true
	return l, ch
}

func encodeBlock(t *testing.T, b *block.Block) []byte {
	t.Helper()
	wire, err := b.Encode()
	require.NoError(t, err)
	return wire
}

// scenario 1: a single-block request gets a single-block response, no
// explicit R(ACK) for the last fragment; send_counter still toggles.
func TestTransceiveSingleBlockEcho(t *testing.T) {
	peer := &virtual.ScriptedPeer{Replies: [][]byte{
		encodeBlock(t, block.NewI(block.SecureElementAddress, false, false, []byte("pong"))),
	}}
	l, _ := testLink(t, peer)

	resp, err := l.Transceive(context.Background(), []byte("ping"))
	require.NoError(t, err)
	require.Equal(t, []byte("pong"), resp)
	require.True(t, l.sendCounter)
	require.True(t, l.receiveCounter)
	require.Equal(t, uint8(0), l.retryCounter)
}

// scenario 2: a request chained across two fragments is acked
// mid-chain by an explicit R(ACK), then the final fragment's reply is
// the assembled response.
func TestTransceiveChainedRequest(t *testing.T) {
	peer := &virtual.ScriptedPeer{Replies: [][]byte{
		encodeBlock(t, block.NewR(block.SecureElementAddress, true, block.RAck)),
		encodeBlock(t, block.NewI(block.SecureElementAddress, false, false, []byte("reply"))),
	}}
	l, _ := testLink(t, peer)
	l.ifsc = 4 // force an 8-byte request to chain into two 4-byte fragments

	resp, err := l.Transceive(context.Background(), []byte("pingpong"))
	require.NoError(t, err)
	require.Equal(t, []byte("reply"), resp)
}

// scenario 3: the SE's first reply has a corrupted CRC; the host sends
// R(CRC error) and the retransmitted reply completes the exchange.
func TestTransceiveCRCErrorRetry(t *testing.T) {
	good := encodeBlock(t, block.NewI(block.SecureElementAddress, false, false, []byte("pong")))
	corrupted := append([]byte(nil), good...)
	corrupted[len(corrupted)-1] ^= 0xFF

	peer := &virtual.ScriptedPeer{Replies: [][]byte{corrupted, good}}
	l, _ := testLink(t, peer)

	resp, err := l.Transceive(context.Background(), []byte("ping"))
	require.NoError(t, err)
	require.Equal(t, []byte("pong"), resp)
}

// scenario 4: the SE asks for more time via S(WTX); the host must echo
// the request back before the exchange can complete.
func TestTransceiveWTX(t *testing.T) {
	peer := &virtual.ScriptedPeer{Replies: [][]byte{
		encodeBlock(t, block.NewS(block.SecureElementAddress, false, block.SWTX, []byte{5})),
		encodeBlock(t, block.NewI(block.SecureElementAddress, false, false, []byte("pong"))),
	}}
	l, _ := testLink(t, peer)

	resp, err := l.Transceive(context.Background(), []byte("ping"))
	require.NoError(t, err)
	require.Equal(t, []byte("pong"), resp)
}

// scenario 5: an unexpected N(S) forces a full S(SWR) resync, after
// which the original request is reissued and completes normally.
func TestTransceiveSequenceErrorTriggersSWR(t *testing.T) {
	wrongSeq := encodeBlock(t, block.NewI(block.SecureElementAddress, true, false, []byte("stale")))
	swrResponse := encodeBlock(t, block.NewS(block.SecureElementAddress, true, block.SSWR, nil))
	final := encodeBlock(t, block.NewI(block.SecureElementAddress, false, false, []byte("pong")))

	peer := &virtual.ScriptedPeer{Replies: [][]byte{wrongSeq, swrResponse, final}}
	l, _ := testLink(t, peer)

	resp, err := l.Transceive(context.Background(), []byte("ping"))
	require.NoError(t, err)
	require.Equal(t, []byte("pong"), resp)
}

// an S(ABORT request) mid-exchange surfaces ReasonAborted and discards
// whatever had been assembled so far.
func TestTransceiveAbort(t *testing.T) {
	peer := &virtual.ScriptedPeer{Replies: [][]byte{
		encodeBlock(t, block.NewS(block.SecureElementAddress, false, block.SABORT, nil)),
	}}
	l, _ := testLink(t, peer)

	_, err := l.Transceive(context.Background(), []byte("ping"))
	require.Error(t, err)
	e, ok := err.(Error)
	require.True(t, ok)
	require.Equal(t, ReasonAborted, e.Reason())
}

func TestTransceiveRejectsWhenNotActive(t *testing.T) {
	peer := &virtual.ScriptedPeer{}
	ch := virtual.New(peer)
	l, err := New(ch)
	require.NoError(t, err)

	_, err = l.Transceive(context.Background(), []byte("ping"))
	require.ErrorIs(t, err, ErrNotActive)
}

func TestTransceiveRejectsNilRequest(t *testing.T) {
	l, _ := testLink(t, &virtual.ScriptedPeer{})
	_, err := l.Transceive(context.Background(), nil)
	require.ErrorIs(t, err, ErrIllegalArgument)
}
