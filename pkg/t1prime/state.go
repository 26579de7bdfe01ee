package t1prime

import "context"

// Default protocol state values per spec §3.4's lifecycle.
const (
	DefaultBWT        uint16 = 300
	DefaultIFS        int    = 254
	DefaultMPOT       uint8  = 10
	DefaultPWT        uint8  = 10
	DefaultRetryLimit uint8  = 3
)

// IRQHandler is invoked synchronously with the current receive deadline
// when an interrupt-driven receive strategy is in use; it must block
// until data is available or the deadline expires, and must not
// perform I/O on the protocol instance it serves.
type IRQHandler func(ctx context.Context) error

// State holds the protocol state owned exclusively by one Link
// instance, per spec §3.4.
type State struct {
	bwt            uint16
	ifsc           int
	ifsd           int
	sendCounter    bool
	receiveCounter bool
	wtx            uint32
	mpot           uint8
	pwt            uint8
	retryCounter   uint8
	irqHandler     IRQHandler
}

func newState() *State {
	return &State{
		bwt:  DefaultBWT,
		ifsc: DefaultIFS,
		ifsd: DefaultIFS,
		wtx:  1,
		mpot: DefaultMPOT,
		pwt:  DefaultPWT,
	}
}

func (s *State) resetSequence() {
	s.sendCounter = false
	s.receiveCounter = false
	s.wtx = 1
	s.retryCounter = 0
}
