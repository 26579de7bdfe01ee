// Package block implements the T=1' block codec: the wire framing
// shared by every I-, R- and S-block, independent of the state machine
// that drives them.
package block

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/nbtgo/t1prime/internal/crc"
)

// Default node addresses, transported verbatim and never validated by
// this layer.
const (
	HostAddress          byte = 0x21
	SecureElementAddress byte = 0x12
)

// RBlockError is the 2-bit error code carried by an R-block.
type RBlockError byte

const (
	RAck        RBlockError = 0
	RCRCError   RBlockError = 1
	ROtherError RBlockError = 2
)

// SSubtype identifies an S-block's supervisory function.
type SSubtype byte

const (
	SIFS   SSubtype = 0x01
	SABORT SSubtype = 0x02
	SWTX   SSubtype = 0x03
	SPOR   SSubtype = 0x04
	SSWR   SSubtype = 0x0F
)

func (s SSubtype) String() string {
	switch s {
	case SIFS:
		return "IFS"
	case SABORT:
		return "ABORT"
	case SWTX:
		return "WTX"
	case SPOR:
		return "POR"
	case SSWR:
		return "SWR"
	default:
		return fmt.Sprintf("subtype(0x%02x)", byte(s))
	}
}

// Kind identifies which of the three disjoint PCB shapes a Block carries.
type Kind int

const (
	KindI Kind = iota
	KindR
	KindS
)

// IBlock is an information block: an APDU fragment plus its chaining bits.
type IBlock struct {
	NS   bool // N(S), the block's send sequence bit
	M    bool // more-data: further fragments follow
	Info []byte
}

// RBlock is a receive-ready / NACK block. It never carries INFO.
type RBlock struct {
	NR  bool // N(R), the sequence bit being acknowledged or rejected
	Err RBlockError
}

// SBlock is a supervisory block: IFS/ABORT/WTX/POR/SWR request or response.
type SBlock struct {
	Response bool
	Subtype  SSubtype
	Info     []byte
}

// Block is the tagged on-wire unit. Exactly one of I, R, S is non-nil,
// selected by Kind; PCB and LEN are derived fields computed by Encode,
// never stored directly.
type Block struct {
	NAD byte
	Kind
	I *IBlock
	R *RBlock
	S *SBlock
}

var (
	ErrTooLittleData           = errors.New("t1prime/block: too little data")
	ErrInformationSizeMismatch = errors.New("t1prime/block: information size mismatch")
	ErrInvalidCRC              = errors.New("t1prime/block: invalid CRC")
	ErrUnknownPCB              = errors.New("t1prime/block: unknown PCB")
)

// NewI builds an I-block addressed to nad.
func NewI(nad byte, ns, m bool, info []byte) *Block {
	return &Block{NAD: nad, Kind: KindI, I: &IBlock{NS: ns, M: m, Info: info}}
}

// NewR builds an R-block addressed to nad.
func NewR(nad byte, nr bool, errCode RBlockError) *Block {
	return &Block{NAD: nad, Kind: KindR, R: &RBlock{NR: nr, Err: errCode}}
}

// NewS builds an S-block addressed to nad.
func NewS(nad byte, response bool, subtype SSubtype, info []byte) *Block {
	return &Block{NAD: nad, Kind: KindS, S: &SBlock{Response: response, Subtype: subtype, Info: info}}
}

func (b *Block) info() []byte {
	switch b.Kind {
	case KindI:
		return b.I.Info
	case KindS:
		return b.S.Info
	default:
		return nil
	}
}

func (b *Block) pcb() (byte, error) {
	switch b.Kind {
	case KindI:
		var pcb byte
		if b.I.NS {
			pcb |= 1 << 6
		}
		if b.I.M {
			pcb |= 1 << 5
		}
		return pcb, nil
	case KindR:
		pcb := byte(1 << 7)
		if b.R.NR {
			pcb |= 1 << 4
		}
		pcb |= byte(b.R.Err) & 0x03
		return pcb, nil
	case KindS:
		pcb := byte(1<<7) | byte(1<<6)
		if b.S.Response {
			pcb |= 1 << 5
		}
		pcb |= byte(b.S.Subtype) & 0x1F
		return pcb, nil
	default:
		return 0, fmt.Errorf("t1prime/block: unknown kind %d", b.Kind)
	}
}

// Encode serializes b to an owned byte buffer of 4+LEN+2 bytes.
func (b *Block) Encode() ([]byte, error) {
	pcb, err := b.pcb()
	if err != nil {
		return nil, err
	}
	info := b.info()
	out := make([]byte, 4+len(info)+2)
	out[0] = b.NAD
	out[1] = pcb
	binary.BigEndian.PutUint16(out[2:4], uint16(len(info)))
	copy(out[4:4+len(info)], info)
	sum := crc.CCITT(out[:4+len(info)])
	binary.BigEndian.PutUint16(out[4+len(info):], sum)
	return out, nil
}

// Decode parses a complete block from the wire, verifying LEN and CRC.
func Decode(data []byte) (*Block, error) {
	if len(data) < 6 {
		return nil, ErrTooLittleData
	}
	nad := data[0]
	pcb := data[1]
	length := int(binary.BigEndian.Uint16(data[2:4]))
	if len(data) != 4+length+2 {
		return nil, ErrInformationSizeMismatch
	}
	var info []byte
	if length > 0 {
		info = append([]byte(nil), data[4:4+length]...)
	}
	wantCRC := binary.BigEndian.Uint16(data[4+length:])
	gotCRC := crc.CCITT(data[:4+length])
	if wantCRC != gotCRC {
		return nil, ErrInvalidCRC
	}

	b := &Block{NAD: nad}
	switch {
	case pcb&0x80 == 0:
		b.Kind = KindI
		b.I = &IBlock{NS: pcb&0x40 != 0, M: pcb&0x20 != 0, Info: info}
	case pcb&0xC0 == 0x80:
		b.Kind = KindR
		b.R = &RBlock{NR: pcb&0x10 != 0, Err: RBlockError(pcb & 0x03)}
	case pcb&0xC0 == 0xC0:
		b.Kind = KindS
		b.S = &SBlock{Response: pcb&0x20 != 0, Subtype: SSubtype(pcb & 0x1F), Info: info}
	default:
		return nil, ErrUnknownPCB
	}
	return b, nil
}
