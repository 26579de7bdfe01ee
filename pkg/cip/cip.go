// Package cip decodes and validates the Communication Interface
// Parameters descriptor a secure element returns in its S(IFS response)
// on activation, following the same length-prefixed descriptor style
// gocanopen's EDS parser uses for object dictionary entries.
package cip

import (
	"encoding/binary"
	"fmt"
)

// PLID identifies which physical interface a CIP descriptor describes.
type PLID byte

const (
	PLIDSPI PLID = 0x01
	PLIDI2C PLID = 0x02
)

func (p PLID) String() string {
	switch p {
	case PLIDSPI:
		return "SPI"
	case PLIDI2C:
		return "I2C"
	default:
		return fmt.Sprintf("PLID(0x%02x)", byte(p))
	}
}

// DLLP carries data-link-layer parameters: block-waiting-time and the
// peer's maximum information field size.
type DLLP struct {
	BWT  uint16
	IFSC uint16
}

// PLP carries interface-specific physical-layer timings. Only the
// fields relevant to PLID are populated.
type PLP struct {
	// I2C
	PWT  uint8
	MCF  uint8
	PST  uint8
	MPOT uint8
	RWGT uint8
	// SPI
	SEGT uint8
	SEAL uint8
	WUT  uint8

	raw []byte
}

func decodePLP(plid PLID, data []byte) PLP {
	p := PLP{raw: append([]byte(nil), data...)}
	switch plid {
	case PLIDI2C:
		if len(data) > 0 {
			p.PWT = data[0]
		}
		if len(data) > 1 {
			p.MCF = data[1]
		}
		if len(data) > 2 {
			p.PST = data[2]
		}
		if len(data) > 3 {
			p.MPOT = data[3]
		}
		if len(data) > 4 {
			p.RWGT = data[4]
		}
	case PLIDSPI:
		if len(data) > 0 {
			p.SEGT = data[0]
		}
		if len(data) > 1 {
			p.SEAL = data[1]
		}
		if len(data) > 2 {
			p.WUT = data[2]
		}
	}
	return p
}

// CIP is the decoded Communication Interface Parameters descriptor.
type CIP struct {
	Version uint8
	IIN     []byte
	PLID    PLID
	PLP     PLP
	DLLP    DLLP
	HB      []byte
}

func readLengthPrefixed(data []byte) (field, rest []byte, err error) {
	if len(data) < 1 {
		return nil, nil, fmt.Errorf("t1prime/cip: truncated length prefix")
	}
	n := int(data[0])
	data = data[1:]
	if len(data) < n {
		return nil, nil, fmt.Errorf("t1prime/cip: truncated field, want %d bytes have %d", n, len(data))
	}
	return data[:n], data[n:], nil
}

// Decode parses the wire format
// version‖IIN-len‖IIN*‖PLID‖PLP-len‖PLP*‖DLLP-len‖DLLP*‖HB-len‖HB*
func Decode(data []byte) (*CIP, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("t1prime/cip: truncated version")
	}
	c := &CIP{Version: data[0]}
	rest := data[1:]

	var iin, plpRaw, dllpRaw, hb []byte
	var err error
	if iin, rest, err = readLengthPrefixed(rest); err != nil {
		return nil, err
	}
	c.IIN = iin

	if len(rest) < 1 {
		return nil, fmt.Errorf("t1prime/cip: truncated PLID")
	}
	c.PLID = PLID(rest[0])
	rest = rest[1:]

	if plpRaw, rest, err = readLengthPrefixed(rest); err != nil {
		return nil, err
	}
	c.PLP = decodePLP(c.PLID, plpRaw)

	if dllpRaw, rest, err = readLengthPrefixed(rest); err != nil {
		return nil, err
	}
	if len(dllpRaw) < 4 {
		return nil, fmt.Errorf("t1prime/cip: truncated DLLP, want 4 bytes have %d", len(dllpRaw))
	}
	c.DLLP = DLLP{
		BWT:  binary.BigEndian.Uint16(dllpRaw[0:2]),
		IFSC: binary.BigEndian.Uint16(dllpRaw[2:4]),
	}

	if hb, _, err = readLengthPrefixed(rest); err != nil {
		return nil, err
	}
	c.HB = hb

	return c, nil
}

// Validate enforces the §3.3 invariants: version ≥ 1, IIN-len ≥ 1,
// IFSC ≤ 0xFF9, and PLID matches the active interface.
func (c *CIP) Validate(active PLID) error {
	if c.Version < 1 {
		return fmt.Errorf("t1prime/cip: invalid version %d", c.Version)
	}
	if len(c.IIN) < 1 {
		return fmt.Errorf("t1prime/cip: IIN must be non-empty")
	}
	if c.DLLP.IFSC > 0xFF9 {
		return fmt.Errorf("t1prime/cip: IFSC %d exceeds maximum 0xFF9", c.DLLP.IFSC)
	}
	if c.PLID != active {
		return fmt.Errorf("t1prime/cip: PLID %s does not match active interface %s", c.PLID, active)
	}
	return nil
}
