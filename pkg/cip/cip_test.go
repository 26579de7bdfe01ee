package cip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeFixture() []byte {
	iin := []byte{0x01, 0x02, 0x03, 0x04}
	plp := []byte{0x0A, 0x00, 0x00, 0x05, 0x00}
	dllp := []byte{0x01, 0x2C, 0x00, 0xFE} // BWT=300, IFSC=254
	hb := []byte{0x3B, 0x8F, 0x80, 0x01}

	var out []byte
	out = append(out, 0x01) // version
	out = append(out, byte(len(iin)))
	out = append(out, iin...)
	out = append(out, byte(PLIDI2C))
	out = append(out, byte(len(plp)))
	out = append(out, plp...)
	out = append(out, byte(len(dllp)))
	out = append(out, dllp...)
	out = append(out, byte(len(hb)))
	out = append(out, hb...)
	return out
}

func TestDecodeCIP(t *testing.T) {
	c, err := Decode(encodeFixture())
	require.NoError(t, err)

	assert.EqualValues(t, 1, c.Version)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, c.IIN)
	assert.Equal(t, PLIDI2C, c.PLID)
	assert.EqualValues(t, 300, c.DLLP.BWT)
	assert.EqualValues(t, 254, c.DLLP.IFSC)
	assert.EqualValues(t, 0x0A, c.PLP.PWT)
	assert.Equal(t, []byte{0x3B, 0x8F, 0x80, 0x01}, c.HB)
}

func TestValidateCIP(t *testing.T) {
	c, err := Decode(encodeFixture())
	require.NoError(t, err)
	assert.NoError(t, c.Validate(PLIDI2C))
}

func TestValidateRejectsWrongInterface(t *testing.T) {
	c, err := Decode(encodeFixture())
	require.NoError(t, err)
	assert.Error(t, c.Validate(PLIDSPI))
}

func TestValidateRejectsOversizeIFSC(t *testing.T) {
	c, err := Decode(encodeFixture())
	require.NoError(t, err)
	c.DLLP.IFSC = 0xFFA
	assert.Error(t, c.Validate(PLIDI2C))
}

func TestValidateRejectsEmptyIIN(t *testing.T) {
	c, err := Decode(encodeFixture())
	require.NoError(t, err)
	c.IIN = nil
	assert.Error(t, c.Validate(PLIDI2C))
}

func TestDecodeTruncated(t *testing.T) {
	_, err := Decode([]byte{0x01, 0x05, 0x01, 0x02})
	assert.Error(t, err)
}
