package crc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestCCITTCheckString(t *testing.T) {
	// Reference check value for CRC-16/X-25 (aka CRC-CCITT reflected),
	// ASCII "123456789", from the CRC catalogue.
	assert.EqualValues(t, 0x906E, CCITT([]byte("123456789")))
}

func TestCCITTSingleMatchesWrite(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOf(rapid.Byte()).Draw(t, "data")

		var c CRC16 = New16()
		for _, b := range data {
			c.Single(b)
		}

		assert.Equal(t, CCITT(data), c.Final())
	})
}

func TestCCITTEmpty(t *testing.T) {
	assert.EqualValues(t, 0x0000, CCITT(nil))
}

func TestMCRF4xxDiffersFromCCITTByXorOut(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOf(rapid.Byte()).Draw(t, "data")

		assert.Equal(t, CCITT(data), MCRF4xx(data)^0xFFFF)
	})
}

func TestLRC8XorsBytewise(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOf(rapid.Byte()).Draw(t, "data")

		var expect byte
		for _, b := range data {
			expect ^= b
		}
		assert.Equal(t, expect, LRC(data))
	})
}

func TestT1primeGDEndAroundCarry(t *testing.T) {
	// 258 bytes of 0xFF sum to 0x100FE, which folds via end-around
	// carry to 0x00FF.
	assert.EqualValues(t, 0x00FF, T1primeGD(bytes.Repeat([]byte{0xFF}, 258)))
}
