//go:build linux

// Package spidev implements driver.ByteChannel over a Linux
// /dev/spidev* character device, registered exactly as gocanopen's
// pkg/can/socketcan registers its SocketCAN bus.
package spidev

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/nbtgo/t1prime/pkg/driver"
)

func init() {
	driver.RegisterInterface("spidev", New)
}

const (
	spiIOCWrMode    = 0x40016B01 // SPI_IOC_WR_MODE
	spiIOCWrMaxFreq = 0x40046B04 // SPI_IOC_WR_MAX_SPEED_HZ
	spiIOCMessage1  = 0x40206B00 // SPI_IOC_MESSAGE(1), size of one spi_ioc_transfer
)

// spiIOCTransfer mirrors struct spi_ioc_transfer from linux/spi/spidev.h.
type spiIOCTransfer struct {
	txBuf       uint64
	rxBuf       uint64
	length      uint32
	speedHz     uint32
	delayUsecs  uint16
	bitsPerWord uint8
	csChange    uint8
	txNBits     uint8
	rxNBits     uint8
	pad         uint16
}

// Channel is a blocking, half-duplex byte channel over a Linux SPI
// master device. SPI is inherently full-duplex at the wire level; T=1'
// over SPI treats Transmit and Receive as separate full-duplex
// transfers with the unused half discarded, per the guard-time framing
// the physical layer already handles.
type Channel struct {
	path    string
	speedHz uint32
	file    *os.File
}

// New opens a Channel at "<device>[:<speed-hz>]", e.g.
// "/dev/spidev0.0:1000000". Speed defaults to 1 MHz.
func New(address string) (driver.ByteChannel, error) {
	path := address
	speed := uint32(1_000_000)
	for i := len(address) - 1; i >= 0; i-- {
		if address[i] == ':' {
			path = address[:i]
			hz, err := strconv.ParseUint(address[i+1:], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("t1prime/driver/spidev: invalid speed in %q: %w", address, err)
			}
			speed = uint32(hz)
			break
		}
	}
	return &Channel{path: path, speedHz: speed}, nil
}

func (c *Channel) Activate(ctx context.Context) error {
	f, err := os.OpenFile(c.path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("t1prime/driver/spidev: open %s: %w", c.path, err)
	}
	var mode uint8
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), spiIOCWrMode, uintptr(unsafe.Pointer(&mode))); errno != 0 {
		f.Close()
		return fmt.Errorf("t1prime/driver/spidev: set mode: %w", errno)
	}
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), spiIOCWrMaxFreq, uintptr(unsafe.Pointer(&c.speedHz))); errno != 0 {
		f.Close()
		return fmt.Errorf("t1prime/driver/spidev: set max speed: %w", errno)
	}
	c.file = f
	return nil
}

func (c *Channel) transfer(tx, rx []byte) error {
	if c.file == nil {
		return fmt.Errorf("t1prime/driver/spidev: channel not activated")
	}
	xfer := spiIOCTransfer{
		length:  uint32(len(tx)),
		speedHz: c.speedHz,
	}
	if len(tx) > 0 {
		xfer.txBuf = uint64(uintptr(unsafe.Pointer(&tx[0])))
	}
	if len(rx) > 0 {
		xfer.rxBuf = uint64(uintptr(unsafe.Pointer(&rx[0])))
	}
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, c.file.Fd(), spiIOCMessage1, uintptr(unsafe.Pointer(&xfer))); errno != 0 {
		return fmt.Errorf("t1prime/driver/spidev: transfer: %w", errno)
	}
	return nil
}

func (c *Channel) Transmit(ctx context.Context, data []byte) error {
	scratch := make([]byte, len(data))
	return c.transfer(data, scratch)
}

func (c *Channel) Receive(ctx context.Context, n int) ([]byte, error) {
	tx := make([]byte, n)
	rx := make([]byte, n)
	if err := c.transfer(tx, rx); err != nil {
		return nil, err
	}
	return rx, nil
}
