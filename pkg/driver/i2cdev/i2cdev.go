//go:build linux

// Package i2cdev implements driver.ByteChannel over a Linux /dev/i2c-*
// character device, registered exactly as gocanopen's
// pkg/can/socketcan registers its SocketCAN bus.
package i2cdev

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/nbtgo/t1prime/pkg/driver"
)

func init() {
	driver.RegisterInterface("i2cdev", New)
}

const i2cSlave = 0x0703 // I2C_SLAVE ioctl request, linux/i2c-dev.h

// Channel is a blocking, half-duplex byte channel over an I2C slave
// address on a Linux I2C master controller.
type Channel struct {
	path string
	addr uint16
	file *os.File
}

// New opens a Channel addressed at "<device>:<7-bit address>", e.g.
// "/dev/i2c-1:0x28".
func New(address string) (driver.ByteChannel, error) {
	path, addr, err := splitAddress(address)
	if err != nil {
		return nil, err
	}
	return &Channel{path: path, addr: addr}, nil
}

func splitAddress(address string) (path string, addr uint16, err error) {
	for i := len(address) - 1; i >= 0; i-- {
		if address[i] == ':' {
			a, err := strconv.ParseUint(address[i+1:], 0, 7)
			if err != nil {
				return "", 0, fmt.Errorf("t1prime/driver/i2cdev: invalid slave address in %q: %w", address, err)
			}
			return address[:i], uint16(a), nil
		}
	}
	return "", 0, fmt.Errorf("t1prime/driver/i2cdev: address %q must be \"<device>:<addr>\"", address)
}

func (c *Channel) Activate(ctx context.Context) error {
	f, err := os.OpenFile(c.path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("t1prime/driver/i2cdev: open %s: %w", c.path, err)
	}
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), i2cSlave, uintptr(c.addr)); errno != 0 {
		f.Close()
		return fmt.Errorf("t1prime/driver/i2cdev: set slave address 0x%02x: %w", c.addr, errno)
	}
	c.file = f
	return nil
}

func (c *Channel) Transmit(ctx context.Context, data []byte) error {
	if c.file == nil {
		return fmt.Errorf("t1prime/driver/i2cdev: channel not activated")
	}
	_, err := c.file.Write(data)
	return err
}

func (c *Channel) Receive(ctx context.Context, n int) ([]byte, error) {
	if c.file == nil {
		return nil, fmt.Errorf("t1prime/driver/i2cdev: channel not activated")
	}
	buf := make([]byte, n)
	read := 0
	for read < n {
		m, err := c.file.Read(buf[read:])
		if err != nil {
			return nil, err
		}
		read += m
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return buf, nil
}
