//go:build linux

package main

import (
	_ "github.com/nbtgo/t1prime/pkg/driver/i2cdev"
	_ "github.com/nbtgo/t1prime/pkg/driver/spidev"
)
