package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nbtgo/t1prime/pkg/t1prime"
)

const sampleINI = `
[contact]
Driver = i2cdev
Address = /dev/i2c-1:0x28
IFSD = 512
BWT = 450
MPOT = 8
PWT = 12
RetryLimit = 2

[contactless]
Driver = spidev
Address = /dev/spidev0.0
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles.ini")
	require.NoError(t, os.WriteFile(path, []byte(sampleINI), 0o644))
	return path
}

func TestLoadProfiles(t *testing.T) {
	profiles, err := LoadProfiles(writeSample(t))
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	contact := profiles["contact"]
	require.Equal(t, "i2cdev", contact.Driver)
	require.Equal(t, "/dev/i2c-1:0x28", contact.Address)
	require.Equal(t, 512, contact.IFSD)
	require.Equal(t, uint16(450), contact.BWT)
	require.Equal(t, uint8(8), contact.MPOT)
	require.Equal(t, uint8(12), contact.PWT)
	require.Equal(t, uint8(2), contact.RetryLimit)

	contactless := profiles["contactless"]
	require.Equal(t, "spidev", contactless.Driver)
	require.Equal(t, t1prime.DefaultIFS, contactless.IFSD)
	require.Equal(t, t1prime.DefaultBWT, contactless.BWT)
}

func TestLoadProfilesMissingFile(t *testing.T) {
	_, err := LoadProfiles(filepath.Join(t.TempDir(), "does-not-exist.ini"))
	require.Error(t, err)
}

func TestDefaultProfile(t *testing.T) {
	p := DefaultProfile()
	require.Equal(t, "virtual", p.Driver)
	require.Equal(t, t1prime.DefaultIFS, p.IFSD)
}
