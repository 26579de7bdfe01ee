package driver_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nbtgo/t1prime/pkg/driver"
	_ "github.com/nbtgo/t1prime/pkg/driver/virtual"
)

func TestNewChannelUnknownInterface(t *testing.T) {
	_, err := driver.NewChannel("does-not-exist", "")
	require.Error(t, err)
}

func TestNewChannelVirtual(t *testing.T) {
	ch, err := driver.NewChannel("virtual", "")
	require.NoError(t, err)
	require.NoError(t, ch.Activate(context.Background()))
}
