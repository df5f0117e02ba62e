package mock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urmzd/linkhub/pkg/device"
	"github.com/urmzd/linkhub/pkg/insteon"
)

var (
	imID = insteon.MustParseID("44.85.11")
	d1   = insteon.MustParseID("11.11.11")
	d2   = insteon.MustParseID("22.22.22")
)

func newNetwork() *Network {
	n := NewNetwork(NewPhysicalIM(imID, device.CategoryNetworkBridge, 0x33, 0x9E))
	n.Add(
		NewPhysicalDevice(d1, device.CategoryDimmableLighting, 0x20, 0x45),
		NewPhysicalDevice(d2, device.CategorySwitchedLighting, 0x2A, 0x43),
	)
	return n
}

func TestIMCursor(t *testing.T) {
	im := NewPhysicalIM(imID, 0x03, 0x33, 0x9E)
	im.Database().AddRecord(insteon.LinkRecord{DestinationID: d1, Group: 1})
	im.Database().AddRecord(insteon.LinkRecord{DestinationID: d2, Group: 2, Deleted: true})
	im.Database().AddRecord(insteon.LinkRecord{DestinationID: d2, Group: 3})

	r, ok := im.FirstRecord()
	require.True(t, ok)
	assert.Equal(t, byte(1), r.Group)

	r, ok = im.NextRecord()
	require.True(t, ok)
	assert.Equal(t, byte(3), r.Group)

	_, ok = im.NextRecord()
	assert.False(t, ok)

	r, ok = im.FirstRecord()
	require.True(t, ok)
	assert.Equal(t, byte(1), r.Group)
}

func TestNetworkLinkingReachesPeer(t *testing.T) {
	n := newNetwork()
	sub := n.Subscribe()
	defer n.Unsubscribe(sub)

	result, err := n.PerformLinkingAction(context.Background(), device.CreateAutoLink, 1, d1)
	require.NoError(t, err)
	assert.Equal(t, device.CreateControllerLink, result.Action)
	assert.Equal(t, device.CategoryDimmableLighting, result.Category)

	peer, _ := n.Device(d1)
	assert.Len(t, peer.Database().Active(), 1)
	assert.Len(t, n.IM().Database().Active(), 1)

	evt := <-sub
	assert.Equal(t, d1, evt.DeviceID)
}

func TestNetworkReadWriteAreCopies(t *testing.T) {
	n := newNetwork()
	ctx := context.Background()

	db := insteon.NewLinkDatabase(insteon.LinkRecord{DestinationID: imID, Group: 1, Data1: 255})
	require.NoError(t, n.WriteLinkDatabase(ctx, d2, db))

	db.AddRecord(insteon.LinkRecord{DestinationID: d1})

	read, err := n.ReadLinkDatabase(ctx, d2)
	require.NoError(t, err)
	assert.Equal(t, 1, read.Len())
}

func TestNetworkFailures(t *testing.T) {
	n := newNetwork()
	ctx := context.Background()

	n.SetUnreachable(d1, true)
	_, err := n.ReadLinkDatabase(ctx, d1)
	assert.ErrorIs(t, err, device.ErrTimeout)

	_, err = n.PerformLinkingAction(ctx, device.CreateControllerLink, 0, d1)
	assert.ErrorIs(t, err, device.ErrTimeout)
	assert.Equal(t, 0, n.IM().Database().Len())

	n.SetUnreachable(d1, false)
	_, err = n.ReadLinkDatabase(ctx, d1)
	assert.NoError(t, err)

	_, err = n.ReadLinkDatabase(ctx, insteon.MustParseID("99.99.99"))
	assert.ErrorIs(t, err, device.ErrNotFound)

	n.Close()
	assert.False(t, n.IsConnected())
	_, err = n.Modem(ctx)
	assert.ErrorIs(t, err, device.ErrNotConnected)
}

func TestNetworkWriteToModemCompresses(t *testing.T) {
	n := newNetwork()
	db := insteon.NewLinkDatabase(
		insteon.LinkRecord{DestinationID: d1, IsController: true, Group: 0},
		insteon.LinkRecord{DestinationID: d2, IsController: true, Group: 0, Deleted: true},
	)
	require.NoError(t, n.WriteLinkDatabase(context.Background(), imID, db))
	assert.Equal(t, 1, n.IM().Database().Len())
	assert.Equal(t, 1, n.Exchanges())
}
