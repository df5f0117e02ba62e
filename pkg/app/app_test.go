package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urmzd/linkhub/pkg/config"
	"github.com/urmzd/linkhub/pkg/device"
	"github.com/urmzd/linkhub/pkg/events"
	"github.com/urmzd/linkhub/pkg/house"
	"github.com/urmzd/linkhub/pkg/insteon"
	"github.com/urmzd/linkhub/pkg/jobs"
	"github.com/urmzd/linkhub/pkg/mock"
)

func testConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.DBPath = filepath.Join(t.TempDir(), "linkhub.db")
	cfg.SerialPort = ""
	return cfg
}

func TestOpenBootstrapsAndPersists(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a, err := Open(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, "default", a.Settings.House.Name)
	assert.False(t, a.House.Transport().IsConnected())
	assert.Empty(t, a.House.Devices())

	lamp := insteon.MustParseID("11.11.11")
	require.NoError(t, a.House.AddDevice(&house.Device{
		Info:  device.Info{ID: lamp, Category: device.CategoryDimmableLighting},
		Name:  "lamp",
		Links: insteon.NewLinkDatabase(insteon.LinkRecord{DestinationID: insteon.MustParseID("44.85.11"), Group: 1, Data1: 255}),
		Dirty: true,
	}))

	sub := a.Broker.Subscribe()
	defer a.Broker.Unsubscribe(sub)

	job, err := a.House.ScheduleImportAll(nil)
	require.NoError(t, err)
	result, err := job.Wait(ctx)
	require.NoError(t, err)
	assert.True(t, result.Success, "device failures do not fail the batch")
	require.Len(t, result.Failures, 1)

	select {
	case evt := <-sub:
		assert.Equal(t, events.TypeJobCompleted, evt.Type)
		assert.Equal(t, jobs.KindImport, evt.Job.Kind)
	case <-time.After(5 * time.Second):
		t.Fatal("no job event")
	}

	history := a.History()
	require.Eventually(t, func() bool {
		runs, err := history.Recent(ctx, 10)
		return err == nil && len(runs) == 1
	}, 5*time.Second, 10*time.Millisecond)

	run, err := history.Get(ctx, job.ID())
	require.NoError(t, err)
	assert.Equal(t, result.Processed, run.Processed)

	require.NoError(t, a.Close(ctx))

	b, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer func() { _ = b.Close(ctx) }()

	d, err := b.House.Device(lamp)
	require.NoError(t, err)
	assert.Equal(t, "lamp", d.Name)
	assert.True(t, d.Dirty, "failed import leaves the model untouched")
	assert.Equal(t, 1, d.Links.Len())
}

func TestSetButtonLinkingReachesModel(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	hubID := insteon.MustParseID("44.85.11")
	lamp := insteon.MustParseID("11.11.11")
	net := mock.NewNetwork(mock.NewPhysicalIM(hubID, device.CategoryNetworkBridge, 0x33, 0x9E))
	net.Add(mock.NewPhysicalDevice(lamp, device.CategoryDimmableLighting, 0x20, 0x45))

	a, err := open(ctx, cfg, net)
	require.NoError(t, err)
	assert.Equal(t, hubID, a.House.HubID())
	require.NoError(t, a.House.AddDevice(&house.Device{Info: device.Info{ID: lamp}, Name: "lamp"}))

	_, err = net.PressSetButton(device.CreateControllerLink, 1, lamp)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		hub, err := a.House.Hub()
		return err == nil && net.IM().Database().Equal(hub.Links) && hub.Links.Len() == 1
	}, 5*time.Second, 10*time.Millisecond)

	d, err := a.House.Device(lamp)
	require.NoError(t, err)
	assert.Equal(t, device.CategoryDimmableLighting, d.Info.Category)
	_, ok := d.Links.TryGetEntry(insteon.LinkRecord{DestinationID: hubID, Group: 1}, nil)
	assert.True(t, ok)

	require.NoError(t, a.Close(ctx))

	b, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer func() { _ = b.Close(ctx) }()

	hub, err := b.House.Device(hubID)
	require.NoError(t, err)
	_, ok = hub.Links.TryGetEntry(insteon.LinkRecord{DestinationID: lamp, IsController: true, Group: 1}, nil)
	assert.True(t, ok, "linking is persisted")
}

func TestSetupLogging(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	SetupLogging("DEBUG")
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	SetupLogging("bogus")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
