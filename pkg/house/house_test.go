package house

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urmzd/linkhub/pkg/device"
	"github.com/urmzd/linkhub/pkg/insteon"
	"github.com/urmzd/linkhub/pkg/jobs"
	"github.com/urmzd/linkhub/pkg/linking"
	"github.com/urmzd/linkhub/pkg/mock"
)

var (
	hubID = insteon.MustParseID("44.85.11")
	oldID = insteon.MustParseID("33.33.33")
	devs  = []insteon.ID{
		insteon.MustParseID("11.11.11"),
		insteon.MustParseID("22.22.22"),
		insteon.MustParseID("55.55.55"),
		insteon.MustParseID("66.66.66"),
	}
)

type fixture struct {
	net   *mock.Network
	house *House
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	net := mock.NewNetwork(mock.NewPhysicalIM(hubID, device.CategoryNetworkBridge, 0x33, 0x9E))
	for _, id := range devs {
		net.Add(mock.NewPhysicalDevice(id, device.CategoryDimmableLighting, 0x20, 0x45))
	}

	sched := jobs.NewScheduler(context.Background())
	t.Cleanup(func() { _ = sched.Shutdown(context.Background()) })

	h := New("test", hubID, net, sched)
	require.NoError(t, h.AddDevice(&Device{Info: device.Info{ID: hubID, Category: device.CategoryNetworkBridge}, Name: "hub", Gateway: true}))
	for _, id := range devs {
		require.NoError(t, h.AddDevice(&Device{Info: device.Info{ID: id, Category: device.CategoryDimmableLighting}, Name: id.String()}))
	}
	return &fixture{net: net, house: h}
}

// run schedules through fn and waits for the job and its callback.
func run(t *testing.T, fn func(func(bool)) (*jobs.Job, error)) (jobs.Result, bool) {
	t.Helper()
	done := make(chan bool, 1)
	job, err := fn(func(ok bool) { done <- ok })
	require.NoError(t, err)
	result, err := job.Wait(context.Background())
	require.NoError(t, err)
	select {
	case ok := <-done:
		return result, ok
	case <-time.After(5 * time.Second):
		t.Fatal("completion callback not called")
		return result, false
	}
}

func TestAddDeviceRejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	err := f.house.AddDevice(&Device{Info: device.Info{ID: devs[0]}})
	assert.ErrorIs(t, err, ErrDeviceExists)
	assert.Len(t, f.house.Devices(), len(devs)+1)
}

func TestAccessorsReturnCopies(t *testing.T) {
	f := newFixture(t)
	d, err := f.house.Device(devs[0])
	require.NoError(t, err)
	d.Links.AddRecord(insteon.LinkRecord{DestinationID: hubID})

	again, err := f.house.Device(devs[0])
	require.NoError(t, err)
	assert.Equal(t, 0, again.Links.Len())

	gws := f.house.Gateways()
	require.Len(t, gws, 1)
	assert.Equal(t, hubID, gws[0].ID())

	_, err = f.house.Device(insteon.MustParseID("99.99.99"))
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestLinkMirrorsIntoModel(t *testing.T) {
	f := newFixture(t)

	result, err := f.house.Link(context.Background(), device.CreateAutoLink, 1, devs[0])
	require.NoError(t, err)
	assert.Equal(t, device.CreateControllerLink, result.Action)

	hub, err := f.house.Hub()
	require.NoError(t, err)
	rec, ok := hub.Links.TryGetEntry(insteon.LinkRecord{DestinationID: devs[0], IsController: true, Group: 1}, nil)
	require.True(t, ok)
	assert.Equal(t, linking.ModemControllerData[0], rec.Data1)

	peer, err := f.house.Device(devs[0])
	require.NoError(t, err)
	_, ok = peer.Links.TryGetEntry(insteon.LinkRecord{DestinationID: hubID, Group: 1}, nil)
	assert.True(t, ok)

	// the physical hub matches the model
	assert.True(t, f.net.IM().Database().Equal(hub.Links))
}

func TestApplySetButtonLinking(t *testing.T) {
	f := newFixture(t)

	result, err := f.net.PressSetButton(device.CreateResponderLink, 2, devs[1])
	require.NoError(t, err)
	assert.False(t, result.Solicited)

	f.house.ApplyLinking(result)
	f.house.ApplyLinking(result)

	hub, err := f.house.Hub()
	require.NoError(t, err)
	assert.True(t, f.net.IM().Database().Equal(hub.Links), "hub model %v", hub.Links.Records())
	assert.Equal(t, 1, hub.Links.Len())

	peer, err := f.house.Device(devs[1])
	require.NoError(t, err)
	_, ok := peer.Links.TryGetEntry(insteon.LinkRecord{DestinationID: hubID, IsController: true, Group: 2}, nil)
	assert.True(t, ok)
	assert.Equal(t, 1, peer.Links.Len())
}

func TestLinkFailureLeavesModelUntouched(t *testing.T) {
	f := newFixture(t)
	f.net.SetUnreachable(devs[1], true)

	_, err := f.house.Link(context.Background(), device.CreateControllerLink, 0, devs[1])
	assert.ErrorIs(t, err, device.ErrTimeout)

	hub, _ := f.house.Hub()
	assert.Equal(t, 0, hub.Links.Len())
}

func TestImportAll(t *testing.T) {
	f := newFixture(t)
	phys, _ := f.net.Device(devs[2])
	phys.Database().AddRecord(insteon.LinkRecord{DestinationID: hubID, Group: 1, Data1: 255})

	result, ok := run(t, f.house.ScheduleImportAll)
	assert.True(t, ok)
	assert.Equal(t, len(devs)+1, result.Processed)
	assert.Empty(t, result.Failures)

	d, _ := f.house.Device(devs[2])
	assert.Equal(t, 1, d.Links.Len())
	assert.False(t, d.LastSync.IsZero())
}

func TestImportAllToleratesUnreachableDevice(t *testing.T) {
	f := newFixture(t)
	f.net.SetUnreachable(devs[1], true)

	result, ok := run(t, f.house.ScheduleImportAll)
	assert.True(t, ok)
	assert.Equal(t, len(devs)+1, result.Processed)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, devs[1].String(), result.Failures[0].Unit)

	d, _ := f.house.Device(devs[1])
	assert.True(t, d.LastSync.IsZero())
	d, _ = f.house.Device(devs[3])
	assert.False(t, d.LastSync.IsZero())
}

func TestSyncWritesOnlyDirtyDevices(t *testing.T) {
	f := newFixture(t)
	n, err := f.house.RemoveLinksTo(devs[0], hubID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, f.house.mutate(devs[0], func(d *Device) {
		d.Links.AddRecord(insteon.LinkRecord{DestinationID: hubID, Group: 1, Data1: 255})
		d.Dirty = true
	}))

	_, ok := run(t, func(cb func(bool)) (*jobs.Job, error) { return f.house.ScheduleSyncAll(false, cb) })
	assert.True(t, ok)

	phys, _ := f.net.Device(devs[0])
	assert.Equal(t, 1, phys.Database().Len())

	d, _ := f.house.Device(devs[0])
	assert.False(t, d.Dirty)

	// one read and one write for the dirty device, nothing for the rest
	assert.Equal(t, 2, f.net.Exchanges())
}

func TestForcedSyncSkipsMatchingTables(t *testing.T) {
	f := newFixture(t)
	_, ok := run(t, func(cb func(bool)) (*jobs.Job, error) { return f.house.ScheduleSyncAll(true, cb) })
	assert.True(t, ok)

	// every device read, none written since the tables already match
	assert.Equal(t, len(devs)+1, f.net.Exchanges())
}

func TestConnectAll(t *testing.T) {
	f := newFixture(t)
	result, ok := run(t, f.house.ScheduleConnectAll)
	assert.True(t, ok)
	assert.Equal(t, len(devs), result.Total)

	hub, _ := f.house.Hub()
	for _, id := range devs {
		_, ok := hub.Links.TryGetEntry(insteon.LinkRecord{DestinationID: id, IsController: true, Group: ConnectControllerGroup}, nil)
		assert.True(t, ok, id.String())
		_, ok = hub.Links.TryGetEntry(insteon.LinkRecord{DestinationID: id, Group: ConnectResponderGroup}, nil)
		assert.True(t, ok, id.String())
	}
	assert.Equal(t, 2*len(devs), hub.Links.Len())
}

func TestCancelImportAfterSomeDevices(t *testing.T) {
	f := newFixture(t)
	for _, id := range devs {
		phys, _ := f.net.Device(id)
		phys.Database().AddRecord(insteon.LinkRecord{DestinationID: hubID, Group: 1})
	}

	// block inside the second unit until cancellation was requested
	reached := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.net.OnExchange(func(id insteon.ID) {
		if id == devs[0] {
			once.Do(func() {
				close(reached)
				<-release
			})
		}
	})

	done := make(chan bool, 1)
	job, err := f.house.ScheduleImportAll(func(ok bool) { done <- ok })
	require.NoError(t, err)

	<-reached
	require.NoError(t, f.house.Cancel(job))
	close(release)

	result, err := job.Wait(context.Background())
	require.NoError(t, err)
	assert.False(t, <-done)
	assert.True(t, result.Cancelled)
	assert.Equal(t, jobs.StateCancelled, result.State)
	assert.Equal(t, 2, result.Processed)

	// the unit in progress finished, later devices keep their pre-job state
	d, _ := f.house.Device(devs[0])
	assert.Equal(t, 1, d.Links.Len())
	for _, id := range devs[1:] {
		d, _ := f.house.Device(id)
		assert.Equal(t, 0, d.Links.Len(), id.String())
		assert.True(t, d.LastSync.IsZero(), id.String())
	}
	assert.False(t, f.house.IsRunning(jobs.KindImport))
}

func TestSameKindRejectedWhileRunning(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	f.net.OnExchange(func(insteon.ID) { <-release })

	job, err := f.house.ScheduleImportAll(nil)
	require.NoError(t, err)
	assert.True(t, f.house.IsRunning(jobs.KindImport))

	_, err = f.house.ScheduleImportAll(nil)
	assert.ErrorIs(t, err, jobs.ErrJobRunning)

	close(release)
	_, err = job.Wait(context.Background())
	require.NoError(t, err)
}

func TestRemoveDeviceChainsForcedSync(t *testing.T) {
	f := newFixture(t)
	target := devs[1]

	// the hub and a peer both point at the target
	_, err := f.house.Link(context.Background(), device.CreateControllerLink, 0, target)
	require.NoError(t, err)
	require.NoError(t, f.house.mutate(devs[0], func(d *Device) {
		d.Links.AddRecord(insteon.LinkRecord{DestinationID: target, IsController: true, Group: 1})
		d.Links.AddRecord(insteon.LinkRecord{DestinationID: hubID, Group: 1})
	}))

	var syncRan atomic.Bool
	f.house.Jobs().Observe(func(r jobs.Result) {
		if r.Kind == jobs.KindSync {
			syncRan.Store(true)
		}
	})

	done := make(chan bool, 1)
	_, err = f.house.ScheduleRemoveDevice(target, func(ok bool) { done <- ok })
	require.NoError(t, err)

	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("remove-device chain did not complete")
	}
	assert.Eventually(t, func() bool { return syncRan.Load() && !f.house.IsRunning(jobs.KindSync) }, time.Second, 10*time.Millisecond)

	_, err = f.house.Device(target)
	assert.ErrorIs(t, err, ErrDeviceNotFound)

	for _, d := range f.house.Devices() {
		assert.False(t, d.Links.References(target), d.ID().String())
	}
	assert.False(t, f.net.IM().Database().References(target))
	phys, _ := f.net.Device(devs[0])
	assert.False(t, phys.Database().References(target))
	assert.True(t, phys.Database().References(hubID))
}

func TestRemoveDeviceReportsFailureWhenResyncCannotStart(t *testing.T) {
	f := newFixture(t)

	// hold the sync slot so the chained resync is rejected
	release := make(chan struct{})
	blocker, err := f.house.Jobs().Schedule(jobs.Plan{
		Kind:  jobs.KindSync,
		Units: []jobs.Unit{{Name: "block", Run: func(context.Context) error { <-release; return nil }}},
	}, nil)
	require.NoError(t, err)
	defer func() {
		close(release)
		_, _ = blocker.Wait(context.Background())
	}()

	done := make(chan bool, 1)
	_, err = f.house.ScheduleRemoveDevice(devs[0], func(ok bool) { done <- ok })
	require.NoError(t, err)

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("remove-device chain did not complete")
	}

	// the purge itself went through
	_, err = f.house.Device(devs[0])
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestRemoveDeviceRejectsHub(t *testing.T) {
	f := newFixture(t)
	_, err := f.house.ScheduleRemoveDevice(hubID, nil)
	assert.ErrorIs(t, err, ErrActiveGateway)

	_, err = f.house.ScheduleRemoveDevice(insteon.MustParseID("99.99.99"), nil)
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestRemoveOldGateway(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.house.AddDevice(&Device{Info: device.Info{ID: oldID}, Gateway: true}))
	require.NoError(t, f.house.mutate(devs[2], func(d *Device) {
		d.Links.AddRecord(insteon.LinkRecord{DestinationID: oldID, Group: 1})
	}))

	_, err := f.house.ScheduleRemoveOldGateway(hubID, nil)
	assert.ErrorIs(t, err, ErrActiveGateway)
	_, err = f.house.ScheduleRemoveOldGateway(devs[0], nil)
	assert.ErrorIs(t, err, ErrNotGateway)
	assert.NotErrorIs(t, err, ErrNoGateway)

	result, ok := run(t, func(cb func(bool)) (*jobs.Job, error) { return f.house.ScheduleRemoveOldGateway(oldID, cb) })
	assert.True(t, ok)
	assert.Equal(t, len(devs)+1, result.Processed)

	assert.Len(t, f.house.Gateways(), 1)
	d, _ := f.house.Device(devs[2])
	assert.False(t, d.Links.References(oldID))
	assert.True(t, d.Dirty)
}

func TestPurgeHubLinks(t *testing.T) {
	f := newFixture(t)
	stray := insteon.MustParseID("77.77.77")
	require.NoError(t, f.house.mutate(hubID, func(d *Device) {
		d.Links.AddRecord(insteon.LinkRecord{DestinationID: devs[0], IsController: true, Group: 0})
		d.Links.AddRecord(insteon.LinkRecord{DestinationID: stray, IsController: true, Group: 0})
		d.Links.AddRecord(insteon.LinkRecord{DestinationID: stray, Group: 1})
	}))

	orphans, err := f.house.OrphanHubDestinations()
	require.NoError(t, err)
	assert.Equal(t, []insteon.ID{stray}, orphans)

	result, ok := run(t, f.house.SchedulePurgeHubLinks)
	assert.True(t, ok)
	assert.Equal(t, 1, result.Total)

	hub, _ := f.house.Hub()
	assert.False(t, hub.Dirty)
	assert.Equal(t, 1, hub.Links.Len())
	assert.Equal(t, 1, f.net.IM().Database().Len())
	assert.False(t, f.net.IM().Database().References(stray))
}

func TestScheduleByKind(t *testing.T) {
	f := newFixture(t)
	_, ok := run(t, func(cb func(bool)) (*jobs.Job, error) {
		return f.house.Schedule(jobs.KindSync, Params{Force: true}, cb)
	})
	assert.True(t, ok)

	_, err := f.house.Schedule(jobs.Kind("defrag"), Params{}, nil)
	assert.ErrorIs(t, err, jobs.ErrUnknownKind)
}
