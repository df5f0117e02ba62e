package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urmzd/linkhub/pkg/api/types"
	"github.com/urmzd/linkhub/pkg/db"
	"github.com/urmzd/linkhub/pkg/device"
	"github.com/urmzd/linkhub/pkg/events"
	"github.com/urmzd/linkhub/pkg/house"
	"github.com/urmzd/linkhub/pkg/insteon"
	"github.com/urmzd/linkhub/pkg/jobs"
	"github.com/urmzd/linkhub/pkg/mock"
	"github.com/urmzd/linkhub/pkg/schema"
)

var (
	hubID  = insteon.MustParseID("44.85.11")
	lampID = insteon.MustParseID("11.11.11")
	fanID  = insteon.MustParseID("22.22.22")
)

type fakeHistory struct {
	runs []jobs.Result
}

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]jobs.Result, error) {
	if limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

func (f *fakeHistory) Get(_ context.Context, id string) (jobs.Result, error) {
	for _, r := range f.runs {
		if r.JobID == id {
			return r, nil
		}
	}
	return jobs.Result{}, db.ErrJobRunNotFound
}

type fixture struct {
	net    *mock.Network
	house  *house.House
	broker *events.Broker
	router *Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	net := mock.NewNetwork(mock.NewPhysicalIM(hubID, device.CategoryNetworkBridge, 0x33, 0x9E))
	net.Add(
		mock.NewPhysicalDevice(lampID, device.CategoryDimmableLighting, 0x20, 0x45),
		mock.NewPhysicalDevice(fanID, device.CategorySwitchedLighting, 0x2A, 0x43),
	)

	sched := jobs.NewScheduler(context.Background())
	t.Cleanup(func() { _ = sched.Shutdown(context.Background()) })

	h := house.New("test", hubID, net, sched)
	require.NoError(t, h.AddDevice(&house.Device{Info: device.Info{ID: hubID, Category: device.CategoryNetworkBridge}, Name: "hub", Gateway: true}))
	require.NoError(t, h.AddDevice(&house.Device{Info: device.Info{ID: lampID}, Name: "lamp"}))
	require.NoError(t, h.AddDevice(&house.Device{Info: device.Info{ID: fanID}, Name: "fan"}))

	history := &fakeHistory{runs: []jobs.Result{{JobID: "run-1", Kind: jobs.KindSync, State: jobs.StateCompleted, Success: true}}}
	broker := events.NewBroker()
	return &fixture{
		net:    net,
		house:  h,
		broker: broker,
		router: NewRouter(h, broker, schema.NewValidator(), history),
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[types.HealthResponse](t, w)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "44.85.11", resp.Hub)

	f.net.Close()
	w = f.do(t, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "degraded", decode[types.HealthResponse](t, w).Status)
}

func TestDevices(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/devices", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[types.ListDevicesResponse](t, w)
	require.Equal(t, 3, list.Count)
	assert.True(t, list.Devices[0].Hub)
	assert.Equal(t, "lamp", list.Devices[1].Name)

	w = f.do(t, http.MethodGet, "/api/v1/devices/11.11.11", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, lampID, decode[types.DeviceResponse](t, w).Device.ID)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/devices/99.99.99", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/devices/nope", "").Code)

	w = f.do(t, http.MethodPost, "/api/v1/devices", `{"id":"aa.bb.cc","name":"porch"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "porch", decode[types.DeviceResponse](t, w).Device.Name)

	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, "/api/v1/devices", `{"id":"AABBCC"}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/devices", `{"name":"x"}`).Code)
}

func TestLinkingUpdatesLinks(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/linking", `{"action":"controller","group":1,"device":"11.11.11"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decode[device.LinkingCompleted](t, w)
	assert.Equal(t, device.CreateControllerLink, result.Action)
	assert.Equal(t, lampID, result.DeviceID)

	w = f.do(t, http.MethodGet, "/api/v1/devices/11.11.11/links", "")
	require.Equal(t, http.StatusOK, w.Code)
	links := decode[types.LinksResponse](t, w)
	require.Len(t, links.Records, 1)
	assert.Equal(t, hubID, links.Records[0].DestinationID)
	assert.False(t, links.Records[0].IsController)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/linking", `{"action":"pair","device":"11.11.11"}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/linking", `not json`).Code)

	f.net.SetUnreachable(fanID, true)
	w = f.do(t, http.MethodPost, "/api/v1/linking", `{"action":"responder","group":1,"device":"22.22.22"}`)
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}

func TestScheduleJob(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/jobs/import", "")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	snap := decode[types.JobResponse](t, w).Job
	assert.Equal(t, jobs.KindImport, snap.Kind)
	assert.Equal(t, 3, snap.Total)

	w = f.do(t, http.MethodPost, "/api/v1/jobs/sync", `{"force":true}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/jobs/reboot", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/jobs/remove-device", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/jobs/sync", `{"force":"yes"}`).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/v1/jobs/remove-device", `{"device":"99.99.99"}`).Code)
	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, "/api/v1/jobs/remove-gateway", `{"device":"44.85.11"}`).Code)
	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodDelete, "/api/v1/devices/44.85.11", "").Code)
}

func TestJobConflictAndCancel(t *testing.T) {
	f := newFixture(t)

	release := make(chan struct{})
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }
	t.Cleanup(unblock)
	f.net.OnExchange(func(insteon.ID) { <-release })

	require.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/api/v1/jobs/import", "").Code)
	job, ok := f.house.Jobs().Active(jobs.KindImport)
	require.True(t, ok)

	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, "/api/v1/jobs/import", "").Code)

	w := f.do(t, http.MethodGet, "/api/v1/jobs", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[types.ListJobsResponse](t, w)
	require.Len(t, list.Running, 1)
	require.Len(t, list.Recent, 1)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/jobs/import", "").Code)
	assert.Equal(t, http.StatusAccepted, f.do(t, http.MethodDelete, "/api/v1/jobs/import", "").Code)

	unblock()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := job.Wait(ctx)
	require.NoError(t, err)
	assert.True(t, result.Cancelled)
	assert.Less(t, result.Processed, result.Total)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "/api/v1/jobs/import", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/jobs/import", "").Code)
}

func TestRuns(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/runs/run-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[types.JobRunResponse](t, w).Run.Success)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/runs/missing", "").Code)
}

func TestEventStream(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router.Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		var name, data string
		for {
			line, err := r.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case line == "":
				return name, data
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			}
		}
	}

	name, _ := readEvent()
	require.Equal(t, "connected", name)

	f.broker.Publish(events.LinkingCompleted(device.LinkingCompleted{Action: device.CreateResponderLink, Group: 1, DeviceID: lampID}))
	name, data := readEvent()
	assert.Equal(t, "linking_completed", name)
	assert.Contains(t, data, `"device_id":"11.11.11"`)
}
