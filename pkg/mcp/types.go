package mcp

import (
	"github.com/urmzd/linkhub/pkg/device"
	"github.com/urmzd/linkhub/pkg/house"
	"github.com/urmzd/linkhub/pkg/insteon"
	"github.com/urmzd/linkhub/pkg/jobs"
)

// --- Health Tool ---

// GetHealthOutput is the output for the get_health tool
type GetHealthOutput struct {
	Status    string `json:"status" jsonschema:"description=Overall health status (healthy or unhealthy)"`
	Modem     string `json:"modem" jsonschema:"description=Modem connection status"`
	Hub       string `json:"hub,omitempty" jsonschema:"description=Address of the active hub"`
	Jobs      int    `json:"running_jobs" jsonschema:"description=Number of running jobs"`
	Timestamp string `json:"timestamp" jsonschema:"description=ISO8601 timestamp"`
}

// --- List Devices Tool ---

// ListDevicesOutput is the output for the list_devices tool
type ListDevicesOutput struct {
	Devices []DeviceInfo `json:"devices" jsonschema:"description=Devices in collection order"`
	Count   int          `json:"count" jsonschema:"description=Total number of devices"`
}

// DeviceInfo represents a device in tool outputs
type DeviceInfo struct {
	ID       string `json:"id" jsonschema:"description=Device address"`
	Name     string `json:"name" jsonschema:"description=User-friendly device name"`
	Category byte   `json:"category" jsonschema:"description=Product category"`
	Gateway  bool   `json:"gateway" jsonschema:"description=Device is a hub, active or retired"`
	Hub      bool   `json:"hub" jsonschema:"description=Device is the active hub"`
	Dirty    bool   `json:"dirty" jsonschema:"description=Model links not yet written to the device"`
	Links    int    `json:"links" jsonschema:"description=Number of active link records"`
}

// DeviceToInfo converts a house device into tool output.
func DeviceToInfo(d *house.Device, hub insteon.ID) DeviceInfo {
	return DeviceInfo{
		ID:       d.ID().String(),
		Name:     d.Name,
		Category: d.Info.Category,
		Gateway:  d.Gateway,
		Hub:      d.ID() == hub,
		Dirty:    d.Dirty,
		Links:    len(d.Links.Active()),
	}
}

// --- Get Device Links Tool ---

// GetDeviceLinksOutput is the output for the get_device_links tool
type GetDeviceLinksOutput struct {
	Device  string               `json:"device" jsonschema:"description=Device address"`
	Records []insteon.LinkRecord `json:"records" jsonschema:"description=Link records in slot order, deleted slots included"`
}

// --- Job Tools ---

// JobOutput is the output for schedule_job and cancel_job
type JobOutput struct {
	Job     jobs.Snapshot `json:"job" jsonschema:"description=Job status"`
	Message string        `json:"message" jsonschema:"description=Human-readable summary"`
}

// JobStatusOutput is the output for the job_status tool
type JobStatusOutput struct {
	Running []jobs.Snapshot `json:"running,omitempty" jsonschema:"description=Running jobs"`
	Result  *jobs.Result    `json:"result,omitempty" jsonschema:"description=Result of the requested finished job"`
}

// --- Link Device Tool ---

// LinkDeviceOutput is the output for the link_device tool
type LinkDeviceOutput struct {
	Result device.LinkingCompleted `json:"result" jsonschema:"description=Outcome of the linking exchange"`
}
