package types

import (
	"time"

	"github.com/urmzd/linkhub/pkg/insteon"
	"github.com/urmzd/linkhub/pkg/jobs"
)

// --- Request DTOs ---

// AddDeviceRequest is the request body for POST /devices
type AddDeviceRequest struct {
	ID   string `json:"id" binding:"required"`
	Name string `json:"name"`
}

// ScheduleJobRequest is the optional request body for POST /jobs/:kind
type ScheduleJobRequest struct {
	Force  bool   `json:"force,omitempty"`
	Device string `json:"device,omitempty"`
}

// LinkRequest is the request body for POST /linking
type LinkRequest struct {
	Action string `json:"action"`
	Group  int    `json:"group"`
	Device string `json:"device"`
}

// --- Response DTOs ---

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned from GET /health
type HealthResponse struct {
	Status    string    `json:"status"`
	Modem     string    `json:"modem"`
	Hub       string    `json:"hub,omitempty"`
	Jobs      int       `json:"running_jobs"`
	Timestamp time.Time `json:"timestamp"`
}

// Device is one device of the house
type Device struct {
	ID          insteon.ID `json:"id"`
	Name        string     `json:"name"`
	Category    byte       `json:"category"`
	Subcategory byte       `json:"subcategory"`
	Revision    byte       `json:"revision"`
	Gateway     bool       `json:"gateway"`
	Hub         bool       `json:"hub"`
	Dirty       bool       `json:"dirty"`
	Links       int        `json:"links"`
	LastSync    *time.Time `json:"last_sync,omitempty"`
}

// ListDevicesResponse is returned from GET /devices
type ListDevicesResponse struct {
	Devices []Device `json:"devices"`
	Count   int      `json:"count"`
}

// DeviceResponse is returned from GET /devices/:id
type DeviceResponse struct {
	Device Device `json:"device"`
}

// LinksResponse is returned from GET /devices/:id/links
type LinksResponse struct {
	Device     insteon.ID           `json:"device"`
	Records    []insteon.LinkRecord `json:"records"`
	Tombstones int                  `json:"tombstones"`
}

// JobResponse is returned when a job is scheduled or cancelled
type JobResponse struct {
	Job jobs.Snapshot `json:"job"`
}

// ListJobsResponse is returned from GET /jobs
type ListJobsResponse struct {
	Running []jobs.Snapshot `json:"running"`
	Recent  []jobs.Result   `json:"recent,omitempty"`
}

// JobRunResponse is returned from GET /runs/:id
type JobRunResponse struct {
	Run jobs.Result `json:"run"`
}
