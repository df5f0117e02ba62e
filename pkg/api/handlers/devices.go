package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/urmzd/linkhub/pkg/api/types"
	"github.com/urmzd/linkhub/pkg/device"
	"github.com/urmzd/linkhub/pkg/house"
	"github.com/urmzd/linkhub/pkg/insteon"
)

// DevicesHandler handles device endpoints
type DevicesHandler struct {
	house *house.House
}

// NewDevicesHandler creates a new devices handler
func NewDevicesHandler(h *house.House) *DevicesHandler {
	return &DevicesHandler{house: h}
}

// ToDevice converts a house device into its API form.
func ToDevice(d *house.Device, hub insteon.ID) types.Device {
	out := types.Device{
		ID:          d.ID(),
		Name:        d.Name,
		Category:    d.Info.Category,
		Subcategory: d.Info.Subcategory,
		Revision:    d.Info.Revision,
		Gateway:     d.Gateway,
		Hub:         d.ID() == hub,
		Dirty:       d.Dirty,
		Links:       len(d.Links.Active()),
	}
	if !d.LastSync.IsZero() {
		ts := d.LastSync
		out.LastSync = &ts
	}
	return out
}

// deviceID parses the :id path parameter.
func deviceID(c *gin.Context) (insteon.ID, error) {
	id, err := insteon.ParseID(c.Param("id"))
	if err != nil {
		return insteon.NullID, fmt.Errorf("%w: %v", device.ErrValidation, err)
	}
	return id, nil
}

// ListDevices handles GET /devices
// @Summary      List all devices
// @Description  Returns every device of the house in collection order
// @Tags         devices
// @Produce      json
// @Success      200  {object}  types.ListDevicesResponse
// @Router       /devices [get]
func (h *DevicesHandler) ListDevices(c *gin.Context) {
	hub := h.house.HubID()
	devices := h.house.Devices()

	result := make([]types.Device, 0, len(devices))
	for _, d := range devices {
		result = append(result, ToDevice(d, hub))
	}

	c.JSON(http.StatusOK, types.ListDevicesResponse{
		Devices: result,
		Count:   len(result),
	})
}

// GetDevice handles GET /devices/:id
// @Summary      Get device details
// @Tags         devices
// @Produce      json
// @Param        id   path      string  true  "Device address, e.g. 1A.2B.3C"
// @Success      200  {object}  types.DeviceResponse
// @Failure      400  {object}  types.ErrorResponse  "Invalid address"
// @Failure      404  {object}  types.ErrorResponse  "Device not found"
// @Router       /devices/{id} [get]
func (h *DevicesHandler) GetDevice(c *gin.Context) {
	id, err := deviceID(c)
	if err != nil {
		writeError(c, err)
		return
	}

	d, err := h.house.Device(id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.DeviceResponse{
		Device: ToDevice(d, h.house.HubID()),
	})
}

// GetLinks handles GET /devices/:id/links
// @Summary      Get a device's link table
// @Description  Returns the model link table in slot order; deleted slots are included
// @Tags         devices
// @Produce      json
// @Param        id   path      string  true  "Device address"
// @Success      200  {object}  types.LinksResponse
// @Failure      400  {object}  types.ErrorResponse  "Invalid address"
// @Failure      404  {object}  types.ErrorResponse  "Device not found"
// @Router       /devices/{id}/links [get]
func (h *DevicesHandler) GetLinks(c *gin.Context) {
	id, err := deviceID(c)
	if err != nil {
		writeError(c, err)
		return
	}

	d, err := h.house.Device(id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.LinksResponse{
		Device:     id,
		Records:    d.Links.Records(),
		Tombstones: d.Links.TombstoneCount(),
	})
}

// AddDevice handles POST /devices
// @Summary      Add a device
// @Description  Adds a device to the house with an empty link table. Run an import job to read its links.
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        request  body      types.AddDeviceRequest  true  "Device address and name"
// @Success      201      {object}  types.DeviceResponse
// @Failure      400      {object}  types.ErrorResponse  "Invalid request"
// @Failure      409      {object}  types.ErrorResponse  "Device already in house"
// @Router       /devices [post]
func (h *DevicesHandler) AddDevice(c *gin.Context) {
	var req types.AddDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid_request",
			Message: "id is required",
		})
		return
	}

	id, err := insteon.ParseID(req.ID)
	if err != nil {
		writeError(c, fmt.Errorf("%w: %v", device.ErrValidation, err))
		return
	}

	d := &house.Device{Info: device.Info{ID: id}, Name: req.Name}
	if err := h.house.AddDevice(d); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, types.DeviceResponse{
		Device: ToDevice(d, h.house.HubID()),
	})
}

// RemoveDevice handles DELETE /devices/:id
// @Summary      Remove a device
// @Description  Schedules a remove-device job: links to the device are purged from every other device, then the house is resynchronized
// @Tags         devices
// @Produce      json
// @Param        id   path      string  true  "Device address"
// @Success      202  {object}  types.JobResponse
// @Failure      400  {object}  types.ErrorResponse  "Invalid address"
// @Failure      404  {object}  types.ErrorResponse  "Device not found"
// @Failure      409  {object}  types.ErrorResponse  "Device is the hub or a removal is running"
// @Router       /devices/{id} [delete]
func (h *DevicesHandler) RemoveDevice(c *gin.Context) {
	id, err := deviceID(c)
	if err != nil {
		writeError(c, err)
		return
	}

	if _, err := h.house.Device(id); err != nil {
		writeError(c, err)
		return
	}

	job, err := h.house.ScheduleRemoveDevice(id, nil)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, types.JobResponse{Job: job.Snapshot()})
}
