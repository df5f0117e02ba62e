package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/urmzd/linkhub/pkg/device"
	"github.com/urmzd/linkhub/pkg/house"
	"github.com/urmzd/linkhub/pkg/schema"
)

// LinkingHandler handles manual linking
type LinkingHandler struct {
	house     *house.House
	validator *schema.Validator
}

// NewLinkingHandler creates a new linking handler
func NewLinkingHandler(h *house.House, validator *schema.Validator) *LinkingHandler {
	return &LinkingHandler{house: h, validator: validator}
}

// Link handles POST /linking
// @Summary      Run a linking exchange
// @Description  Performs one linking action between the modem and a device and mirrors the result into the house model
// @Tags         linking
// @Accept       json
// @Produce      json
// @Param        request  body      types.LinkRequest  true  "Linking action, group and device"
// @Success      200      {object}  device.LinkingCompleted
// @Failure      400      {object}  types.ErrorResponse  "Invalid request"
// @Failure      502      {object}  types.ErrorResponse  "Modem refused the command"
// @Failure      503      {object}  types.ErrorResponse  "Modem disconnected"
// @Failure      504      {object}  types.ErrorResponse  "Device did not answer"
// @Router       /linking [post]
func (h *LinkingHandler) Link(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		writeError(c, fmt.Errorf("%w: %v", device.ErrValidation, err))
		return
	}

	payload, err := h.validator.ValidateJSON(nil, raw)
	if err != nil {
		writeError(c, err)
		return
	}

	action, group, id, err := h.validator.ParseLink(payload)
	if err != nil {
		writeError(c, err)
		return
	}

	result, err := h.house.Link(c.Request.Context(), action, group, id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
