package schema

import (
	"fmt"

	"github.com/urmzd/linkhub/pkg/device"
	"github.com/urmzd/linkhub/pkg/house"
	"github.com/urmzd/linkhub/pkg/insteon"
	"github.com/urmzd/linkhub/pkg/jobs"
)

// ParseJob validates a job request for kind and converts it to house
// parameters. payload may be nil.
func (v *Validator) ParseJob(kind string, payload map[string]any) (jobs.Kind, house.Params, error) {
	req := map[string]any{"kind": kind}
	for k, val := range payload {
		if k != "kind" {
			req[k] = val
		}
	}
	if err := v.Validate(JobRequest, req); err != nil {
		return "", house.Params{}, err
	}

	k, err := jobs.ParseKind(kind)
	if err != nil {
		return "", house.Params{}, err
	}

	var p house.Params
	if force, ok := req["force"].(bool); ok {
		p.Force = force
	}
	if s, ok := req["device"].(string); ok {
		if p.Device, err = insteon.ParseID(s); err != nil {
			return "", house.Params{}, fmt.Errorf("%w: %v", device.ErrValidation, err)
		}
	}
	return k, p, nil
}

// ParseLink validates a linking request and extracts its arguments. A
// missing group means group 0.
func (v *Validator) ParseLink(payload map[string]any) (device.LinkingAction, byte, insteon.ID, error) {
	if err := v.Validate(LinkRequest, payload); err != nil {
		return 0, 0, insteon.NullID, err
	}

	name, _ := payload["action"].(string)
	action, err := device.ParseLinkingAction(name)
	if err != nil {
		return 0, 0, insteon.NullID, err
	}

	var group byte
	switch g := payload["group"].(type) {
	case float64:
		group = byte(g)
	case int:
		group = byte(g)
	}

	addr, _ := payload["device"].(string)
	id, err := insteon.ParseID(addr)
	if err != nil {
		return 0, 0, insteon.NullID, fmt.Errorf("%w: %v", device.ErrValidation, err)
	}
	return action, group, id, nil
}
