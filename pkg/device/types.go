package device

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/urmzd/linkhub/pkg/insteon"
)

// Info is the identity of a physical device as reported by the network
type Info struct {
	ID          insteon.ID `json:"id"`
	Category    byte       `json:"category"`
	Subcategory byte       `json:"subcategory"`
	Revision    byte       `json:"revision"`
}

// LinkingAction selects what a linking exchange does
type LinkingAction int

// Linking actions
const (
	CreateAutoLink LinkingAction = iota
	CreateControllerLink
	CreateResponderLink
	DeleteLink
)

var linkingActionNames = map[LinkingAction]string{
	CreateAutoLink:       "auto",
	CreateControllerLink: "controller",
	CreateResponderLink:  "responder",
	DeleteLink:           "delete",
}

func (a LinkingAction) String() string {
	if s, ok := linkingActionNames[a]; ok {
		return s
	}
	return fmt.Sprintf("LinkingAction(%d)", int(a))
}

// ParseLinkingAction parses the names produced by String.
func ParseLinkingAction(s string) (LinkingAction, error) {
	for a, name := range linkingActionNames {
		if strings.EqualFold(s, name) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown linking action %q", ErrValidation, s)
}

// MarshalJSON encodes the action by name.
func (a LinkingAction) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON decodes an action name.
func (a *LinkingAction) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseLinkingAction(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// LinkingCompleted describes the outcome of a linking exchange. Peer fields
// are zero when no peer device took part. Solicited is set when the exchange
// was started by PerformLinkingAction; other events come from a device's set
// button.
type LinkingCompleted struct {
	Action      LinkingAction `json:"action"`
	Group       byte          `json:"group"`
	DeviceID    insteon.ID    `json:"device_id"`
	Category    byte          `json:"category"`
	Subcategory byte          `json:"subcategory"`
	Revision    byte          `json:"revision"`
	Timestamp   time.Time     `json:"timestamp"`
	Solicited   bool          `json:"solicited"`
}

// Product category constants
const (
	CategoryGeneralizedController byte = 0x00
	CategoryDimmableLighting      byte = 0x01
	CategorySwitchedLighting      byte = 0x02
	CategoryNetworkBridge         byte = 0x03
	CategorySensorsActuators      byte = 0x07
	CategoryWindowCovering        byte = 0x0E
)
