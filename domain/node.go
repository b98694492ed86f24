package domain

import (
	"bytes"
	"encoding/json"
)

const (
	// ServiceNone is the declared service of a connection that offers nothing (plain callers).
	ServiceNone = "none"
	// ServiceContainer is the declared service of a node that hosts application instances.
	ServiceContainer = "app:container"
)

// AppConfig is what a container node declares for one hostable application: which instance types it
// can provision plus any extra keys the node sends along, kept verbatim in Extra.
//
// Only a literal JSON true enables an instance type; any other value (including "true" as a string)
// leaves it disabled.
type AppConfig struct {
	CommonInstance  bool
	PrivateInstance bool
	StaticInstance  bool
	Extra           map[string]json.RawMessage
}

const (
	keyCommonInstance  = "commonInstance"
	keyPrivateInstance = "privateInstance"
	keyStaticInstance  = "staticInstance"
)

// Permits reports whether the configuration allows provisioning instances of type t.
func (c AppConfig) Permits(t InstanceType) bool {
	switch t {
	case InstanceCommon:
		return c.CommonInstance
	case InstancePrivate:
		return c.PrivateInstance
	case InstanceStatic:
		return c.StaticInstance
	default:
		return false
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *AppConfig) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = AppConfig{}
	for key, value := range raw {
		isTrue := bytes.Equal(bytes.TrimSpace(value), []byte("true"))
		switch key {
		case keyCommonInstance:
			c.CommonInstance = isTrue
		case keyPrivateInstance:
			c.PrivateInstance = isTrue
		case keyStaticInstance:
			c.StaticInstance = isTrue
		default:
			if c.Extra == nil {
				c.Extra = make(map[string]json.RawMessage)
			}
			c.Extra[key] = value
		}
	}
	return nil
}

// MarshalJSON implements json.Marshaler; extra keys are written back next to the instance flags.
func (c AppConfig) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Extra)+3)
	for key, value := range c.Extra {
		out[key] = value
	}
	out[keyCommonInstance] = c.CommonInstance
	out[keyPrivateInstance] = c.PrivateInstance
	out[keyStaticInstance] = c.StaticInstance
	return json.Marshal(out)
}

// AppConfigList maps an application id to the node's configuration for it.
type AppConfigList map[string]AppConfig

// NodeSnapshot is a point-in-time copy of one registered node, used by the registry listing.
type NodeSnapshot struct {
	ID         string             `json:"id"`
	AuthID     string             `json:"auth_id"`
	Service    string             `json:"service"`
	RemoteAddr string             `json:"remote_addr"`
	Apps       []string           `json:"apps"`
	Load       int                `json:"load"`
	Capacity   int                `json:"capacity"`
	Instances  []InstanceSnapshot `json:"instances"`
}

// InstanceSnapshot is a point-in-time copy of one application instance.
type InstanceSnapshot struct {
	ID       string       `json:"id"`
	AppID    string       `json:"app_id"`
	Type     InstanceType `json:"type"`
	Load     int          `json:"load"`
	Capacity int          `json:"capacity"`
}

// RegistrySnapshot lists every registered node in registration order.
type RegistrySnapshot struct {
	Nodes   []NodeSnapshot `json:"nodes"`
	Pending int            `json:"pending"`
}
