package entity

import (
	"context"
	"sort"
	"strings"
	"time"
)

// Platform is the kind of entity.
type Platform string

const (
	PlatformSensor  Platform = "sensor"
	PlatformClimate Platform = "climate"
)

// Well-known state values.
const (
	StateUnknown     = "unknown"
	StateUnavailable = "unavailable"
)

// Identifier ties a device to an id within an integration domain.
type Identifier struct {
	Domain string `json:"domain"`
	ID     string `json:"id"`
}

// Connection ties a device to a network identity, e.g. ("mac", "aa:bb:...").
type Connection struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// ConnectionMAC is the connection type for network MAC addresses.
const ConnectionMAC = "mac"

// DeviceInfo describes the physical device an entity belongs to.
type DeviceInfo struct {
	Identifiers  []Identifier `json:"identifiers,omitempty"`
	Connections  []Connection `json:"connections,omitempty"`
	Manufacturer string       `json:"manufacturer,omitempty"`
	Model        string       `json:"model,omitempty"`
	Name         string       `json:"name,omitempty"`
	SWVersion    string       `json:"sw_version,omitempty"`
}

// Key returns a stable grouping key for the device, preferring identifiers
// over connections. Empty when the device has neither.
func (d DeviceInfo) Key() string {
	if len(d.Identifiers) > 0 {
		return d.Identifiers[0].Domain + ":" + d.Identifiers[0].ID
	}
	if len(d.Connections) > 0 {
		return d.Connections[0].Type + ":" + strings.ToLower(d.Connections[0].Value)
	}
	return ""
}

// Description is the static metadata of one entity kind.
type Description struct {
	Key         string
	Name        string
	Icon        string
	DeviceClass string
	Unit        string
	Platform    Platform
}

// ValueFunc projects the entity state out of the current snapshot.
type ValueFunc func() (any, error)

// AttributesFunc projects extra state attributes out of the current snapshot.
type AttributesFunc func() (map[string]any, error)

// ServiceFunc executes a named command against the vendor.
type ServiceFunc func(ctx context.Context, params map[string]any) error

// Entity is a read-only view over a coordinator snapshot.
type Entity struct {
	// Domain is the owning integration, e.g. "system_bridge".
	Domain string

	// EntryID is the config entry the entity was set up from.
	EntryID string

	// UniqueID is stable across restarts and unique within Domain.
	UniqueID string

	Description Description
	Device      DeviceInfo

	Value      ValueFunc
	Attributes AttributesFunc

	// Available reports whether the last refresh succeeded. Nil means
	// always available.
	Available func() bool

	// LastUpdated reports when the snapshot was fetched. Optional.
	LastUpdated func() time.Time

	Services map[string]ServiceFunc

	// id is assigned by the Registry.
	id string
}

// ID returns the entity id assigned at registration, e.g.
// "sensor.workstation_cpu_load".
func (e *Entity) ID() string {
	return e.id
}

// IsAvailable reports whether the entity is available.
func (e *Entity) IsAvailable() bool {
	return e.Available == nil || e.Available()
}

// ServiceNames returns the supported service names, sorted.
func (e *Entity) ServiceNames() []string {
	names := make([]string, 0, len(e.Services))
	for name := range e.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// State is a rendered entity.
type State struct {
	EntityID    string         `json:"entity_id"`
	UniqueID    string         `json:"unique_id"`
	Domain      string         `json:"domain"`
	EntryID     string         `json:"entry_id"`
	Platform    Platform       `json:"platform"`
	Name        string         `json:"name"`
	Icon        string         `json:"icon,omitempty"`
	DeviceClass string         `json:"device_class,omitempty"`
	Unit        string         `json:"unit_of_measurement,omitempty"`
	State       string         `json:"state"`
	LastKnown   string         `json:"last_known_state,omitempty"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	Services    []string       `json:"services,omitempty"`
	Available   bool           `json:"available"`
	Device      DeviceInfo     `json:"device"`
	LastUpdated time.Time      `json:"last_updated"`
}
