package flow

import (
	"strings"
)

// Discovery info keys as passed to a zeroconf flow.
const (
	DiscoveryHost     = "host"
	DiscoveryPort     = "port"
	DiscoveryHostname = "hostname"
	DiscoveryType     = "type"
	DiscoveryName     = "name"

	discoveryPropertyPrefix = "properties."
)

// DiscoveryInfo describes a service announced over mDNS.
type DiscoveryInfo struct {
	Host       string
	Port       string
	Hostname   string
	Type       string
	Name       string
	Properties map[string]string
}

// Map flattens the info into flow start data. Properties are stored under
// "properties.<key>".
func (d DiscoveryInfo) Map() map[string]string {
	m := map[string]string{
		DiscoveryHost:     d.Host,
		DiscoveryPort:     d.Port,
		DiscoveryHostname: d.Hostname,
		DiscoveryType:     d.Type,
		DiscoveryName:     d.Name,
	}
	for k, v := range d.Properties {
		m[discoveryPropertyPrefix+k] = v
	}
	return m
}

// DiscoveryInfoFromMap is the inverse of DiscoveryInfo.Map.
func DiscoveryInfoFromMap(m map[string]string) DiscoveryInfo {
	d := DiscoveryInfo{
		Host:       m[DiscoveryHost],
		Port:       m[DiscoveryPort],
		Hostname:   m[DiscoveryHostname],
		Type:       m[DiscoveryType],
		Name:       m[DiscoveryName],
		Properties: make(map[string]string),
	}
	for k, v := range m {
		if key, ok := strings.CutPrefix(k, discoveryPropertyPrefix); ok {
			d.Properties[key] = v
		}
	}
	return d
}
