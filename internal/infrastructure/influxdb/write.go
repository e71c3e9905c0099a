package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// measurementEntityState is the measurement holding entity state history.
const measurementEntityState = "entity_state"

// EntitySample is one rendered entity state, as recorded in history.
type EntitySample struct {
	EntityID    string
	Integration string
	Platform    string
	DeviceClass string
	Unit        string
	State       string
	Attributes  map[string]any
	Time        time.Time
}

// WriteEntityState records an entity state. The write is non-blocking.
// Unavailable and unknown states are skipped.
func (c *Client) WriteEntityState(s EntitySample) {
	if !c.IsConnected() {
		return
	}
	if p := entityPoint(s); p != nil {
		c.writeAPI.WritePoint(p)
	}
}

// entityPoint builds the line-protocol point for a sample.
//
// Numeric states go to the "value" field, anything else to "state".
// Numeric attributes (for example current_temperature) become extra fields.
func entityPoint(s EntitySample) *write.Point {
	if s.State == "" || s.State == "unknown" || s.State == "unavailable" {
		return nil
	}

	tags := map[string]string{
		"entity_id":   s.EntityID,
		"integration": s.Integration,
		"platform":    s.Platform,
	}
	if s.DeviceClass != "" {
		tags["device_class"] = s.DeviceClass
	}
	if s.Unit != "" {
		tags["unit"] = s.Unit
	}

	fields := make(map[string]interface{}, len(s.Attributes)+1)
	if v, err := strconv.ParseFloat(s.State, 64); err == nil {
		fields["value"] = v
	} else {
		fields["state"] = s.State
	}
	for k, v := range s.Attributes {
		if f, ok := toFloat(v); ok {
			fields[k] = f
		}
	}

	ts := s.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	return write.NewPoint(measurementEntityState, tags, fields, ts)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
