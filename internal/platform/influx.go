package platform

import (
	"context"

	"github.com/nerrad567/gray-logic-integrations/internal/entity"
	"github.com/nerrad567/gray-logic-integrations/internal/infrastructure/influxdb"
)

// HistoryWriter is the part of the InfluxDB client the platform uses.
type HistoryWriter interface {
	WriteEntityState(s influxdb.EntitySample)
}

// InfluxPublisher records entity state changes as InfluxDB history.
type InfluxPublisher struct {
	writer HistoryWriter
}

// NewInfluxPublisher creates a publisher writing through w.
func NewInfluxPublisher(w HistoryWriter) *InfluxPublisher {
	return &InfluxPublisher{writer: w}
}

// Publish queues one point per state. Writes are batched by the client.
func (p *InfluxPublisher) Publish(_ context.Context, states []entity.State) error {
	for _, s := range states {
		p.writer.WriteEntityState(influxdb.EntitySample{
			EntityID:    s.EntityID,
			Integration: s.Domain,
			Platform:    string(s.Platform),
			DeviceClass: s.DeviceClass,
			Unit:        s.Unit,
			State:       s.State,
			Attributes:  s.Attributes,
			Time:        s.LastUpdated,
		})
	}
	return nil
}

// Remove keeps history; nothing to do.
func (p *InfluxPublisher) Remove(context.Context, []string) error {
	return nil
}
