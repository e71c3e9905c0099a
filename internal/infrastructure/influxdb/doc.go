// Package influxdb records entity state history in InfluxDB.
//
// Every state an integration entity renders is written to the
// "entity_state" measurement, tagged by entity id, integration and
// platform. Numeric states land in the "value" field so dashboards can
// chart CPU load, battery level or room temperature directly.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // history disabled
//	}
//	defer client.Close()
//
//	client.WriteEntityState(influxdb.EntitySample{
//	    EntityID: "sensor.test_bridge_cpu_load",
//	    State:    "12.5",
//	})
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are batched according
// to batch_size and flush_interval.
package influxdb
