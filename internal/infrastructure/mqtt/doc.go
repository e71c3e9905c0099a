// Package mqtt provides MQTT client connectivity for Gray Logic Integrations.
//
// This package manages:
//   - Connection to the site broker with auto-reconnect
//   - Retained entity state and availability publishing
//   - Entity command subscriptions (services invoked over the bus)
//   - Last Will and Testament (LWT) for offline detection
//
// # Architecture
//
// The integrations process sits beside Gray Logic Core on the same bus.
// Every entity exposed by a loaded config entry has its own topic tree:
//
//	graylogic/integrations/entity/{entity_id}/state          retained JSON
//	graylogic/integrations/entity/{entity_id}/availability   retained online|offline
//	graylogic/integrations/entity/{entity_id}/command        {"service":...,"params":{...}}
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - State payloads never include config entry data (API keys, tokens)
//
// # Usage
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.PublishEntityState("sensor.workstation_cpu_load", state, true)
package mqtt
