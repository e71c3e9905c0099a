//go:build integration

package mqtt

import (
	"context"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-integrations/internal/infrastructure/config"
)

// These tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//
//	go test -tags=integration -v ./internal/infrastructure/mqtt/...
func integrationConfig(clientID string) config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: clientID,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

func TestIntegration_EntityStateRoundtrip(t *testing.T) {
	ctx := context.Background()

	pub, err := Connect(ctx, integrationConfig("gl-int-test-pub"))
	if err != nil {
		t.Fatalf("Connect() publisher error = %v", err)
	}
	defer pub.Close()

	sub, err := Connect(ctx, integrationConfig("gl-int-test-sub"))
	if err != nil {
		t.Fatalf("Connect() subscriber error = %v", err)
	}
	defer sub.Close()

	received := make(chan string, 4)
	err = sub.Subscribe(Topics{}.EntityState("sensor.it_roundtrip"), 1, func(topic string, payload []byte) error {
		if entityID, _, ok := ParseEntityTopic(topic); ok && entityID == "sensor.it_roundtrip" {
			received <- string(payload)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := pub.PublishEntityState("sensor.it_roundtrip", map[string]any{"state": "42"}, true); err != nil {
		t.Fatalf("PublishEntityState() error = %v", err)
	}

	select {
	case payload := <-received:
		if payload != `{"state":"42"}` {
			t.Errorf("payload = %q", payload)
		}
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for entity state")
	}

	if err := pub.ClearEntity("sensor.it_roundtrip"); err != nil {
		t.Errorf("ClearEntity() error = %v", err)
	}
}

func TestIntegration_ConnectRefused(t *testing.T) {
	cfg := integrationConfig("gl-int-test-refused")
	cfg.Broker.Port = 19998

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := Connect(ctx, cfg); err == nil {
		t.Fatal("Connect() should fail for refused connection")
	}
}
