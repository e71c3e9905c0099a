package mqtt

import (
	"encoding/json"
	"fmt"
)

// maxPayloadSize guards against oversized attribute maps (1MB).
const maxPayloadSize = 1 << 20

// Publish sends a message to the specified MQTT topic.
//
// Parameters:
//   - topic: The topic to publish to
//   - payload: The message payload (max 1MB)
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker keeps the message for new subscribers
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrNotConnected or wrapped ErrPublishFailed
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := validatePublish(topic, payload, qos); err != nil {
		return err
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

func validatePublish(topic string, payload []byte, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	return nil
}

// PublishRetained publishes a retained message with the configured default QoS.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), true)
}

// PublishEntityState publishes v as retained JSON on the entity's state
// topic, followed by its availability.
func (c *Client) PublishEntityState(entityID string, v any, available bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encoding state of %s: %w", ErrPublishFailed, entityID, err)
	}

	topics := Topics{}
	if err := c.PublishRetained(topics.EntityState(entityID), payload); err != nil {
		return err
	}
	return c.PublishRetained(topics.EntityAvailability(entityID), []byte(availabilityPayload(available)))
}

// ClearEntity removes the retained state of an entity that no longer exists
// and marks it offline.
func (c *Client) ClearEntity(entityID string) error {
	topics := Topics{}
	if err := c.PublishRetained(topics.EntityState(entityID), nil); err != nil {
		return err
	}
	return c.PublishRetained(topics.EntityAvailability(entityID), []byte(PayloadOffline))
}

func availabilityPayload(available bool) string {
	if available {
		return PayloadOnline
	}
	return PayloadOffline
}
