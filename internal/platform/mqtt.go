package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-integrations/internal/entity"
	"github.com/nerrad567/gray-logic-integrations/internal/entry"
	"github.com/nerrad567/gray-logic-integrations/internal/infrastructure/mqtt"
)

// MQTTClient is the part of the MQTT client the platform uses.
type MQTTClient interface {
	PublishEntityState(entityID string, v any, available bool) error
	ClearEntity(entityID string) error
	PublishRetained(topic string, payload []byte) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// MQTTPublisher publishes entity states as retained MQTT messages and
// routes service calls received on entity command topics to the Host.
type MQTTPublisher struct {
	client MQTTClient
	topics mqtt.Topics
}

// NewMQTTPublisher creates a publisher on client.
func NewMQTTPublisher(client MQTTClient) *MQTTPublisher {
	return &MQTTPublisher{client: client}
}

// statePayload is the retained entity state. Entities with services also
// announce the topic their commands are read from.
type statePayload struct {
	entity.State
	CommandTopic string `json:"command_topic,omitempty"`
}

// Publish writes each state to its entity state and availability topics.
func (p *MQTTPublisher) Publish(_ context.Context, states []entity.State) error {
	var errs []error
	for _, s := range states {
		payload := statePayload{State: s}
		if len(s.Services) > 0 {
			payload.CommandTopic = p.topics.EntityCommand(s.EntityID)
		}
		if err := p.client.PublishEntityState(s.EntityID, payload, s.Available); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.EntityID, err))
		}
	}
	return errors.Join(errs...)
}

// Remove clears the retained topics of the entities.
func (p *MQTTPublisher) Remove(_ context.Context, entityIDs []string) error {
	var errs []error
	for _, id := range entityIDs {
		if err := p.client.ClearEntity(id); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// entryStatePayload is published on an entry's state topic.
type entryStatePayload struct {
	EntryID string      `json:"entry_id"`
	Domain  string      `json:"domain"`
	Title   string      `json:"title"`
	State   entry.State `json:"state"`
}

// EntryChanged publishes entry lifecycle changes. Subscribe it to the
// entry store.
func (p *MQTTPublisher) EntryChanged(c entry.Change) error {
	topic := p.topics.EntryState(c.Entry.ID)
	if c.Type == entry.ChangeRemoved {
		return p.client.PublishRetained(topic, nil)
	}

	payload, err := json.Marshal(entryStatePayload{
		EntryID: c.Entry.ID,
		Domain:  c.Entry.Domain,
		Title:   c.Entry.Title,
		State:   c.Entry.State,
	})
	if err != nil {
		return fmt.Errorf("encoding entry state: %w", err)
	}
	return p.client.PublishRetained(topic, payload)
}

// ServiceCaller runs entity services. Host implements it.
type ServiceCaller interface {
	CallService(ctx context.Context, entityID, service string, params map[string]any) error
}

// commandPayload is the body of an entity command message:
//
//	{"service": "set_temperature", "params": {"temperature": 21.5}}
type commandPayload struct {
	Service string         `json:"service"`
	Params  map[string]any `json:"params"`
}

// SubscribeCommands routes messages on every entity command topic to
// caller. ctx bounds the service calls.
func (p *MQTTPublisher) SubscribeCommands(ctx context.Context, caller ServiceCaller) error {
	return p.client.Subscribe(p.topics.AllEntityCommands(), 1, func(topic string, payload []byte) error {
		return handleCommand(ctx, caller, topic, payload)
	})
}

func handleCommand(ctx context.Context, caller ServiceCaller, topic string, payload []byte) error {
	entityID, leaf, ok := mqtt.ParseEntityTopic(topic)
	if !ok || leaf != mqtt.LeafCommand {
		return fmt.Errorf("%w: unexpected topic %q", ErrInvalidCommand, topic)
	}

	var cmd commandPayload
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	if cmd.Service == "" {
		return fmt.Errorf("%w: missing service", ErrInvalidCommand)
	}

	return caller.CallService(ctx, entityID, cmd.Service, cmd.Params)
}
