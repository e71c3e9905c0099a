package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the integrations process.
const (
	// TopicPrefix is the root of every topic this process publishes.
	TopicPrefix = "graylogic/integrations"

	topicEntity = TopicPrefix + "/entity"
	topicEntry  = TopicPrefix + "/entry"
)

// Entity topic leaves.
const (
	LeafState        = "state"
	LeafAvailability = "availability"
	LeafCommand      = "command"
)

// Availability payloads.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// Topics provides builders for integration MQTT topics.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.EntityState("sensor.test_bridge_cpu_load")
//	// Returns: "graylogic/integrations/entity/sensor.test_bridge_cpu_load/state"
type Topics struct{}

// Status returns the process status topic (online/offline, LWT).
//
// Example: graylogic/integrations/status
func (Topics) Status() string {
	return TopicPrefix + "/status"
}

// EntityState returns the retained state topic of an entity.
func (Topics) EntityState(entityID string) string {
	return fmt.Sprintf("%s/%s/%s", topicEntity, entityID, LeafState)
}

// EntityAvailability returns the retained availability topic of an entity.
func (Topics) EntityAvailability(entityID string) string {
	return fmt.Sprintf("%s/%s/%s", topicEntity, entityID, LeafAvailability)
}

// EntityCommand returns the topic on which service calls for an entity arrive.
func (Topics) EntityCommand(entityID string) string {
	return fmt.Sprintf("%s/%s/%s", topicEntity, entityID, LeafCommand)
}

// EntryState returns the topic announcing lifecycle changes of a config entry.
//
// Example: graylogic/integrations/entry/01J.../state
func (Topics) EntryState(entryID string) string {
	return fmt.Sprintf("%s/%s/state", topicEntry, entryID)
}

// AllEntityCommands returns a pattern matching every entity command topic.
//
// Pattern: graylogic/integrations/entity/+/command
func (Topics) AllEntityCommands() string {
	return topicEntity + "/+/" + LeafCommand
}

// ParseEntityTopic splits an entity topic into its entity id and leaf.
// It reports false for topics outside the entity tree.
func ParseEntityTopic(topic string) (entityID, leaf string, ok bool) {
	rest, found := strings.CutPrefix(topic, topicEntity+"/")
	if !found {
		return "", "", false
	}
	idx := strings.LastIndexByte(rest, '/')
	if idx <= 0 || idx == len(rest)-1 {
		return "", "", false
	}
	return rest[:idx], rest[idx+1:], true
}
