// Package entity provides the read-only entity views integrations expose.
//
// An entity is identity metadata plus projection functions over the
// snapshot its coordinator last published. Projections re-read the
// snapshot on every render, so an entity never caches vendor data of its
// own. A projection that cannot find its field returns ErrMissingField and
// the entity renders as "unknown" instead of failing.
//
// Entities are built by composition: a sensor is an Entity with a Value
// func, a climate entity additionally carries Attributes and Services.
// The Registry indexes live entities by entity id, unique id, config entry
// and device.
package entity
