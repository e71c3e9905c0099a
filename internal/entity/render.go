package entity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Render projects the entity out of the current snapshot. It never fails:
// an unavailable entity renders as "unavailable" with the last-known value
// in LastKnown, and a projection error renders as "unknown".
func (e *Entity) Render(logger Logger) State {
	if logger == nil {
		logger = noopLogger{}
	}

	s := State{
		EntityID:    e.id,
		UniqueID:    e.UniqueID,
		Domain:      e.Domain,
		EntryID:     e.EntryID,
		Platform:    e.Description.Platform,
		Name:        e.displayName(),
		Icon:        e.Description.Icon,
		DeviceClass: e.Description.DeviceClass,
		Unit:        e.Description.Unit,
		Device:      e.Device,
		Available:   e.IsAvailable(),
		State:       StateUnknown,
	}
	if len(e.Services) > 0 {
		s.Services = e.ServiceNames()
	}
	if e.LastUpdated != nil {
		s.LastUpdated = e.LastUpdated()
	}
	if s.LastUpdated.IsZero() {
		s.LastUpdated = time.Now().UTC()
	}

	value := StateUnknown
	if e.Value != nil {
		v, err := e.Value()
		switch {
		case err == nil:
			value = FormatValue(v)
		case errors.Is(err, ErrMissingField) || !s.Available:
			logger.Debug("entity field missing", "entity_id", e.id, "error", err)
		default:
			logger.Warn("entity value projection failed", "entity_id", e.id, "error", err)
		}
	}

	if e.Attributes != nil {
		attrs, err := e.Attributes()
		if err != nil {
			logger.Debug("entity attributes unavailable", "entity_id", e.id, "error", err)
		}
		if len(attrs) > 0 {
			s.Attributes = attrs
		}
	}

	// An unavailable entity keeps exposing the previous snapshot.
	if !s.Available {
		s.State = StateUnavailable
		if value != StateUnknown {
			s.LastKnown = value
		}
		return s
	}

	s.State = value
	return s
}

// CallService runs a named service on the entity.
func (e *Entity) CallService(ctx context.Context, service string, params map[string]any) error {
	fn, ok := e.Services[service]
	if !ok {
		return fmt.Errorf("%w: %s does not support %q", ErrUnknownService, e.id, service)
	}
	if !e.IsAvailable() {
		return fmt.Errorf("%w: %s", ErrUnavailable, e.id)
	}
	if params == nil {
		params = map[string]any{}
	}
	return fn(ctx, params)
}

func (e *Entity) displayName() string {
	switch {
	case e.Device.Name != "" && e.Description.Name != "":
		return e.Device.Name + " " + e.Description.Name
	case e.Description.Name != "":
		return e.Description.Name
	default:
		return e.Device.Name
	}
}

// FormatValue renders a projected value as a state string. Nil is unknown.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return StateUnknown
	case string:
		if val == "" {
			return StateUnknown
		}
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		if val {
			return "on"
		}
		return "off"
	case *float64:
		if val == nil {
			return StateUnknown
		}
		return strconv.FormatFloat(*val, 'f', -1, 64)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// Slugify converts a display name to an entity id object part:
// lower case, runs of non-alphanumerics collapsed to one underscore.
func Slugify(s string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// Round returns v rounded to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', decimals, 64), 64)
	if err != nil {
		return v
	}
	return p
}
