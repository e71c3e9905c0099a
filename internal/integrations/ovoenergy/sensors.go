package ovoenergy

import (
	"fmt"

	"github.com/nerrad567/gray-logic-integrations/internal/coordinator"
	"github.com/nerrad567/gray-logic-integrations/internal/entity"
)

const (
	iconPower = "mdi:flash"
	iconGas   = "mdi:fire"
	iconCost  = "mdi:cash"

	unitKWh = "kWh"
)

type sensorKind struct {
	desc  entity.Description
	value func(s *Snapshot) (any, error)
	attrs func(s *Snapshot) (map[string]any, error)
}

func missing(field string) error {
	return fmt.Errorf("%w: %s", entity.ErrMissingField, field)
}

func consumption(series func(*Snapshot) *Series, field string) func(*Snapshot) (any, error) {
	return func(s *Snapshot) (any, error) {
		r, ok := series(s).Last()
		if !ok {
			return nil, missing(field)
		}
		return entity.Round(*r.Consumption, 3), nil
	}
}

func readingAttrs(series func(*Snapshot) *Series, field string) func(*Snapshot) (map[string]any, error) {
	return func(s *Snapshot) (map[string]any, error) {
		r, ok := series(s).Last()
		if !ok {
			return nil, missing(field)
		}
		attrs := map[string]any{
			"start": r.Interval.Start,
			"end":   r.Interval.End,
		}
		if v, ok := r.Cost.Value(); ok {
			attrs["cost"] = v
			attrs["currency"] = r.Cost.CurrencyUnit
		}
		return attrs, nil
	}
}

func dailyElectricity(s *Snapshot) *Series {
	if s.Daily == nil {
		return nil
	}
	return s.Daily.Electricity
}

func dailyGas(s *Snapshot) *Series {
	if s.Daily == nil {
		return nil
	}
	return s.Daily.Gas
}

func halfHourlyElectricity(s *Snapshot) *Series {
	if s.HalfHourly == nil {
		return nil
	}
	return s.HalfHourly.Electricity
}

var (
	electricityLastDay = sensorKind{
		desc: entity.Description{
			Key: "electricity_last_day", Name: "Last Day Electricity Consumption",
			Icon: iconPower, DeviceClass: "energy", Unit: unitKWh, Platform: entity.PlatformSensor,
		},
		value: consumption(dailyElectricity, "daily electricity"),
		attrs: readingAttrs(dailyElectricity, "daily electricity"),
	}

	gasLastDay = sensorKind{
		desc: entity.Description{
			Key: "gas_last_day", Name: "Last Day Gas Consumption",
			Icon: iconGas, DeviceClass: "energy", Unit: unitKWh, Platform: entity.PlatformSensor,
		},
		value: consumption(dailyGas, "daily gas"),
		attrs: readingAttrs(dailyGas, "daily gas"),
	}

	electricityHalfHour = sensorKind{
		desc: entity.Description{
			Key: "electricity_half_hour", Name: "Latest Half Hour Electricity Consumption",
			Icon: iconPower, DeviceClass: "energy", Unit: unitKWh, Platform: entity.PlatformSensor,
		},
		value: consumption(halfHourlyElectricity, "half-hourly electricity"),
		attrs: readingAttrs(halfHourlyElectricity, "half-hourly electricity"),
	}
)

// costLastDay sums the electricity and gas cost of the last day. The unit
// is the currency of the first priced reading.
func costLastDay(unit string) sensorKind {
	return sensorKind{
		desc: entity.Description{
			Key: "cost_last_day", Name: "Last Day Cost",
			Icon: iconCost, DeviceClass: "monetary", Unit: unit, Platform: entity.PlatformSensor,
		},
		value: func(s *Snapshot) (any, error) {
			total, priced := 0.0, false
			for _, series := range []*Series{dailyElectricity(s), dailyGas(s)} {
				r, ok := series.Last()
				if !ok {
					continue
				}
				if v, ok := r.Cost.Value(); ok {
					total += v
					priced = true
				}
			}
			if !priced {
				return nil, missing("daily cost")
			}
			return entity.Round(total, 2), nil
		},
	}
}

func currency(s *Snapshot) string {
	for _, series := range []*Series{dailyElectricity(s), dailyGas(s)} {
		if r, ok := series.Last(); ok && r.Cost != nil && r.Cost.CurrencyUnit != "" {
			return r.Cost.CurrencyUnit
		}
	}
	return "GBP"
}

// buildEntities creates the sensors for the fuels the account reports.
func buildEntities(c *coordinator.Coordinator[*Snapshot], account, name string) []*entity.Entity {
	first, _ := c.Data()

	kinds := []sensorKind{electricityLastDay, electricityHalfHour}
	if _, ok := dailyGas(first).Last(); ok {
		kinds = append(kinds, gasLastDay)
	}
	kinds = append(kinds, costLastDay(currency(first)))

	device := entity.DeviceInfo{
		Identifiers:  []entity.Identifier{{Domain: Domain, ID: account}},
		Manufacturer: "OVO Energy",
		Name:         name,
	}

	entities := make([]*entity.Entity, 0, len(kinds))
	for _, k := range kinds {
		e := &entity.Entity{
			Domain:      Domain,
			UniqueID:    account + "_" + k.desc.Key,
			Description: k.desc,
			Device:      device,
			Value:       project(c, k.value),
			Available:   c.LastUpdateSuccess,
			LastUpdated: c.LastUpdate,
		}
		if k.attrs != nil {
			e.Attributes = projectAttrs(c, k.attrs)
		}
		entities = append(entities, e)
	}
	return entities
}

func project(c *coordinator.Coordinator[*Snapshot], fn func(*Snapshot) (any, error)) entity.ValueFunc {
	return func() (any, error) {
		s, ok := c.Data()
		if !ok || s == nil {
			return nil, missing("snapshot")
		}
		return fn(s)
	}
}

func projectAttrs(c *coordinator.Coordinator[*Snapshot], fn func(*Snapshot) (map[string]any, error)) entity.AttributesFunc {
	return func() (map[string]any, error) {
		s, ok := c.Data()
		if !ok || s == nil {
			return nil, missing("snapshot")
		}
		return fn(s)
	}
}
