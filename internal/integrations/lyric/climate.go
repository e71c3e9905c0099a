package lyric

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/nerrad567/gray-logic-integrations/internal/coordinator"
	"github.com/nerrad567/gray-logic-integrations/internal/entity"
)

// Service names.
const (
	ServiceSetTemperature = "set_temperature"
	ServiceSetHVACMode    = "set_hvac_mode"
)

// HVAC modes as exposed on climate entities.
const (
	HVACModeOff      = "off"
	HVACModeHeat     = "heat"
	HVACModeCool     = "cool"
	HVACModeHeatCool = "heat_cool"
)

var (
	toHVACMode = map[string]string{
		modeOff:  HVACModeOff,
		modeHeat: HVACModeHeat,
		modeCool: HVACModeCool,
		modeAuto: HVACModeHeatCool,
	}
	fromHVACMode = map[string]string{
		HVACModeOff:      modeOff,
		HVACModeHeat:     modeHeat,
		HVACModeCool:     modeCool,
		HVACModeHeatCool: modeAuto,
	}
	toHVACAction = map[string]string{
		modeHeat:       "heating",
		modeCool:       "cooling",
		"EquipmentOff": "idle",
	}
)

const manufacturer = "Honeywell"

var climateDescription = entity.Description{
	Key:      "thermostat",
	Icon:     "mdi:thermostat",
	Platform: entity.PlatformClimate,
}

// thermostat binds one device id to the shared coordinator.
type thermostat struct {
	deviceID string
	c        *coordinator.Coordinator[*Snapshot]
	client   *Client
}

func (t *thermostat) current() (Location, Device, error) {
	s, _ := t.c.Data()
	loc, dev, ok := s.Thermostat(t.deviceID)
	if !ok {
		return Location{}, Device{}, fmt.Errorf("%w: thermostat %s", entity.ErrMissingField, t.deviceID)
	}
	return loc, dev, nil
}

func (t *thermostat) value() (any, error) {
	_, dev, err := t.current()
	if err != nil {
		return nil, err
	}
	mode, ok := toHVACMode[dev.ChangeableValues.Mode]
	if !ok {
		return nil, fmt.Errorf("%w: mode %q", entity.ErrMissingField, dev.ChangeableValues.Mode)
	}
	return mode, nil
}

func (t *thermostat) attributes() (map[string]any, error) {
	_, dev, err := t.current()
	if err != nil {
		return nil, err
	}

	cv := dev.ChangeableValues
	attrs := map[string]any{
		"temperature_unit": temperatureUnit(dev.Units),
		"hvac_modes":       hvacModes(dev.AllowedModes),
		"setpoint_status":  cv.ThermostatSetpointStatus,
	}
	setIf(attrs, "current_temperature", dev.IndoorTemperature)
	setIf(attrs, "current_humidity", dev.IndoorHumidity)
	setIf(attrs, "outdoor_temperature", dev.OutdoorTemperature)
	if action, ok := toHVACAction[dev.OperationStatus.Mode]; ok {
		attrs["hvac_action"] = action
	}

	switch cv.Mode {
	case modeHeat:
		setIf(attrs, "target_temperature", cv.HeatSetpoint)
		setIf(attrs, "min_temp", dev.MinHeatSetpoint)
		setIf(attrs, "max_temp", dev.MaxHeatSetpoint)
	case modeCool:
		setIf(attrs, "target_temperature", cv.CoolSetpoint)
		setIf(attrs, "min_temp", dev.MinCoolSetpoint)
		setIf(attrs, "max_temp", dev.MaxCoolSetpoint)
	case modeAuto:
		setIf(attrs, "target_temp_low", cv.HeatSetpoint)
		setIf(attrs, "target_temp_high", cv.CoolSetpoint)
		setIf(attrs, "min_temp", dev.MinHeatSetpoint)
		setIf(attrs, "max_temp", dev.MaxCoolSetpoint)
	}
	return attrs, nil
}

// setTemperature takes "temperature" in heat or cool mode, and
// "target_temp_low"/"target_temp_high" in auto mode.
func (t *thermostat) setTemperature(ctx context.Context, params map[string]any) error {
	loc, dev, err := t.current()
	if err != nil {
		return err
	}

	cv := dev.ChangeableValues
	switch cv.Mode {
	case modeAuto:
		low, lowErr := floatParam(params, "target_temp_low")
		high, highErr := floatParam(params, "target_temp_high")
		if lowErr != nil || highErr != nil {
			return fmt.Errorf("%w: target_temp_low and target_temp_high are required in %s mode", ErrInvalidRequest, HVACModeHeatCool)
		}
		if low > high {
			return fmt.Errorf("%w: target_temp_low is above target_temp_high", ErrInvalidRequest)
		}
		cv.HeatSetpoint, cv.CoolSetpoint = &low, &high
	case modeHeat, modeCool:
		temp, err := floatParam(params, "temperature")
		if err != nil {
			return err
		}
		if cv.Mode == modeHeat {
			cv.HeatSetpoint = &temp
		} else {
			cv.CoolSetpoint = &temp
		}
	default:
		return fmt.Errorf("%w: cannot set a temperature while %s", ErrInvalidRequest, HVACModeOff)
	}
	cv.ThermostatSetpointStatus = "TemporaryHold"
	return t.write(ctx, loc, dev, cv)
}

func (t *thermostat) setHVACMode(ctx context.Context, params map[string]any) error {
	loc, dev, err := t.current()
	if err != nil {
		return err
	}

	requested, _ := params["hvac_mode"].(string)
	mode, ok := fromHVACMode[requested]
	if !ok || !allowed(dev.AllowedModes, mode) {
		return fmt.Errorf("%w: hvac_mode %q", ErrInvalidRequest, requested)
	}

	cv := dev.ChangeableValues
	cv.Mode = mode
	cv.AutoChangeoverActive = mode == modeAuto
	return t.write(ctx, loc, dev, cv)
}

// write sends the change and refreshes so the entity shows it.
func (t *thermostat) write(ctx context.Context, loc Location, dev Device, cv ChangeableValues) error {
	if err := t.client.UpdateThermostat(ctx, loc.LocationID, dev.DeviceID, cv); err != nil {
		return err
	}
	return t.c.Refresh(ctx)
}

func buildEntities(c *coordinator.Coordinator[*Snapshot], client *Client) []*entity.Entity {
	first, _ := c.Data()
	var entities []*entity.Entity
	for _, loc := range first.Locations {
		for _, dev := range loc.Devices {
			if !dev.IsThermostat() {
				continue
			}
			t := &thermostat{deviceID: dev.DeviceID, c: c, client: client}
			entities = append(entities, &entity.Entity{
				Domain:      Domain,
				UniqueID:    dev.MacID + "_" + climateDescription.Key,
				Description: climateDescription,
				Device: entity.DeviceInfo{
					Identifiers:  []entity.Identifier{{Domain: Domain, ID: dev.MacID}},
					Manufacturer: manufacturer,
					Model:        dev.DeviceModel,
					Name:         dev.Name,
				},
				Value:      t.value,
				Attributes: t.attributes,
				Available: func() bool {
					if !c.LastUpdateSuccess() {
						return false
					}
					_, d, err := t.current()
					return err == nil && d.IsAlive
				},
				LastUpdated: c.LastUpdate,
				Services: map[string]entity.ServiceFunc{
					ServiceSetTemperature: t.setTemperature,
					ServiceSetHVACMode:    t.setHVACMode,
				},
			})
		}
	}
	return entities
}

func temperatureUnit(units string) string {
	if units == "Fahrenheit" {
		return "°F"
	}
	return "°C"
}

func hvacModes(allowedModes []string) []string {
	modes := make([]string, 0, len(allowedModes))
	for _, m := range allowedModes {
		if hm, ok := toHVACMode[m]; ok {
			modes = append(modes, hm)
		}
	}
	return modes
}

func allowed(allowedModes []string, mode string) bool {
	return len(allowedModes) == 0 || slices.Contains(allowedModes, mode)
}

func setIf(attrs map[string]any, key string, v *float64) {
	if v != nil {
		attrs[key] = *v
	}
}

func floatParam(params map[string]any, key string) (float64, error) {
	switch v := params[key].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidRequest, key)
}
