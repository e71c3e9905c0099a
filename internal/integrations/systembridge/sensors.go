package systembridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-integrations/internal/coordinator"
	"github.com/nerrad567/gray-logic-integrations/internal/entity"
)

// Service names.
const (
	ServiceOpen        = "open"
	ServiceSendCommand = "send_command"
)

// projection reads one value out of a snapshot.
type projection func(s *Snapshot) (any, error)

// attributeProjection reads extra attributes out of a snapshot.
type attributeProjection func(s *Snapshot) (map[string]any, error)

type sensorKind struct {
	desc  entity.Description
	value projection
	attrs attributeProjection
}

func missing(field string) error {
	return fmt.Errorf("%w: %s", entity.ErrMissingField, field)
}

func floatValue(v *float64, field string, decimals int) (any, error) {
	if v == nil {
		return nil, missing(field)
	}
	return entity.Round(*v, decimals), nil
}

var (
	osSensor = sensorKind{
		desc: entity.Description{Key: "os", Name: "Operating System", Icon: "mdi:devices", Platform: entity.PlatformSensor},
		value: func(s *Snapshot) (any, error) {
			if s.OS == nil || s.OS.Distro == "" {
				return nil, missing("os.distro")
			}
			return strings.TrimSpace(s.OS.Distro + " " + s.OS.Release), nil
		},
		attrs: func(s *Snapshot) (map[string]any, error) {
			if s.OS == nil {
				return nil, missing("os")
			}
			return map[string]any{
				"arch":     s.OS.Arch,
				"build":    s.OS.Build,
				"codename": s.OS.Codename,
				"fqdn":     s.OS.FQDN,
				"hostname": s.OS.Hostname,
				"kernel":   s.OS.Kernel,
				"platform": s.OS.Platform,
			}, nil
		},
	}

	cpuLoadSensor = sensorKind{
		desc: entity.Description{Key: "cpu_load", Name: "CPU Load", Icon: "mdi:percent", Unit: "%", Platform: entity.PlatformSensor},
		value: func(s *Snapshot) (any, error) {
			if s.Processes == nil {
				return nil, missing("processes")
			}
			return floatValue(s.Processes.Load.CurrentLoad, "processes.load.currentLoad", 2)
		},
		attrs: func(s *Snapshot) (map[string]any, error) {
			if s.Processes == nil {
				return nil, missing("processes")
			}
			attrs := map[string]any{}
			load := s.Processes.Load
			for name, v := range map[string]*float64{
				"load_average": load.AvgLoad,
				"load_user":    load.CurrentLoadUser,
				"load_system":  load.CurrentLoadSystem,
				"load_idle":    load.CurrentLoadIdle,
			} {
				if v != nil {
					attrs[name] = entity.Round(*v, 2)
				}
			}
			return attrs, nil
		},
	}

	cpuSpeedSensor = sensorKind{
		desc: entity.Description{Key: "cpu_speed", Name: "CPU Speed", Icon: "mdi:speedometer", Unit: "GHz", Platform: entity.PlatformSensor},
		value: func(s *Snapshot) (any, error) {
			if s.CPU == nil {
				return nil, missing("cpu")
			}
			return floatValue(s.CPU.CurrentSpeed.Avg, "cpu.currentSpeed.avg", 2)
		},
		attrs: func(s *Snapshot) (map[string]any, error) {
			if s.CPU == nil {
				return nil, missing("cpu")
			}
			return map[string]any{
				"brand":        s.CPU.CPU.Brand,
				"manufacturer": s.CPU.CPU.Manufacturer,
				"cores":        s.CPU.CPU.Cores,
				"base_speed":   s.CPU.CPU.Speed,
			}, nil
		},
	}

	cpuTemperatureSensor = sensorKind{
		desc: entity.Description{
			Key: "cpu_temperature", Name: "CPU Temperature", Icon: "mdi:thermometer",
			DeviceClass: "temperature", Unit: "°C", Platform: entity.PlatformSensor,
		},
		value: func(s *Snapshot) (any, error) {
			if s.CPU == nil {
				return nil, missing("cpu")
			}
			return floatValue(s.CPU.Temperature.Main, "cpu.temperature.main", 1)
		},
	}

	processesSensor = sensorKind{
		desc: entity.Description{Key: "processes", Name: "Processes", Icon: "mdi:format-list-numbered", Platform: entity.PlatformSensor},
		value: func(s *Snapshot) (any, error) {
			if s.Processes == nil || s.Processes.All == nil {
				return nil, missing("processes.all")
			}
			return *s.Processes.All, nil
		},
		attrs: func(s *Snapshot) (map[string]any, error) {
			if s.Processes == nil {
				return nil, missing("processes")
			}
			return map[string]any{
				"running":  s.Processes.Running,
				"blocked":  s.Processes.Blocked,
				"sleeping": s.Processes.Sleeping,
			}, nil
		},
	}

	batterySensor = sensorKind{
		desc: entity.Description{Key: "battery", Name: "Battery", DeviceClass: "battery", Unit: "%", Platform: entity.PlatformSensor},
		value: func(s *Snapshot) (any, error) {
			if s.Battery == nil {
				return nil, missing("battery")
			}
			return floatValue(s.Battery.Percent, "battery.percent", 0)
		},
		attrs: func(s *Snapshot) (map[string]any, error) {
			if s.Battery == nil {
				return nil, missing("battery")
			}
			return map[string]any{"is_charging": s.Battery.IsCharging}, nil
		},
	}

	batteryTimeRemainingSensor = sensorKind{
		desc: entity.Description{Key: "battery_time_remaining", Name: "Battery Time Remaining", Icon: "mdi:timer-sand", Unit: "min", Platform: entity.PlatformSensor},
		value: func(s *Snapshot) (any, error) {
			if s.Battery == nil {
				return nil, missing("battery")
			}
			// The bridge reports a negative value while charging.
			if s.Battery.TimeRemaining != nil && *s.Battery.TimeRemaining < 0 {
				return nil, missing("battery.timeRemaining")
			}
			return floatValue(s.Battery.TimeRemaining, "battery.timeRemaining", 0)
		},
	}
)

func filesystemSensor(mount string) sensorKind {
	key := "filesystem_" + entity.Slugify(mount)
	if mount == "/" {
		key = "filesystem_root"
	}
	return sensorKind{
		desc: entity.Description{
			Key: key, Name: mount + " Space Used", Icon: "mdi:harddisk", Unit: "%", Platform: entity.PlatformSensor,
		},
		value: func(s *Snapshot) (any, error) {
			fs, ok := s.Filesystem.Mount(mount)
			if !ok {
				return nil, missing("filesystem " + mount)
			}
			return floatValue(fs.Use, "filesystem "+mount+" use", 2)
		},
		attrs: func(s *Snapshot) (map[string]any, error) {
			fs, ok := s.Filesystem.Mount(mount)
			if !ok {
				return nil, missing("filesystem " + mount)
			}
			return map[string]any{
				"mount":     fs.Mount,
				"fs":        fs.FS,
				"type":      fs.Type,
				"size":      fs.Size,
				"used":      fs.Used,
				"available": fs.Available,
			}, nil
		},
	}
}

// sensorKinds returns the sensors the first snapshot supports.
func sensorKinds(s *Snapshot) []sensorKind {
	kinds := []sensorKind{osSensor, cpuLoadSensor, cpuSpeedSensor, cpuTemperatureSensor, processesSensor}
	if s.Battery != nil && s.Battery.HasBattery {
		kinds = append(kinds, batterySensor, batteryTimeRemainingSensor)
	}
	if s.Filesystem != nil {
		for _, fs := range s.Filesystem.FSSize {
			if fs.Mount != "" {
				kinds = append(kinds, filesystemSensor(fs.Mount))
			}
		}
	}
	return kinds
}

// deviceInfo groups all sensors of one bridge under its MAC.
func deviceInfo(s *Snapshot, mac string) entity.DeviceInfo {
	d := entity.DeviceInfo{
		Connections: []entity.Connection{{Type: entity.ConnectionMAC, Value: mac}},
	}
	if s.OS != nil {
		d.Name = s.OS.Hostname
	}
	if s.System != nil {
		d.Manufacturer = s.System.System.Manufacturer
		d.Model = s.System.System.Model
		d.SWVersion = s.System.System.Version
	}
	return d
}

// buildEntities creates one entity per sensor kind, reading from c.
func buildEntities(c *coordinator.Coordinator[*Snapshot], client *Client, uniquePrefix string) []*entity.Entity {
	first, _ := c.Data()
	device := deviceInfo(first, uniquePrefix)

	kinds := sensorKinds(first)
	entities := make([]*entity.Entity, 0, len(kinds))
	for _, k := range kinds {
		e := &entity.Entity{
			Domain:      Domain,
			UniqueID:    uniquePrefix + "_" + k.desc.Key,
			Description: k.desc,
			Device:      device,
			Value:       snapshotValue(c, k.value),
			Available:   c.LastUpdateSuccess,
			LastUpdated: c.LastUpdate,
		}
		if k.attrs != nil {
			e.Attributes = snapshotAttrs(c, k.attrs)
		}
		if k.desc.Key == osSensor.desc.Key {
			e.Services = services(client)
		}
		entities = append(entities, e)
	}
	return entities
}

func snapshotValue(c *coordinator.Coordinator[*Snapshot], p projection) entity.ValueFunc {
	return func() (any, error) {
		s, ok := c.Data()
		if !ok || s == nil {
			return nil, missing("snapshot")
		}
		return p(s)
	}
}

func snapshotAttrs(c *coordinator.Coordinator[*Snapshot], p attributeProjection) entity.AttributesFunc {
	return func() (map[string]any, error) {
		s, ok := c.Data()
		if !ok || s == nil {
			return nil, missing("snapshot")
		}
		return p(s)
	}
}

func services(client *Client) map[string]entity.ServiceFunc {
	return map[string]entity.ServiceFunc{
		ServiceOpen: func(ctx context.Context, params map[string]any) error {
			return client.Open(ctx, OpenRequest{
				Path: stringParam(params, "path"),
				URL:  stringParam(params, "url"),
			})
		},
		ServiceSendCommand: func(ctx context.Context, params map[string]any) error {
			return client.Command(ctx, CommandRequest{
				Command:   stringParam(params, "command"),
				Arguments: stringsParam(params, "arguments"),
			})
		},
	}
}

func stringParam(params map[string]any, key string) string {
	s, _ := params[key].(string)
	return s
}

func stringsParam(params map[string]any, key string) []string {
	switch v := params[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, a := range v {
			out = append(out, fmt.Sprint(a))
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return strings.Fields(v)
	default:
		return nil
	}
}
