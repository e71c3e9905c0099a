package lyric

// ChangeableValues are the writable settings of a thermostat.
type ChangeableValues struct {
	Mode                     string   `json:"mode"`
	AutoChangeoverActive     bool     `json:"autoChangeoverActive"`
	HeatSetpoint             *float64 `json:"heatSetpoint,omitempty"`
	CoolSetpoint             *float64 `json:"coolSetpoint,omitempty"`
	ThermostatSetpointStatus string   `json:"thermostatSetpointStatus,omitempty"`
	HeatCoolMode             string   `json:"heatCoolMode,omitempty"`
}

// OperationStatus reports what the equipment is currently doing.
type OperationStatus struct {
	Mode string `json:"mode"`
}

// Device is one device of a location. Only thermostats are exposed.
type Device struct {
	DeviceID           string           `json:"deviceID"`
	DeviceClass        string           `json:"deviceClass"`
	DeviceModel        string           `json:"deviceModel"`
	MacID              string           `json:"macID"`
	Name               string           `json:"userDefinedDeviceName"`
	IsAlive            bool             `json:"isAlive"`
	Units              string           `json:"units"`
	IndoorTemperature  *float64         `json:"indoorTemperature"`
	IndoorHumidity     *float64         `json:"indoorHumidity"`
	OutdoorTemperature *float64         `json:"outdoorTemperature"`
	AllowedModes       []string         `json:"allowedModes"`
	MinHeatSetpoint    *float64         `json:"minHeatSetpoint"`
	MaxHeatSetpoint    *float64         `json:"maxHeatSetpoint"`
	MinCoolSetpoint    *float64         `json:"minCoolSetpoint"`
	MaxCoolSetpoint    *float64         `json:"maxCoolSetpoint"`
	ChangeableValues   ChangeableValues `json:"changeableValues"`
	OperationStatus    OperationStatus  `json:"operationStatus"`
}

// IsThermostat reports whether the device is a thermostat.
func (d Device) IsThermostat() bool {
	return d.DeviceClass == "" || d.DeviceClass == deviceClassThermostat
}

// Location is a site with its devices.
type Location struct {
	LocationID int      `json:"locationID"`
	Name       string   `json:"name"`
	Devices    []Device `json:"devices"`
}

// Snapshot is one poll of all locations.
type Snapshot struct {
	Locations []Location
}

// Thermostat finds a device by id.
func (s *Snapshot) Thermostat(deviceID string) (Location, Device, bool) {
	if s == nil {
		return Location{}, Device{}, false
	}
	for _, loc := range s.Locations {
		for _, d := range loc.Devices {
			if d.DeviceID == deviceID {
				return loc, d, true
			}
		}
	}
	return Location{}, Device{}, false
}

const deviceClassThermostat = "Thermostat"

// Lyric system modes.
const (
	modeHeat = "Heat"
	modeCool = "Cool"
	modeOff  = "Off"
	modeAuto = "Auto"
)
