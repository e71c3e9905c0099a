package systembridge

// OS is the /os response.
type OS struct {
	Platform    string `json:"platform"`
	Distro      string `json:"distro"`
	Release     string `json:"release"`
	Codename    string `json:"codename"`
	Kernel      string `json:"kernel"`
	Arch        string `json:"arch"`
	Hostname    string `json:"hostname"`
	FQDN        string `json:"fqdn"`
	Build       string `json:"build"`
	ServicePack string `json:"servicepack"`
	UEFI        bool   `json:"uefi"`
}

// NetworkInterface is one entry of Network.Interfaces.
type NetworkInterface struct {
	Iface     string `json:"iface"`
	IfaceName string `json:"ifaceName"`
	IP4       string `json:"ip4"`
	MAC       string `json:"mac"`
}

// Network is the /network response.
type Network struct {
	GatewayDefault   string                      `json:"gatewayDefault"`
	InterfaceDefault string                      `json:"interfaceDefault"`
	Interfaces       map[string]NetworkInterface `json:"interfaces"`
}

// DefaultMAC returns the MAC address of the default interface.
func (n *Network) DefaultMAC() (string, bool) {
	if n == nil {
		return "", false
	}
	iface, ok := n.Interfaces[n.InterfaceDefault]
	if !ok || iface.MAC == "" {
		return "", false
	}
	return iface.MAC, true
}

// CPUInfo is the static processor description.
type CPUInfo struct {
	Manufacturer string  `json:"manufacturer"`
	Brand        string  `json:"brand"`
	Speed        float64 `json:"speed"`
	Cores        int     `json:"cores"`
}

// CPUSpeed is the current clock in GHz.
type CPUSpeed struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
	Avg *float64 `json:"avg"`
}

// CPUTemperature is in degrees Celsius.
type CPUTemperature struct {
	Main *float64 `json:"main"`
	Max  *float64 `json:"max"`
}

// CPU is the /cpu response.
type CPU struct {
	CPU          CPUInfo        `json:"cpu"`
	CurrentSpeed CPUSpeed       `json:"currentSpeed"`
	Temperature  CPUTemperature `json:"temperature"`
}

// Battery is the /battery response. TimeRemaining is in minutes.
type Battery struct {
	HasBattery    bool     `json:"hasBattery"`
	IsCharging    bool     `json:"isCharging"`
	Percent       *float64 `json:"percent"`
	TimeRemaining *float64 `json:"timeRemaining"`
}

// FilesystemSize is one mounted filesystem. Sizes are in bytes, Use in
// percent.
type FilesystemSize struct {
	FS        string   `json:"fs"`
	Type      string   `json:"type"`
	Size      float64  `json:"size"`
	Used      float64  `json:"used"`
	Available float64  `json:"available"`
	Use       *float64 `json:"use"`
	Mount     string   `json:"mount"`
}

// Filesystem is the /filesystem response.
type Filesystem struct {
	FSSize []FilesystemSize `json:"fsSize"`
}

// Mount returns the filesystem mounted at mount.
func (f *Filesystem) Mount(mount string) (FilesystemSize, bool) {
	if f == nil {
		return FilesystemSize{}, false
	}
	for _, fs := range f.FSSize {
		if fs.Mount == mount {
			return fs, true
		}
	}
	return FilesystemSize{}, false
}

// ProcessLoad is the CPU load in percent.
type ProcessLoad struct {
	AvgLoad           *float64 `json:"avgLoad"`
	CurrentLoad       *float64 `json:"currentLoad"`
	CurrentLoadUser   *float64 `json:"currentLoadUser"`
	CurrentLoadSystem *float64 `json:"currentLoadSystem"`
	CurrentLoadIdle   *float64 `json:"currentLoadIdle"`
}

// Processes is the /processes response.
type Processes struct {
	Load     ProcessLoad `json:"load"`
	All      *int        `json:"all"`
	Running  int         `json:"running"`
	Blocked  int         `json:"blocked"`
	Sleeping int         `json:"sleeping"`
}

// SystemInfo identifies the machine.
type SystemInfo struct {
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	Version      string `json:"version"`
	Serial       string `json:"serial"`
	UUID         string `json:"uuid"`
}

// System is the /system response.
type System struct {
	System SystemInfo `json:"system"`
}

// Snapshot is one complete poll of the bridge.
type Snapshot struct {
	Battery    *Battery
	CPU        *CPU
	Filesystem *Filesystem
	Network    *Network
	OS         *OS
	Processes  *Processes
	System     *System
}

// OpenRequest is the body of POST /open. Exactly one field is set.
type OpenRequest struct {
	Path string `json:"path,omitempty"`
	URL  string `json:"url,omitempty"`
}

// CommandRequest is the body of POST /command.
type CommandRequest struct {
	Command   string   `json:"command"`
	Arguments []string `json:"arguments"`
}
