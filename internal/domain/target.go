package domain

// VMTarget is one machine submitted for scanning: an address plus an
// OS-family descriptor. Targets come from an external inventory source.
type VMTarget struct {
	Name     string   `json:"name" yaml:"name"`
	IP       string   `json:"ip" yaml:"ip"`
	OSFamily OSFamily `json:"os_family" yaml:"os_family"`
}
