package model

// Port is a fish-landing location.
// Keep these values stable; they are the top-level keys of the persisted JSON.
type Port string

const (
	PortYaizu      Port = "焼津"
	PortMakurazaki Port = "枕崎"
	PortYamagawa   Port = "山川"
)

// Ports lists every known landing port in display order.
var Ports = []Port{PortYaizu, PortMakurazaki, PortYamagawa}

func (p Port) Valid() bool {
	for _, known := range Ports {
		if p == known {
			return true
		}
	}
	return false
}

func (p Port) String() string { return string(p) }
