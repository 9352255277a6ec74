package domain

import (
	"crypto/rand"
	"fmt"
)

// DeviceInfo describes the local device as advertised to peers.
type DeviceInfo struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	// PrimaryDeviceType in the WPS "categ-OUI-subcateg" form.
	PrimaryDeviceType string     `json:"primary_device_type"`
	WpsConfigMethods  uint16     `json:"wps_config_methods"`
	Status            PeerStatus `json:"status"`
	// GroupOwner is set while this device operates a group in the owner
	// role.
	GroupOwner bool `json:"group_owner"`
}

// DefaultDeviceName derives a default advertised name with a short
// random suffix, used until the user picks one.
func DefaultDeviceName(prefix string) string {
	if prefix == "" {
		prefix = "DIRECT-GO-"
	}
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		return prefix + "0000"
	}
	return fmt.Sprintf("%s%02x%02x", prefix, b[0], b[1])
}

// ValidDeviceName bounds the advertised name to the WPS field limit.
func ValidDeviceName(name string) bool {
	return name != "" && len(name) <= 32
}
