package mqtt

import (
	"fmt"
	"strings"
)

// Topics builds the MQTT topics owned by one bridged device.
//
// Every topic lives under {Prefix}/{DeviceID}:
//
//	graylogic/devialet/lounge/command          inbound commands
//	graylogic/devialet/lounge/ack              command acknowledgements
//	graylogic/devialet/lounge/state            full device state (retained)
//	graylogic/devialet/lounge/info             device identity (retained)
//	graylogic/devialet/lounge/entity/volume    one projected entity (retained)
//	graylogic/devialet/lounge/health           bridge health (retained)
//	graylogic/devialet/lounge/status           online/offline, carries the LWT
type Topics struct {
	Prefix   string
	DeviceID string
}

// NewTopics returns a Topics with surrounding slashes trimmed from prefix.
func NewTopics(prefix, deviceID string) Topics {
	return Topics{
		Prefix:   strings.Trim(prefix, "/"),
		DeviceID: deviceID,
	}
}

func (t Topics) base() string {
	return fmt.Sprintf("%s/%s", t.Prefix, t.DeviceID)
}

// Command returns the topic the bridge subscribes to for commands.
func (t Topics) Command() string {
	return t.base() + "/command"
}

// Ack returns the topic command acknowledgements are published to.
func (t Topics) Ack() string {
	return t.base() + "/ack"
}

// State returns the retained full-state topic.
func (t Topics) State() string {
	return t.base() + "/state"
}

// Info returns the retained device identity topic.
func (t Topics) Info() string {
	return t.base() + "/info"
}

// Entity returns the retained topic for a single projected entity.
//
// Example: graylogic/devialet/lounge/entity/night_mode
func (t Topics) Entity(name string) string {
	return fmt.Sprintf("%s/entity/%s", t.base(), name)
}

// AllEntities is a wildcard over every entity topic for the device.
func (t Topics) AllEntities() string {
	return t.base() + "/entity/+"
}

// Health returns the retained bridge health topic.
func (t Topics) Health() string {
	return t.base() + "/health"
}

// Status returns the online/offline topic used for the Last Will.
func (t Topics) Status() string {
	return t.base() + "/status"
}

// All is a wildcard matching every topic for the device.
func (t Topics) All() string {
	return t.base() + "/#"
}
