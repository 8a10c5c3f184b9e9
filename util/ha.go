package util

import (
	"encoding/json"
	"fmt"

	MQTT "github.com/eclipse/paho.mqtt.golang"
)

type HAAvdvertisementAvailability struct {
	Topic               string `json:"topic"`                 // : "hab/presence/online"
	PayloadAvailable    string `json:"payload_available"`     // : "online"
	PayloadNotAvailable string `json:"payload_not_available"` // : "offline"
}

type HADeviceSpec struct {
	Name        string   `json:"name"` // : "Presence Controller"
	Identifiers []string `json:"ids"`  // : ["presence_controller"]
}

type HAAdvertisement struct { //nolint:govet // struct layout optimized for JSON field order
	HAAvdvertisementAvailability []HAAvdvertisementAvailability `json:"availability"`
	Device                       HADeviceSpec                   `json:"device"`       // Device info
	UniqueID                     string                         `json:"uniq_id"`      // "presence-hallway-motion"
	Name                         string                         `json:"name"`         // : "hallway motion"
	StateTopic                   string                         `json:"state_topic"`  // : "hab/presence/hallway/motion"
	CommandTopic                 string                         `json:"command_topic,omitempty"` // switches only
	PayloadOn                    string                         `json:"payload_on"`   // : "true"
	PayloadOff                   string                         `json:"payload_off"`
	DeviceClass                  string                         `json:"device_class,omitempty"` // : "motion" / "occupancy"
	Platform                     string                         `json:"platform"`               // "binary_sensor" / "switch"
	Qos                          int                            `json:"qos"`
}

func (ha HAAdvertisement) ToJson() string {
	data, err := json.Marshal(ha)
	if err != nil {
		Logger.Error().Msgf("Error marshalling HAAdvertisement: %v", err)
		return ""
	}
	return string(data)
}

func haAvailability() []HAAvdvertisementAvailability {
	return []HAAvdvertisementAvailability{
		{
			Topic:               OnlineTopic(),
			PayloadAvailable:    "online",
			PayloadNotAvailable: "offline",
		},
	}
}

func haDevice() HADeviceSpec {
	return HADeviceSpec{
		Name:        "presence_controller",
		Identifiers: []string{"presence_controller"},
	}
}

// ConstructSensorAdvertisement builds a binary_sensor discovery payload for a
// motion or occupancy signal.
func ConstructSensorAdvertisement(name, stateTopic, deviceClass string) HAAdvertisement {
	return HAAdvertisement{
		Name:                         name,
		StateTopic:                   stateTopic,
		PayloadOn:                    "true",
		PayloadOff:                   "false",
		HAAvdvertisementAvailability: haAvailability(),
		Qos:                          0,
		UniqueID:                     "presence-" + deviceClass + "-" + name,
		DeviceClass:                  deviceClass,
		Platform:                     "binary_sensor",
		Device:                       haDevice(),
	}
}

// ConstructSwitchAdvertisement builds a switch discovery payload for a trigger
// channel so external actors can fire it from the HA dashboard.
func ConstructSwitchAdvertisement(name, stateTopic, commandTopic string) HAAdvertisement {
	return HAAdvertisement{
		Name:                         name,
		StateTopic:                   stateTopic,
		CommandTopic:                 commandTopic,
		PayloadOn:                    "true",
		PayloadOff:                   "false",
		HAAvdvertisementAvailability: haAvailability(),
		Qos:                          0,
		UniqueID:                     "presence-trigger-" + name,
		Platform:                     "switch",
		Device:                       haDevice(),
	}
}

func advertise(client MQTT.Client, configTopic string, ha HAAdvertisement) {
	if token := client.Publish(configTopic, 0, false, ha.ToJson()); token.Wait() && token.Error() != nil {
		Logger.Panic().Msgf("Error Publishing: %v", fmt.Errorf("%v", token.Error()))
	}
}

// AdvertiseHA publishes Home Assistant discovery configs for every signal and
// trigger switch of every group.
func AdvertiseHA(groups []Group, client MQTT.Client) {
	for _, group := range groups {
		advertise(client, "homeassistant/switch/"+group.Name+"/trigger/config",
			ConstructSwitchAdvertisement(group.Name+" trigger", group.TriggerStateTopic(), group.TriggerCommandTopic()))
		switch group.Mode {
		case MODE_FANOUT:
			for _, trigger := range group.Triggers {
				advertise(client, "homeassistant/binary_sensor/"+group.Name+"_"+trigger.Name+"/occupancy/config",
					ConstructSensorAdvertisement(group.Name+" "+trigger.Name, group.FanoutOccupancyTopic(trigger.Name), "occupancy"))
			}
		default:
			advertise(client, "homeassistant/binary_sensor/"+group.Name+"/motion/config",
				ConstructSensorAdvertisement(group.Name+" motion", group.MotionTopic(), "motion"))
			advertise(client, "homeassistant/binary_sensor/"+group.Name+"/occupancy/config",
				ConstructSensorAdvertisement(group.Name+" occupancy", group.OccupancyTopic(), "occupancy"))
			if group.Mode == MODE_DUAL {
				advertise(client, "homeassistant/switch/"+group.Name+"/occupancy_trigger/config",
					ConstructSwitchAdvertisement(group.Name+" occupancy trigger", group.OccupancyTriggerStateTopic(), group.OccupancyTriggerCommandTopic()))
			}
		}
	}
}
