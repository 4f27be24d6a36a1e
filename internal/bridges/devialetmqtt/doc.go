// Package devialetmqtt exposes one Devialet speaker over MQTT.
//
// The bridge sits between the polling coordinator and the broker:
//
//	┌──────────────┐  MQTT  ┌──────────────┐  Poll / Execute  ┌─────────────┐
//	│  Home hub /  │◄──────►│    Bridge    │◄────────────────►│ Coordinator │──► speaker
//	│  dashboards  │        │  (this pkg)  │                  └─────────────┘
//	└──────────────┘        └──────────────┘
//
// # Topics
//
// All topics sit under {prefix}/{device_id} (see mqtt.Topics):
//
//   - command: inbound CommandMessage, acknowledged on ack
//   - state: full DeviceState, retained, published on change
//   - entity/{name}: one retained value per projected entity
//   - info: DeviceInfo, retained
//   - health: HealthMessage, retained, every health interval
//
// # Acknowledgements
//
// Every command gets exactly one ack. Commands rejected before reaching
// the speaker (bad parameters, unsupported feature) are acked "rejected";
// commands the speaker failed or never received are acked "failed".
//
// # Thread Safety
//
// All exported types are safe for concurrent use.
package devialetmqtt
