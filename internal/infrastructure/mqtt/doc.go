// Package mqtt provides the broker connection used by the Devialet bridge.
//
// This package manages:
//   - Connection to an MQTT broker with auto-reconnect
//   - Online/offline status with a Last Will for crash detection
//   - Publishing (raw and JSON) with QoS validation
//   - Subscriptions that survive reconnects
//   - Per-device topic builders (Topics)
//
// # Topic Layout
//
//	{prefix}/{device}/command        in   commands
//	{prefix}/{device}/ack            out  acknowledgements
//	{prefix}/{device}/state          out  full state, retained
//	{prefix}/{device}/entity/{name}  out  projected entities, retained
//	{prefix}/{device}/health         out  bridge health, retained
//	{prefix}/{device}/status         out  online/offline, LWT
//
// # Usage
//
//	topics := mqtt.NewTopics(cfg.Bridge.TopicPrefix, cfg.Device.ID)
//	client, err := mqtt.Connect(cfg.MQTT, topics.Status())
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
package mqtt
