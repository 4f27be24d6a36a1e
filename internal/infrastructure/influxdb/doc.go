// Package influxdb records Devialet state telemetry in InfluxDB v2.
//
// It wraps the official influxdb-client-go v2 library. Points are written
// through the non-blocking WriteAPI and batched; write failures arrive on
// the SetOnError callback rather than as return values.
//
// # Measurements
//
//   - devialet_state: volume, muted, playing, eq gains, night mode;
//     tagged by device_id, source and eq_preset
//   - devialet_poll: duration_ms; tagged by device_id and result
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//	client.WriteState(influxdb.StateSample{DeviceID: "lounge", Volume: 40})
package influxdb
