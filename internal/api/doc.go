// Package api serves the Devialet bridge over HTTP.
//
// Routes, all JSON:
//
//	GET  /api/v1/health                    bridge and speaker health
//	GET  /api/v1/device/state              last polled DeviceState
//	GET  /api/v1/device/info               identity and firmware
//	GET  /api/v1/device/commands           command vocabulary
//	POST /api/v1/device/commands/{command} run a command; body holds params
//	GET  /api/v1/ws                        WebSocket event stream
//	GET  /metrics                          Prometheus exposition
//
// WebSocket clients start subscribed to "device.state_changed" and get the
// current state on connect. They may also subscribe to "device.availability".
//
// Device errors map onto HTTP statuses: validation 400, unsupported
// feature 409, device rejection 502, unreachable speaker 503.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
