// Package coordinator owns the polling loop for one Devialet speaker.
//
// A Coordinator is the single writer of the device's DeviceState. It polls
// on a fixed interval, replaces the state as a whole, and tells subscribers
// only when the normalized state actually changed.
//
// # Phases
//
//	Idle ──tick──► Polling ──ok──► Idle
//	                  │
//	                  └──fail──► Backoff ──retry──► Polling
//
// Backoff retries at a fixed interval. A failed poll never clears the last
// known state; it flips availability instead.
//
// Commands sent through the client request a refresh, which the loop
// coalesces with any refresh already pending.
package coordinator
