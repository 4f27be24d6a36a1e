// Package devialet is a client for the local IP Control API of Devialet
// speakers (Phantom, Dione, Mania).
//
// # Components
//
//   - Transport: JSON over HTTP with a bounded timeout and no retries
//   - Normalize: raw responses to a flat, clamped DeviceState
//   - Supports: feature gating from availableFeatures and firmware
//   - Client: polling, cached DeviceInfo, and the command operations
//   - Execute: name-based command dispatch shared by MQTT and REST
//
// # Errors
//
// Four error types cover every failure and each matches a sentinel:
//
//	ConnectionError          errors.Is(err, ErrConnection)
//	DeviceError              errors.Is(err, ErrDevice)
//	ValidationError          errors.Is(err, ErrValidation)
//	UnsupportedFeatureError  errors.Is(err, ErrUnsupportedFeature)
//
// Validation and feature checks happen before any request is sent.
//
// # Usage
//
//	client, err := devialet.NewClient(devialet.Options{Host: "192.168.1.20"})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	state, err := client.Poll(ctx)
//	err = client.SetVolume(ctx, 35)
package devialet
