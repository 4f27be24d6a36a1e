// Package config handles loading and validating the Devialet bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with DEVIALET_* environment variables (via envconfig)
//   - Validation of required fields and ranges
//   - Default value handling
//
// Security Considerations:
//   - MQTT passwords and InfluxDB tokens should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Device.IP)
package config
