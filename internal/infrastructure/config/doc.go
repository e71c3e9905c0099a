// Package config handles loading and validating Gray Logic Integrations configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (passwords, tokens) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - JWT secrets must be changed from defaults before production use
//   - The JWT secret also signs OAuth2 state, so it protects pending config flows
//
// Durations (flows, discovery, integration polling) use Go duration
// syntax in YAML, for example "120s" or "10m".
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Integrations.SystemBridge.PollInterval)
package config
