// Package config handles configuration loading and management for hitreq.
//
// It provides functionality for:
//   - Loading configuration from .hitreq.yaml, hitreq.yaml or .hitreq.json
//   - Default configuration values
//   - Merging file settings with command-line overrides
//   - Translating settings into HTTP client options
package config
