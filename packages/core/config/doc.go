// Package config handles configuration loading and management for hitcontract.
//
// It provides functionality for:
//   - Loading configuration from .hitcontract.yaml, hitcontract.yaml or
//     .hitcontract.json (YAML is a superset of JSON, so one parser reads all)
//   - Default configuration values
//   - Merging file settings with command line overrides
package config
