// Package config loads streamfeed's YAML configuration.
//
// Values may reference environment variables as ${VAR}. Load parses,
// LoadWithDefaults fills optional fields and LoadAndValidate also checks
// required fields.
package config
