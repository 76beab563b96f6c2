// Package config loads, normalizes, and validates bioreader configuration.
//
// Defaults come from struct tags applied by go-defaults, then a TOML file is
// decoded over them, then environment fallbacks fill anything still empty
// (IDBIO_PORT, SUPABASE_URL, SUPABASE_SERVICE_ROLE_KEY). The Config type
// carries every knob the daemon and CLI need: device timing, discovery
// keywords, enrollment and verification thresholds, and the template store.
//
// Always obtain settings through this package so downstream code receives
// expanded paths, canonical enum values, and clear validation errors.
package config
