// Package config loads, normalizes, and validates VirtuCast configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// VIRTUCAST_EDITOR_PATH. The Config type centralizes every knob a render run
// needs: engine and project locations, asset references, strategy selection,
// output placement, and process supervision budgets. Editor and project paths
// are checked for existence at load time so a broken pair fails before any
// engine process is launched.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, parsed asset references, and classified validation errors.
package config
