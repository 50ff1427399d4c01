// Package config holds the relayview configuration: defaults, validation
// and the optional .relayview YAML file with relay endpoints and per-host
// rewrite overrides.
package config
