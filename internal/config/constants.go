// Package config provides configuration loading and resolution for the Hawkular client.
package config

import "time"

const (
	// DefaultConfigPath is read when --config is not given.
	DefaultConfigPath = "/etc/hawkular-client-cli/config.yaml"

	// DefaultLimit caps the number of values returned by a read.
	DefaultLimit = 10

	// DefaultReadWindow is how far back reads go when --start is not given.
	DefaultReadWindow = 8 * time.Hour
)

// Environment variables consulted after the command line and the config file.
const (
	EnvURL      = "HAWKULAR_URL"
	EnvTenant   = "HAWKULAR_TENANT"
	EnvToken    = "HAWKULAR_TOKEN"
	EnvUsername = "HAWKULAR_USERNAME"
	EnvPassword = "HAWKULAR_PASSWORD"
)
