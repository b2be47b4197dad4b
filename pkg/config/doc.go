// Package config loads and validates host configuration for the
// command-line tools from YAML files.
package config
