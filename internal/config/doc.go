// Package config loads the voice pipeline configuration from a YAML file,
// the environment and an optional .env file, in increasing order of
// precedence over the built-in defaults.
package config
