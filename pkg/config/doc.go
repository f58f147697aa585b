// Package config loads and validates the rendergrid daemon configuration
// from YAML, with sane defaults when no file is supplied.
package config
