// Package config holds tiny64's configuration model: built-in defaults, an
// optional JSON config file, and a TINY64_* environment overlay applied on
// top. Flags handled by the CLI win over both.
package config
