// Package config provides the devmock configuration model and its loading.
//
// Options are layered with the following precedence (highest to lowest):
//
//  1. Command-line flags (applied by the CLI)
//  2. Environment variables (DEVMOCK_* prefix, optionally from a .env file)
//  3. Config file (devmock.yaml)
//  4. Default values
//
// Every layer records where each value came from in Options.Sources so
// `devmock serve --log-level debug` can report it.
package config
