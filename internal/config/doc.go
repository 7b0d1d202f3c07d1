// Package config handles configuration loading, parsing, and validation.
//
// Values are resolved in increasing order of precedence: built-in defaults,
// an optional config.yaml, a .env file, and SCRY_-prefixed environment
// variables (server.port is read from SCRY_SERVER_PORT).
package config
